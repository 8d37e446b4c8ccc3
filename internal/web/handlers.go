package web

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pedidos/internal/fetcher"
)

// Error codes returned in failure payloads alongside the human-readable
// message. User-facing strings stay in Portuguese for frontend parity.
const (
	codeNoDocument   = "no_document"
	codeParseFailure = "parse_failure"
	codeStoreFailure = "store_failure"
	codeRateLimited  = "rate_limited"
)

type uploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpload stages the uploaded workbook to a temp file, decodes it, and
// runs the atomic replace-all import. The temp file is removed afterwards.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !s.uploads.Allow() {
		writeError(w, http.StatusTooManyRequests, codeRateLimited,
			"Importação em andamento, tente novamente em instantes", "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, codeNoDocument,
			"Nenhum arquivo enviado", err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeNoDocument,
			"Nenhum arquivo enviado", "")
		return
	}
	defer file.Close() //nolint:errcheck

	path, err := stageUpload(file, header.Filename)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeStoreFailure,
			"Erro ao processar arquivo", eris.ToString(err, false))
		return
	}
	defer os.Remove(path) //nolint:errcheck

	doc, err := fetcher.Open(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeParseFailure,
			"Erro ao processar arquivo", eris.ToString(err, false))
		return
	}

	res, err := s.importer.Import(r.Context(), doc, header.Filename)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeStoreFailure,
			"Erro ao processar arquivo", eris.ToString(err, false))
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Success: true,
		Message: fmt.Sprintf("%d pedidos importados com sucesso!", res.Imported),
		Count:   res.Imported,
	})
}

func (s *Server) handleListPedidos(w http.ResponseWriter, r *http.Request) {
	pedidos, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeStoreFailure,
			"Erro ao consultar pedidos", eris.ToString(err, false))
		return
	}
	writeJSON(w, http.StatusOK, pedidos)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeStoreFailure,
			"Erro ao calcular estatísticas", eris.ToString(err, false))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCheckData(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeStoreFailure,
			"Erro ao consultar pedidos", eris.ToString(err, false))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"hasData": count > 0,
		"count":   count,
	})
}

func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListImports(r.Context(), 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeStoreFailure,
			"Erro ao consultar importações", eris.ToString(err, false))
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// stageUpload copies the multipart file to a temp file, preserving the
// original extension so the codec can dispatch on it.
func stageUpload(file multipart.File, filename string) (string, error) {
	tmp, err := os.CreateTemp("", "pedidos-upload-*"+filepath.Ext(filename))
	if err != nil {
		return "", eris.Wrap(err, "web: create temp upload")
	}
	defer tmp.Close() //nolint:errcheck

	if _, err := io.Copy(tmp, file); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return "", eris.Wrap(err, "web: stage upload")
	}
	return tmp.Name(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, code, msg, details string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code, Details: details})
}
