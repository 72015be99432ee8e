package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"yzyvault/integrations/exports"
	"yzyvault/native/vault"
)

var exportFormats = map[string]struct {
	contentType string
	build       func([]*vault.EpochView) ([]byte, string, error)
}{
	"parquet": {"application/vnd.apache.parquet", exports.EpochsParquet},
	"csv":     {"text/csv", exports.EpochsCSV},
	"jsonl":   {"application/x-ndjson", exports.EpochsJSONL},
}

// handleExport streams the epoch ledger for [from, to] as a file. The SHA-256
// of the payload is returned in X-Checksum-Sha256.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	exporter, ok := exportFormats[format]
	if !ok {
		s.writeError(w, r, invalid(fmt.Sprintf("unsupported export format %q", format)))
		return
	}
	from, to, err := s.epochRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views, err := s.app.Epochs(from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, checksum, err := exporter.build(views)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", exporter.contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="epochs-%d-%d.%s"`, from, to, format))
	w.Header().Set("X-Checksum-Sha256", checksum)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
