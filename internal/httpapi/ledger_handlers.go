package httpapi

import (
	"errors"
	"html"
	"io/fs"
	"net/http"
	"strings"
)

type LedgerHandler struct {
	Ledger LedgerReader
}

// View renders the ledger as a readable page.
func (h LedgerHandler) View(w http.ResponseWriter, r *http.Request) {
	b, ok := h.read(w, r, "No log file found.")
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	var sb strings.Builder
	sb.WriteString("<h2>JobBot Logs</h2><pre>")
	sb.WriteString(html.EscapeString(string(b)))
	sb.WriteString("</pre>")
	_, _ = w.Write([]byte(sb.String()))
}

func (h LedgerHandler) Download(w http.ResponseWriter, r *http.Request) {
	b, ok := h.read(w, r, "No file to download")
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="applied_jobs.csv"`)
	_, _ = w.Write(b)
}

func (h LedgerHandler) read(w http.ResponseWriter, r *http.Request, missing string) ([]byte, bool) {
	b, err := h.Ledger.Raw(r.Context())
	if errors.Is(err, fs.ErrNotExist) {
		WriteError(w, r, http.StatusNotFound, "not_found", missing)
		return nil, false
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "ledger", err.Error())
		return nil, false
	}
	return b, true
}
