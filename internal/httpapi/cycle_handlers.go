package httpapi

import (
	"net/http"
	"strconv"
	"strings"
)

type CycleHandler struct {
	Runner  Runner
	History HistoryReader
	Cycles  CycleStore
}

func (h CycleHandler) Status(w http.ResponseWriter, r *http.Request) {
	st := Status{State: string(h.Runner.State()), Pending: h.Runner.Pending()}
	if last, ok := h.Runner.LastResult(); ok {
		st.Last = &last
	}
	WriteJSON(w, http.StatusOK, st)
}

func (h CycleHandler) Run(w http.ResponseWriter, r *http.Request) {
	queued := h.Runner.Trigger()
	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true, "queued": queued})
}

func (h CycleHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		WriteError(w, r, http.StatusNotFound, "history_disabled", "cycle history is not enabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	cycles, err := h.History.ListCycles(r.Context(), limit)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "history", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, cycles)
}

// AttemptsByPath serves /cycles/{id}/attempts.
func (h CycleHandler) AttemptsByPath(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		WriteError(w, r, http.StatusNotFound, "history_disabled", "cycle history is not enabled")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/cycles/")
	id, tail, _ := strings.Cut(rest, "/")
	if id == "" || tail != "attempts" {
		WriteError(w, r, http.StatusNotFound, "not_found", "expected /cycles/{id}/attempts")
		return
	}
	attempts, err := h.History.ListAttempts(r.Context(), id)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "history", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, attempts)
}

// Config returns the snapshot the next cycle will use.
func (h CycleHandler) Config(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Cycles.Current()
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "config", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, cfg)
}
