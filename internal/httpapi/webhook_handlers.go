package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"jobbot-engine/internal/config"
	"jobbot-engine/internal/events"
)

const maxWebhookBody = 1 << 20

// WebhookHandler ingests applicant configuration from a form provider (Tally
// "answers" payloads) or a plain config document, stores it and queues a cycle.
type WebhookHandler struct {
	Cycles  CycleStore
	Runner  Runner
	Resumes ResumeFetcher
	Hub     *events.Hub
}

type answer struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type webhookEnvelope struct {
	Answers   []answer `json:"answers"`
	ResumeURL string   `json:"resume_url"`
}

func (h WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "read_failed", err.Error())
		return
	}
	log.Printf("[webhook] hit request_id=%s bytes=%d", RequestIDFrom(r.Context()), len(body))

	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON: "+err.Error())
		return
	}

	cur, err := h.Cycles.Current()
	if err != nil {
		log.Printf("[webhook] current config: %v (starting from defaults)", err)
	}

	var next config.CycleConfig
	if len(env.Answers) > 0 {
		next, err = applyAnswers(cur, env.Answers)
	} else {
		next, err = applyDocument(cur, body)
	}
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}

	if u := strings.TrimSpace(env.ResumeURL); u != "" && h.Resumes != nil {
		path, err := h.Resumes.Download(r.Context(), u)
		if err != nil {
			log.Printf("[webhook] resume download failed, keeping %s: %v", next.ResumePath, err)
		} else {
			next.ResumePath = path
		}
	}

	saved, err := h.Cycles.Save(r.Context(), next)
	if err != nil {
		log.Printf("[webhook] save config: %v", err)
		WriteError(w, r, http.StatusInternalServerError, "save_failed", "could not store configuration")
		return
	}
	h.Hub.Emit(events.ConfigUpdated, map[string]any{"keywords": saved.Keywords, "max_results": saved.MaxResults})

	queued := h.Runner.Trigger()
	log.Printf("[webhook] config updated; cycle queued=%t", queued)
	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true, "queued": queued, "config": saved})
}

// applyDocument overlays a plain config document on the current snapshot;
// fields absent from the document keep their current values.
func applyDocument(cur config.CycleConfig, body []byte) (config.CycleConfig, error) {
	next := cur
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&next); err != nil {
		return cur, err
	}
	return next, nil
}

// applyAnswers maps form answers by key onto the current snapshot.
func applyAnswers(cur config.CycleConfig, answers []answer) (config.CycleConfig, error) {
	next := cur
	for _, a := range answers {
		key := strings.ToLower(strings.TrimSpace(a.Key))
		switch key {
		case "keywords":
			var kw config.Keywords
			if err := json.Unmarshal(a.Value, &kw); err != nil {
				return cur, err
			}
			next.Keywords = kw
		case "max_results":
			if n, ok := answerInt(a.Value); ok {
				next.MaxResults = n
			}
		case "email":
			next.UserData.Email = answerString(a.Value)
		case "full_name", "name":
			next.UserData.FullName = answerString(a.Value)
		case "phone":
			next.UserData.Phone = answerString(a.Value)
		case "location":
			next.UserData.Location = answerString(a.Value)
		case "job_type":
			next.UserData.JobType = answerString(a.Value)
		case "cover_letter":
			next.UserData.CoverLetter = answerString(a.Value)
		}
	}
	return next, nil
}

func answerString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.Trim(strings.TrimSpace(string(raw)), `"`)
}

func answerInt(raw json.RawMessage) (int, bool) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	n, err := strconv.Atoi(answerString(raw))
	return n, err == nil
}
