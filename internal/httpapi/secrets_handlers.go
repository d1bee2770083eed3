package httpapi

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"jobbot-engine/internal/config"
	"jobbot-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

type setPasswordReq struct {
	Password string `json:"password"`
}

func (h SecretsHandler) SetIMAPPassword(w http.ResponseWriter, r *http.Request) {
	h.set(w, r, secrets.IMAPKeyringAccount)
}

func (h SecretsHandler) SetSMTPPassword(w http.ResponseWriter, r *http.Request) {
	h.set(w, r, secrets.SMTPKeyringAccount)
}

func (h SecretsHandler) set(w http.ResponseWriter, r *http.Request, account func(config.Config) string) {
	var req setPasswordReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	if err := secrets.SetPassword(account(cfg), req.Password); err != nil {
		WriteError(w, r, http.StatusBadRequest, "keyring", "failed to store password: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
