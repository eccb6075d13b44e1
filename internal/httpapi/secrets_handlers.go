package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"bidbot-engine/internal/errs"
	"bidbot-engine/internal/secrets"
)

type SecretsHandler struct{}

type setSecretReq struct {
	Value string `json:"value"`
}

// Set stores a secret such as ai:gemini or marketplace:<email> in the OS keychain.
func (h SecretsHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req setSecretReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidJSON, "invalid json")
		return
	}
	if strings.TrimSpace(req.Value) == "" {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidJSON, "value is required")
		return
	}
	account := mux.Vars(r)["account"]
	if err := secrets.Set(account, req.Value); err != nil {
		WriteErr(w, r, errs.Wrapf(err, "store secret %s", account))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
