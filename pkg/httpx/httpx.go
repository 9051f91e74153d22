package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/rentfold/esign/pkg/apperr"
)

func NewRequestID() string { return "req_" + uuid.NewString() }

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ReadJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	resp := map[string]any{
		"request_id": NewRequestID(),
		"error": map[string]any{
			"code": code, "message": message, "details": details,
		},
	}
	WriteJSON(w, status, resp)
}

// WriteAppError renders a typed error with its stable code. Authorization
// failures stay explicit 403s, never disguised as 404s.
func WriteAppError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	WriteError(w, apperr.HTTPStatus(kind), string(kind), err.Error(), nil)
}
