package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
)

type errorBody struct {
	Error   Kind   `json:"error"`
	Message string `json:"message"`
}

// WriteHTTP renders err as {"error": kind, "message": ...} with the status
// HTTPStatus assigns to its kind. Internal errors never expose their text.
func WriteHTTP(w http.ResponseWriter, err error) {
	kind := KindOf(err)
	body := errorBody{Error: kind, Message: "internal error"}
	var e *Error
	if kind != KindInternal && errors.As(err, &e) {
		body.Message = e.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(kind))
	json.NewEncoder(w).Encode(body)
}
