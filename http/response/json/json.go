// Package json writes the JSON response shapes the API uses.
package json

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/zcomx/zco-mx/log"
)

// errorResponse is the structural error payload of JSON endpoints.
type errorResponse struct {
	Status string `json:"status"`
	Msg    string `json:"msg"`
}

func OK(w http.ResponseWriter, body any) {
	write(w, http.StatusOK, body)
}

func Created(w http.ResponseWriter, body any) {
	write(w, http.StatusCreated, body)
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func BadRequest(w http.ResponseWriter, msg string) {
	write(w, http.StatusBadRequest, errorResponse{Status: "error", Msg: msg})
}

// NotFound writes a 404. body lets callers attach a suggestions
// payload; nil falls back to the plain error shape.
func NotFound(w http.ResponseWriter, body any) {
	if body == nil {
		body = errorResponse{Status: "error", Msg: "not found"}
	}
	write(w, http.StatusNotFound, body)
}

func ServerError(w http.ResponseWriter, err error) {
	log.Error("Request failed", zap.Error(err))
	write(w, http.StatusInternalServerError, errorResponse{Status: "error", Msg: err.Error()})
}

func write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error("Failed to encode response", zap.Error(err))
	}
}
