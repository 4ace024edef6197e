package rest

import (
	"encoding/json"
	"net/http"
)

// Response wraps http.ResponseWriter for the pipeline and tracks whether a
// body has been written, which backs the terminal-action guarantees: the
// server only emits its fallback error when no terminal action wrote.
type Response struct {
	w     http.ResponseWriter
	wrote bool
}

// NewResponse wraps a ResponseWriter.
func NewResponse(w http.ResponseWriter) *Response {
	return &Response{w: w}
}

// Raw returns the underlying ResponseWriter.
func (res *Response) Raw() http.ResponseWriter { return res.w }

// Written reports whether a status/body has been sent.
func (res *Response) Written() bool { return res.wrote }

// JSON sends a JSON response.
func (res *Response) JSON(status int, data any) {
	res.wrote = true
	res.w.Header().Set("Content-Type", "application/json")
	res.w.WriteHeader(status)
	_ = json.NewEncoder(res.w).Encode(data)
}

// Success sends 200 JSON: {"data": v}
func (res *Response) Success(v any) {
	res.JSON(http.StatusOK, envelope{"data": v})
}

// Created sends 201 JSON: {"data": v}
func (res *Response) Created(v any) {
	res.JSON(http.StatusCreated, envelope{"data": v})
}

// NoContent sends 204 with no body.
func (res *Response) NoContent() {
	res.wrote = true
	res.w.WriteHeader(http.StatusNoContent)
}

// Error sends a JSON error response: {"error": {"message": ...}}
func (res *Response) Error(status int, message string) {
	res.JSON(status, envelope{"error": envelope{
		"statusCode": status,
		"message":    message,
	}})
}

// NotFound sends 404.
func (res *Response) NotFound(message string) {
	if message == "" {
		message = "Not found."
	}
	res.Error(http.StatusNotFound, message)
}

// ServerError sends 500.
func (res *Response) ServerError(message string) {
	if message == "" {
		message = "Internal server error."
	}
	res.Error(http.StatusInternalServerError, message)
}

type envelope map[string]any
