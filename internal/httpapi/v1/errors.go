package v1

import (
    "errors"
    "net/http"

    "github.com/tinoosan/bankledger/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
    Error string `json:"error"`
    Code  string `json:"code,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
    toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "bad_request") }
func notFound(w http.ResponseWriter)               { writeErr(w, http.StatusNotFound, "not_found", "not_found") }
func conflict(w http.ResponseWriter, msg string)   { writeErr(w, http.StatusConflict, msg, msg) }
func unauthorized(w http.ResponseWriter)           { writeErr(w, http.StatusUnauthorized, "unauthorized", "unauthorized") }
func unprocessable(w http.ResponseWriter, msg, code string) {
    writeErr(w, http.StatusUnprocessableEntity, msg, code)
}

// errorCode maps a domain error to its HTTP status and stable code.
func errorCode(err error) (int, string) {
    switch {
    case errors.Is(err, errs.ErrNotFound):
        return http.StatusNotFound, "not_found"
    case errors.Is(err, errs.ErrForbidden):
        return http.StatusForbidden, "forbidden"
    case errors.Is(err, errs.ErrDuplicateUser):
        return http.StatusConflict, "duplicate_user"
    case errors.Is(err, errs.ErrInvalidCredentials):
        return http.StatusUnauthorized, "invalid_credentials"
    case errors.Is(err, errs.ErrInsufficientFunds):
        return http.StatusUnprocessableEntity, "insufficient_funds"
    case errors.Is(err, errs.ErrOverdraftExceeded):
        return http.StatusUnprocessableEntity, "overdraft_exceeded"
    case errors.Is(err, errs.ErrInvalidAmount):
        return http.StatusUnprocessableEntity, "invalid_amount"
    case errors.Is(err, errs.ErrInvalid):
        return http.StatusUnprocessableEntity, "validation_error"
    case errors.Is(err, errs.ErrStorage):
        return http.StatusServiceUnavailable, "storage_error"
    default:
        return http.StatusInternalServerError, "internal_error"
    }
}

// writeDomainErr writes err using errorCode. Storage and unexpected failures
// are logged and their details kept out of the response.
func (s *Server) writeDomainErr(w http.ResponseWriter, r *http.Request, err error) {
    status, code := errorCode(err)
    msg := err.Error()
    if status >= http.StatusInternalServerError {
        s.log.Error("request failed", "req_id", reqID(r), "code", code, "err", err)
        msg = code
    }
    writeErr(w, status, msg, code)
}
