package v1

import (
    "encoding/json"
    "errors"
    "net/http"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// toJSON writes a JSON response with status code.
func toJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

// decodeStrict decodes a JSON body, rejecting unknown fields.
func decodeStrict(r *http.Request, v any) error {
    dec := json.NewDecoder(r.Body)
    dec.DisallowUnknownFields()
    return dec.Decode(v)
}

// limitBody bounds request bodies so oversized payloads fail instead of
// being read in full or cut short.
func limitBody(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.Body != nil { r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes) }
        next.ServeHTTP(w, r)
    })
}

// bodyError answers 413 for a body over maxBodyBytes and 400 otherwise.
func bodyError(w http.ResponseWriter, err error) {
    var tooLarge *http.MaxBytesError
    if errors.As(err, &tooLarge) {
        writeErr(w, http.StatusRequestEntityTooLarge, "request body too large", "request_too_large")
        return
    }
    badRequest(w, "invalid JSON: "+err.Error())
}
