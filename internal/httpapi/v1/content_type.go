package v1

import (
    "mime"
    "net/http"
)

// requireJSON ensures the request has Content-Type application/json (optionally with params).
// Writes 415 if not JSON and returns false; otherwise returns true.
func requireJSON(w http.ResponseWriter, r *http.Request) bool {
    mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
    if err != nil || mt != "application/json" {
        writeErr(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "unsupported_media_type")
        return false
    }
    return true
}
