package v1

import (
    "bytes"
    "crypto/sha256"
    "encoding/hex"
    "io"
    "net/http"
    "strings"
)

// storedResponse is the replayable result of a request made with an
// Idempotency-Key. Status 0 marks a request still in flight.
type storedResponse struct {
    BodyHash    string
    Status      int
    ContentType string
    Payload     []byte
}

func hashBytes(b []byte) string {
    h := sha256.Sum256(b)
    return hex.EncodeToString(h[:])
}

type captureWriter struct {
    http.ResponseWriter
    status int
    buf    []byte
}

func (w *captureWriter) WriteHeader(code int) {
    if w.status == 0 { w.status = code }
    w.ResponseWriter.WriteHeader(code)
}

func (w *captureWriter) Write(b []byte) (int, error) {
    if w.status == 0 { w.status = http.StatusOK }
    w.buf = append(w.buf, b...)
    return w.ResponseWriter.Write(b)
}

// idempotency replays the stored response when a POST or PATCH repeats an
// Idempotency-Key with the same body, and answers 409 when the body differs.
// Keys are scoped to the caller, method and path. Responses >= 500 are not
// kept so the client may retry.
func (s *Server) idempotency(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
        if key == "" || (r.Method != http.MethodPost && r.Method != http.MethodPatch) {
            next.ServeHTTP(w, r)
            return
        }
        body, err := io.ReadAll(r.Body)
        if err != nil {
            bodyError(w, err)
            return
        }
        r.Body = io.NopCloser(bytes.NewReader(body))
        scope := subject(r) + "\x00" + r.Method + "\x00" + r.URL.Path + "\x00" + key
        h := hashBytes(body)

        s.idemMu.Lock()
        prev, ok := s.idem[scope]
        if !ok {
            s.idem[scope] = storedResponse{BodyHash: h}
        }
        s.idemMu.Unlock()
        if ok {
            switch {
            case prev.BodyHash != h:
                conflict(w, "idempotency_mismatch")
            case prev.Status == 0:
                conflict(w, "idempotency_in_progress")
            default:
                w.Header().Set("Content-Type", prev.ContentType)
                w.Header().Set("Idempotent-Replayed", "true")
                w.WriteHeader(prev.Status)
                _, _ = w.Write(prev.Payload)
            }
            return
        }

        rw := &captureWriter{ResponseWriter: w}
        defer func() {
            s.idemMu.Lock()
            defer s.idemMu.Unlock()
            if rw.status == 0 || rw.status >= http.StatusInternalServerError {
                delete(s.idem, scope)
                return
            }
            s.idem[scope] = storedResponse{
                BodyHash:    h,
                Status:      rw.status,
                ContentType: rw.Header().Get("Content-Type"),
                Payload:     append([]byte(nil), rw.buf...),
            }
        }()
        next.ServeHTTP(rw, r)
    })
}
