package v1

import (
    "context"
    "crypto/hmac"
    "crypto/sha256"
    "encoding/base64"
    "encoding/json"
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/google/uuid"
)

type JWTClaims struct {
    ID        string `json:"jti,omitempty"`
    Issuer    string `json:"iss,omitempty"`
    Subject   string `json:"sub,omitempty"`
    Audience  any    `json:"aud,omitempty"` // string or []string
    ExpiresAt int64  `json:"exp,omitempty"`
    NotBefore int64  `json:"nbf,omitempty"`
    IssuedAt  int64  `json:"iat,omitempty"`
}

func parseBearerToken(r *http.Request) (string, bool) {
    h := r.Header.Get("Authorization")
    if len(h) < len("Bearer ") || !strings.EqualFold(h[:len("Bearer ")], "Bearer ") { return "", false }
    tok := strings.TrimSpace(h[len("Bearer "):])
    return tok, tok != ""
}

func signHS256(claims JWTClaims, secret string) (string, error) {
    hdr, err := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
    if err != nil { return "", err }
    payload, err := json.Marshal(claims)
    if err != nil { return "", err }
    enc := base64.RawURLEncoding
    signing := enc.EncodeToString(hdr) + "." + enc.EncodeToString(payload)
    mac := hmac.New(sha256.New, []byte(secret))
    mac.Write([]byte(signing))
    return signing + "." + enc.EncodeToString(mac.Sum(nil)), nil
}

func verifyHS256(token, secret string) (JWTClaims, error) {
    var empty JWTClaims
    parts := strings.Split(token, ".")
    if len(parts) != 3 {
        return empty, errors.New("invalid token format")
    }
    // JWT uses base64url without padding
    enc := base64.RawURLEncoding
    headerB, err := enc.DecodeString(parts[0])
    if err != nil {
        return empty, errors.New("bad header b64")
    }
    payloadB, err := enc.DecodeString(parts[1])
    if err != nil {
        return empty, errors.New("bad payload b64")
    }
    sigB, err := enc.DecodeString(parts[2])
    if err != nil {
        return empty, errors.New("bad signature b64")
    }

    var hdr struct{ Alg, Typ string }
    if err := json.Unmarshal(headerB, &hdr); err != nil {
        return empty, errors.New("bad header json")
    }
    if !strings.EqualFold(hdr.Alg, "HS256") {
        return empty, errors.New("unsupported alg")
    }

    mac := hmac.New(sha256.New, []byte(secret))
    mac.Write([]byte(parts[0] + "." + parts[1]))
    if !hmac.Equal(sigB, mac.Sum(nil)) {
        return empty, errors.New("invalid signature")
    }

    var claims JWTClaims
    if err := json.Unmarshal(payloadB, &claims); err != nil {
        return empty, errors.New("bad claims json")
    }
    return claims, nil
}

func audContains(aud any, expected string) bool {
    if expected == "" {
        return true
    }
    switch v := aud.(type) {
    case string:
        return strings.EqualFold(v, expected)
    case []any:
        for _, it := range v {
            if s, ok := it.(string); ok && strings.EqualFold(s, expected) {
                return true
            }
        }
    case []string:
        for _, s := range v {
            if strings.EqualFold(s, expected) {
                return true
            }
        }
    }
    return false
}

// issueToken signs a token for username valid for the configured TTL.
func (s *Server) issueToken(username string) (string, time.Time, error) {
    now := s.opts.Now()
    exp := now.Add(s.opts.TokenTTL)
    claims := JWTClaims{
        ID:        uuid.NewString(),
        Issuer:    s.opts.Issuer,
        Subject:   username,
        ExpiresAt: exp.Unix(),
        NotBefore: now.Unix(),
        IssuedAt:  now.Unix(),
    }
    if s.opts.Audience != "" { claims.Audience = s.opts.Audience }
    tok, err := signHS256(claims, s.opts.JWTSecret)
    return tok, exp, err
}

func (s *Server) checkClaims(claims JWTClaims) error {
    now := s.opts.Now().Unix()
    if claims.Subject == "" {
        return errors.New("missing subject")
    }
    if claims.NotBefore != 0 && now < claims.NotBefore {
        return errors.New("token not yet valid")
    }
    if claims.ExpiresAt == 0 || now >= claims.ExpiresAt {
        return errors.New("token expired")
    }
    if s.opts.Issuer != "" && !strings.EqualFold(claims.Issuer, s.opts.Issuer) {
        return errors.New("issuer mismatch")
    }
    if s.opts.Audience != "" && !audContains(claims.Audience, s.opts.Audience) {
        return errors.New("audience mismatch")
    }
    return nil
}

// requireAuth enforces Authorization: Bearer <HS256 JWT> and stores the
// token subject (the username) in the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        tok, ok := parseBearerToken(r)
        if !ok {
            unauthorized(w)
            return
        }
        claims, err := verifyHS256(tok, s.opts.JWTSecret)
        if err == nil {
            err = s.checkClaims(claims)
        }
        if err != nil {
            s.log.Info("token rejected", "req_id", reqID(r), "err", err)
            unauthorized(w)
            return
        }
        ctx := context.WithValue(r.Context(), ctxKeySubject, claims.Subject)
        next.ServeHTTP(w, r.WithContext(ctx))
    })
}

// subject returns the authenticated username.
func subject(r *http.Request) string {
    v, _ := r.Context().Value(ctxKeySubject).(string)
    return v
}
