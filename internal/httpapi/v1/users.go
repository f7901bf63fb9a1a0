package v1

import (
    "net/http"
)

// POST /v1/users
func (s *Server) postUser(w http.ResponseWriter, r *http.Request) {
    in := r.Context().Value(ctxKeyCredentials).(credentialsRequest)
    u, err := s.bank.RegisterUser(r.Context(), in.Username, in.Password)
    if err != nil {
        s.writeDomainErr(w, r, err)
        return
    }
    toJSON(w, http.StatusCreated, toUserResponse(u))
}

// POST /v1/tokens exchanges a username and password for a bearer token.
func (s *Server) postToken(w http.ResponseWriter, r *http.Request) {
    in := r.Context().Value(ctxKeyCredentials).(credentialsRequest)
    u, err := s.bank.Authenticate(r.Context(), in.Username, in.Password)
    if err != nil {
        s.writeDomainErr(w, r, err)
        return
    }
    tok, exp, err := s.issueToken(u.Username)
    if err != nil {
        s.writeDomainErr(w, r, err)
        return
    }
    toJSON(w, http.StatusCreated, tokenResponse{
        AccessToken: tok,
        TokenType:   "Bearer",
        ExpiresIn:   int64(s.opts.TokenTTL.Seconds()),
        ExpiresAt:   exp.UTC(),
    })
}
