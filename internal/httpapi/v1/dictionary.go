package v1

import (
    "net/http"

    "github.com/tinoosan/bankledger/internal/dictionary"
)

// GET /v1/dictionary/account-types
func (s *Server) getAccountTypes(w http.ResponseWriter, r *http.Request) {
    out := struct {
        Items []dictionary.KindDef `json:"items"`
    }{Items: dictionary.Kinds()}
    toJSON(w, http.StatusOK, out)
}
