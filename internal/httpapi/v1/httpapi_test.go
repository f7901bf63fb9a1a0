package v1

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "io"
    "log/slog"
    "net/http"
    "net/http/httptest"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/tinoosan/bankledger/internal/service/registry"
    "github.com/tinoosan/bankledger/internal/storage/memory"
)

func testLogger() *slog.Logger {
    return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type errResp struct {
    Error string `json:"error"`
    Code  string `json:"code"`
}

type acctResp struct {
    AccountNumber    string            `json:"account_number"`
    Owner            string            `json:"owner"`
    AccountType      string            `json:"account_type"`
    Currency         string            `json:"currency"`
    Balance          string            `json:"balance"`
    Floor            string            `json:"floor"`
    InterestRate     *string           `json:"interest_rate"`
    OverdraftLimit   *string           `json:"overdraft_limit"`
    TransactionCount int               `json:"transaction_count"`
    Metadata         map[string]string `json:"metadata"`
}

type txResp struct {
    ID           string    `json:"id"`
    Timestamp    time.Time `json:"timestamp"`
    Type         string    `json:"type"`
    Amount       string    `json:"amount"`
    BalanceAfter string    `json:"balance_after"`
}

type clock struct {
    mu  sync.Mutex
    now time.Time
}

func (c *clock) Now() time.Time { c.mu.Lock(); defer c.mu.Unlock(); return c.now }
func (c *clock) Advance(d time.Duration) { c.mu.Lock(); c.now = c.now.Add(d); c.mu.Unlock() }

type harness struct {
    t     *testing.T
    h     http.Handler
    store *memory.Store
    clock *clock
}

type failingReady struct{}

func (failingReady) Ready(context.Context) error { return errors.New("down") }

func setup(t *testing.T) *harness {
    t.Helper()
    store := memory.New()
    clk := &clock{now: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
    reg, err := registry.New(store, registry.Options{Now: clk.Now, Logger: testLogger()})
    if err != nil { t.Fatalf("registry: %v", err) }
    srv := New(reg, testLogger(), Options{JWTSecret: "test-secret", Issuer: "bank", TokenTTL: time.Minute, Ready: store, Now: clk.Now})
    return &harness{t: t, h: srv.Handler(), store: store, clock: clk}
}

func (hs *harness) do(method, path, token string, body any, hdr map[string]string) *httptest.ResponseRecorder {
    hs.t.Helper()
    var rdr io.Reader
    if body != nil {
        switch b := body.(type) {
        case string:
            rdr = strings.NewReader(b)
        default:
            raw, err := json.Marshal(b)
            if err != nil { hs.t.Fatalf("marshal: %v", err) }
            rdr = bytes.NewReader(raw)
        }
    }
    req := httptest.NewRequest(method, path, rdr)
    if body != nil { req.Header.Set("Content-Type", "application/json") }
    if token != "" { req.Header.Set("Authorization", "Bearer "+token) }
    for k, v := range hdr { req.Header.Set(k, v) }
    rec := httptest.NewRecorder()
    hs.h.ServeHTTP(rec, req)
    return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
    t.Helper()
    var v T
    if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
        t.Fatalf("decode %q: %v", rec.Body.String(), err)
    }
    return v
}

// login registers username and returns a bearer token for it.
func (hs *harness) login(username string) string {
    hs.t.Helper()
    creds := map[string]string{"username": username, "password": "hunter2"}
    if rec := hs.do(http.MethodPost, "/v1/users", "", creds, nil); rec.Code != http.StatusCreated {
        hs.t.Fatalf("register expected 201, got %d: %s", rec.Code, rec.Body.String())
    }
    rec := hs.do(http.MethodPost, "/v1/tokens", "", creds, nil)
    if rec.Code != http.StatusCreated {
        hs.t.Fatalf("token expected 201, got %d: %s", rec.Code, rec.Body.String())
    }
    tok := decode[tokenResponse](hs.t, rec)
    if tok.TokenType != "Bearer" || tok.AccessToken == "" || tok.ExpiresIn != 60 {
        hs.t.Fatalf("unexpected token response: %+v", tok)
    }
    return tok.AccessToken
}

func (hs *harness) open(token string, body map[string]any) acctResp {
    hs.t.Helper()
    rec := hs.do(http.MethodPost, "/v1/accounts", token, body, nil)
    if rec.Code != http.StatusCreated {
        hs.t.Fatalf("open expected 201, got %d: %s", rec.Code, rec.Body.String())
    }
    return decode[acctResp](hs.t, rec)
}

func TestUsers_RegisterDuplicateAndLogin(t *testing.T) {
    hs := setup(t)
    creds := map[string]string{"username": "alice", "password": "pw1"}

    rec := hs.do(http.MethodPost, "/v1/users", "", creds, nil)
    if rec.Code != http.StatusCreated { t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String()) }
    u := decode[userResponse](t, rec)
    if u.Username != "alice" || u.Accounts == nil || len(u.Accounts) != 0 {
        t.Fatalf("unexpected user: %+v", u)
    }
    if strings.Contains(rec.Body.String(), "hash") || strings.Contains(rec.Body.String(), "salt") {
        t.Fatalf("credential leaked: %s", rec.Body.String())
    }

    rec = hs.do(http.MethodPost, "/v1/users", "", creds, nil)
    if rec.Code != http.StatusConflict || decode[errResp](t, rec).Code != "duplicate_user" {
        t.Fatalf("expected 409 duplicate_user, got %d: %s", rec.Code, rec.Body.String())
    }

    bad := []map[string]string{
        {"username": "alice", "password": "wrong"},
        {"username": "nobody", "password": "pw1"},
    }
    for _, c := range bad {
        rec = hs.do(http.MethodPost, "/v1/tokens", "", c, nil)
        if rec.Code != http.StatusUnauthorized || decode[errResp](t, rec).Code != "invalid_credentials" {
            t.Fatalf("expected 401 invalid_credentials for %v, got %d: %s", c, rec.Code, rec.Body.String())
        }
    }

    rec = hs.do(http.MethodPost, "/v1/users", "", map[string]string{"username": "bad name!", "password": "pw"}, nil)
    if rec.Code != http.StatusUnprocessableEntity { t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String()) }

    rec = hs.do(http.MethodPost, "/v1/users", "", map[string]string{"username": "bob"}, nil)
    if rec.Code != http.StatusBadRequest { t.Fatalf("expected 400, got %d", rec.Code) }

    rec = hs.do(http.MethodPost, "/v1/users", "", `{"username":"bob","password":"x","admin":true}`, nil)
    if rec.Code != http.StatusBadRequest { t.Fatalf("unknown field expected 400, got %d", rec.Code) }
}

func TestAuth_MissingExpiredAndForgedTokens(t *testing.T) {
    hs := setup(t)
    tok := hs.login("alice")

    if rec := hs.do(http.MethodGet, "/v1/accounts", "", nil, nil); rec.Code != http.StatusUnauthorized {
        t.Fatalf("missing token expected 401, got %d", rec.Code)
    }
    forged, err := signHS256(JWTClaims{Subject: "alice", Issuer: "bank", ExpiresAt: hs.clock.Now().Add(time.Hour).Unix()}, "other-secret")
    if err != nil { t.Fatalf("sign: %v", err) }
    if rec := hs.do(http.MethodGet, "/v1/accounts", forged, nil, nil); rec.Code != http.StatusUnauthorized {
        t.Fatalf("forged token expected 401, got %d", rec.Code)
    }
    if rec := hs.do(http.MethodGet, "/v1/accounts", tok, nil, nil); rec.Code != http.StatusOK {
        t.Fatalf("valid token expected 200, got %d", rec.Code)
    }
    hs.clock.Advance(2 * time.Minute)
    if rec := hs.do(http.MethodGet, "/v1/accounts", tok, nil, nil); rec.Code != http.StatusUnauthorized {
        t.Fatalf("expired token expected 401, got %d", rec.Code)
    }
}

func TestAccounts_OpenListGet(t *testing.T) {
    hs := setup(t)
    tok := hs.login("alice")

    base := hs.open(tok, map[string]any{"account_type": "base"})
    sav := hs.open(tok, map[string]any{"account_type": "savings", "interest_rate": "0.02", "metadata": map[string]string{"nickname": "rainy day"}})
    chk := hs.open(tok, map[string]any{"account_type": "CheckingAccount", "overdraft_limit": 500})

    if base.AccountNumber != "000001" || sav.AccountNumber != "000002" || chk.AccountNumber != "000003" {
        t.Fatalf("unexpected numbers: %s %s %s", base.AccountNumber, sav.AccountNumber, chk.AccountNumber)
    }
    if base.AccountType != "Account" || base.Balance != "0.00" || base.InterestRate != nil || base.OverdraftLimit != nil {
        t.Fatalf("unexpected base account: %+v", base)
    }
    if sav.InterestRate == nil || *sav.InterestRate != "0.02" || sav.Metadata["nickname"] != "rainy day" {
        t.Fatalf("unexpected savings account: %+v", sav)
    }
    if chk.OverdraftLimit == nil || *chk.OverdraftLimit != "500.00" || chk.Floor != "-500.00" || chk.Currency != "USD" {
        t.Fatalf("unexpected checking account: %+v", chk)
    }

    rec := hs.do(http.MethodGet, "/v1/accounts", tok, nil, nil)
    list := decode[struct{ Items []acctResp `json:"items"` }](t, rec)
    if len(list.Items) != 3 || list.Items[0].AccountNumber != "000001" || list.Items[2].AccountNumber != "000003" {
        t.Fatalf("unexpected list: %+v", list.Items)
    }

    rec = hs.do(http.MethodGet, "/v1/accounts/000002", tok, nil, nil)
    if rec.Code != http.StatusOK || decode[acctResp](t, rec).Owner != "alice" {
        t.Fatalf("get expected 200, got %d: %s", rec.Code, rec.Body.String())
    }
    rec = hs.do(http.MethodGet, "/v1/accounts/999999", tok, nil, nil)
    if rec.Code != http.StatusNotFound { t.Fatalf("expected 404, got %d", rec.Code) }
}

func TestAccounts_OpenValidation(t *testing.T) {
    hs := setup(t)
    tok := hs.login("alice")

    cases := []struct {
        name string
        body any
        want int
    }{
        {"unknown type", map[string]any{"account_type": "brokerage"}, http.StatusUnprocessableEntity},
        {"rate on checking", map[string]any{"account_type": "checking", "interest_rate": "0.1"}, http.StatusUnprocessableEntity},
        {"limit on savings", map[string]any{"account_type": "savings", "overdraft_limit": "10"}, http.StatusUnprocessableEntity},
        {"negative rate", map[string]any{"account_type": "savings", "interest_rate": "-0.1"}, http.StatusUnprocessableEntity},
        {"negative limit", map[string]any{"account_type": "checking", "overdraft_limit": "-5"}, http.StatusUnprocessableEntity},
        {"bad metadata", map[string]any{"account_type": "base", "metadata": map[string]string{"": "x"}}, http.StatusUnprocessableEntity},
        {"not json", "{", http.StatusBadRequest},
    }
    for _, c := range cases {
        t.Run(c.name, func(t *testing.T) {
            rec := hs.do(http.MethodPost, "/v1/accounts", tok, c.body, nil)
            if rec.Code != c.want { t.Fatalf("expected %d, got %d: %s", c.want, rec.Code, rec.Body.String()) }
        })
    }
    if n := len(decode[listAccountsResponse](t, hs.do(http.MethodGet, "/v1/accounts", tok, nil, nil)).Items); n != 0 {
        t.Fatalf("rejected requests opened %d accounts", n)
    }
}

func TestAccounts_RequireJSONContentType(t *testing.T) {
    hs := setup(t)
    tok := hs.login("alice")
    req := httptest.NewRequest(http.MethodPost, "/v1/accounts", strings.NewReader(`{"account_type":"base"}`))
    req.Header.Set("Content-Type", "text/plain")
    req.Header.Set("Authorization", "Bearer "+tok)
    rec := httptest.NewRecorder()
    hs.h.ServeHTTP(rec, req)
    if rec.Code != http.StatusUnsupportedMediaType { t.Fatalf("expected 415, got %d", rec.Code) }
}

func TestTransactions_SavingsInterestAndStatement(t *testing.T) {
    hs := setup(t)
    tok := hs.login("alice")
    sav := hs.open(tok, map[string]any{"account_type": "savings", "interest_rate": "0.02"})
    path := "/v1/accounts/" + sav.AccountNumber

    rec := hs.do(http.MethodPost, path+"/deposits", tok, map[string]any{"amount": "1000.00"}, nil)
    if rec.Code != http.StatusCreated { t.Fatalf("deposit expected 201, got %d: %s", rec.Code, rec.Body.String()) }
    dep := decode[txResp](t, rec)
    if dep.Type != "DEPOSIT" || dep.Amount != "1000.00" || dep.BalanceAfter != "1000.00" || dep.ID == "" {
        t.Fatalf("unexpected deposit: %+v", dep)
    }
    if !dep.Timestamp.Equal(hs.clock.Now()) { t.Fatalf("timestamp %v, want %v", dep.Timestamp, hs.clock.Now()) }

    rec = hs.do(http.MethodPost, path+"/interest", tok, nil, nil)
    if rec.Code != http.StatusCreated { t.Fatalf("interest expected 201, got %d: %s", rec.Code, rec.Body.String()) }
    if in := decode[txResp](t, rec); in.Type != "DEPOSIT" || in.Amount != "20.00" || in.BalanceAfter != "1020.00" {
        t.Fatalf("unexpected interest: %+v", in)
    }

    rec = hs.do(http.MethodGet, path+"/statement", tok, nil, nil)
    st := decode[struct {
        Balance string   `json:"balance"`
        Items   []txResp `json:"items"`
    }](t, rec)
    if st.Balance != "1020.00" || len(st.Items) != 2 || st.Items[0].ID != dep.ID {
        t.Fatalf("unexpected statement: %+v", st)
    }
}

func TestTransactions_FloorsAndAmounts(t *testing.T) {
    hs := setup(t)
    tok := hs.login("alice")
    base := hs.open(tok, map[string]any{"account_type": "base"})
    chk := hs.open(tok, map[string]any{"account_type": "checking", "overdraft_limit": "500"})

    rec := hs.do(http.MethodPost, "/v1/accounts/"+base.AccountNumber+"/withdrawals", tok, map[string]any{"amount": "10"}, nil)
    if rec.Code != http.StatusUnprocessableEntity || decode[errResp](t, rec).Code != "insufficient_funds" {
        t.Fatalf("expected 422 insufficient_funds, got %d: %s", rec.Code, rec.Body.String())
    }

    cpath := "/v1/accounts/" + chk.AccountNumber
    if rec = hs.do(http.MethodPost, cpath+"/withdrawals", tok, map[string]any{"amount": "500"}, nil); rec.Code != http.StatusCreated {
        t.Fatalf("withdraw to limit expected 201, got %d: %s", rec.Code, rec.Body.String())
    }
    rec = hs.do(http.MethodPost, cpath+"/withdrawals", tok, map[string]any{"amount": "0.01"}, nil)
    if rec.Code != http.StatusUnprocessableEntity || decode[errResp](t, rec).Code != "overdraft_exceeded" {
        t.Fatalf("expected 422 overdraft_exceeded, got %d: %s", rec.Code, rec.Body.String())
    }
    rec = hs.do(http.MethodPost, cpath+"/interest", tok, nil, nil)
    if rec.Code != http.StatusUnprocessableEntity { t.Fatalf("interest on checking expected 422, got %d", rec.Code) }

    for _, amt := range []any{"0", "-5", 0} {
        rec = hs.do(http.MethodPost, cpath+"/deposits", tok, map[string]any{"amount": amt}, nil)
        if rec.Code != http.StatusUnprocessableEntity || decode[errResp](t, rec).Code != "invalid_amount" {
            t.Fatalf("amount %v: expected 422 invalid_amount, got %d: %s", amt, rec.Code, rec.Body.String())
        }
    }
    if rec = hs.do(http.MethodPost, cpath+"/deposits", tok, map[string]any{}, nil); rec.Code != http.StatusBadRequest {
        t.Fatalf("missing amount expected 400, got %d", rec.Code)
    }

    got := decode[acctResp](t, hs.do(http.MethodGet, cpath, tok, nil, nil))
    if got.Balance != "-500.00" || got.TransactionCount != 1 {
        t.Fatalf("unexpected checking state: %+v", got)
    }
}

func TestAccounts_OwnershipEnforced(t *testing.T) {
    hs := setup(t)
    alice := hs.login("alice")
    bob := hs.login("bob")
    acct := hs.open(alice, map[string]any{"account_type": "base"})
    path := "/v1/accounts/" + acct.AccountNumber

    checks := []struct{ method, path string; body any }{
        {http.MethodGet, path, nil},
        {http.MethodGet, path + "/statement", nil},
        {http.MethodPost, path + "/deposits", map[string]any{"amount": "5"}},
        {http.MethodPatch, path, map[string]any{"metadata": map[string]string{"k": "v"}}},
    }
    for _, c := range checks {
        rec := hs.do(c.method, c.path, bob, c.body, nil)
        if rec.Code != http.StatusForbidden { t.Fatalf("%s %s expected 403, got %d", c.method, c.path, rec.Code) }
    }
    if n := len(decode[listAccountsResponse](t, hs.do(http.MethodGet, "/v1/accounts", bob, nil, nil)).Items); n != 0 {
        t.Fatalf("bob sees %d accounts", n)
    }
}

func TestAccounts_PatchMetadata(t *testing.T) {
    hs := setup(t)
    tok := hs.login("alice")
    acct := hs.open(tok, map[string]any{"account_type": "base", "metadata": map[string]string{"a": "1", "b": "2"}})
    path := "/v1/accounts/" + acct.AccountNumber

    rec := hs.do(http.MethodPatch, path, tok, map[string]any{"metadata": map[string]string{"a": "", "c": "3"}}, nil)
    if rec.Code != http.StatusOK { t.Fatalf("patch expected 200, got %d: %s", rec.Code, rec.Body.String()) }
    got := decode[acctResp](t, rec)
    if _, ok := got.Metadata["a"]; ok || got.Metadata["b"] != "2" || got.Metadata["c"] != "3" {
        t.Fatalf("unexpected metadata: %+v", got.Metadata)
    }
    if rec = hs.do(http.MethodPatch, path, tok, map[string]any{}, nil); rec.Code != http.StatusBadRequest {
        t.Fatalf("missing metadata expected 400, got %d", rec.Code)
    }
}

func TestIdempotency_ReplayAndMismatch(t *testing.T) {
    hs := setup(t)
    tok := hs.login("alice")
    acct := hs.open(tok, map[string]any{"account_type": "base"})
    path := "/v1/accounts/" + acct.AccountNumber + "/deposits"
    key := map[string]string{"Idempotency-Key": "dep-1"}

    first := hs.do(http.MethodPost, path, tok, map[string]any{"amount": "25"}, key)
    if first.Code != http.StatusCreated { t.Fatalf("expected 201, got %d", first.Code) }
    saves := hs.store.Saves()

    again := hs.do(http.MethodPost, path, tok, map[string]any{"amount": "25"}, key)
    if again.Code != http.StatusCreated || again.Body.String() != first.Body.String() {
        t.Fatalf("replay differs: %d %s", again.Code, again.Body.String())
    }
    if again.Header().Get("Idempotent-Replayed") != "true" { t.Fatalf("replay header missing") }
    if hs.store.Saves() != saves { t.Fatalf("replay reached the store") }

    mismatch := hs.do(http.MethodPost, path, tok, map[string]any{"amount": "26"}, key)
    if mismatch.Code != http.StatusConflict || decode[errResp](t, mismatch).Code != "idempotency_mismatch" {
        t.Fatalf("expected 409 idempotency_mismatch, got %d: %s", mismatch.Code, mismatch.Body.String())
    }

    got := decode[acctResp](t, hs.do(http.MethodGet, "/v1/accounts/"+acct.AccountNumber, tok, nil, nil))
    if got.Balance != "25.00" || got.TransactionCount != 1 {
        t.Fatalf("deposit applied more than once: %+v", got)
    }

    // keys are scoped per caller
    bob := hs.login("bob")
    rec := hs.do(http.MethodPost, path, bob, map[string]any{"amount": "25"}, key)
    if rec.Code != http.StatusForbidden { t.Fatalf("other caller expected 403, got %d", rec.Code) }
}

func TestOversizedBody_Returns413(t *testing.T) {
    hs := setup(t)
    tok := hs.login("alice")
    acct := hs.open(tok, map[string]any{"account_type": "base"})
    path := "/v1/accounts/" + acct.AccountNumber + "/deposits"
    big := `{"amount":"5","pad":"` + strings.Repeat("x", 2*maxBodyBytes) + `"}`

    cases := []struct {
        name string
        hdr  map[string]string
    }{
        {"without key", nil},
        {"with key", map[string]string{"Idempotency-Key": "big-1"}},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            rec := hs.do(http.MethodPost, path, tok, big, tc.hdr)
            if rec.Code != http.StatusRequestEntityTooLarge || decode[errResp](t, rec).Code != "request_too_large" {
                t.Fatalf("expected 413 request_too_large, got %d: %s", rec.Code, rec.Body.String())
            }
        })
    }

    if rec := hs.do(http.MethodPost, "/v1/users", "", big, nil); rec.Code != http.StatusRequestEntityTooLarge {
        t.Fatalf("register expected 413, got %d", rec.Code)
    }

    // a rejected oversized body does not claim its key
    rec := hs.do(http.MethodPost, path, tok, map[string]any{"amount": "5"}, map[string]string{"Idempotency-Key": "big-1"})
    if rec.Code != http.StatusCreated { t.Fatalf("expected 201 after 413, got %d: %s", rec.Code, rec.Body.String()) }
    got := decode[acctResp](t, hs.do(http.MethodGet, "/v1/accounts/"+acct.AccountNumber, tok, nil, nil))
    if got.Balance != "5.00" || got.TransactionCount != 1 {
        t.Fatalf("oversized requests changed state: %+v", got)
    }
}

func TestStorageFailure_Returns503AndRollsBack(t *testing.T) {
    hs := setup(t)
    tok := hs.login("alice")
    acct := hs.open(tok, map[string]any{"account_type": "base"})

    hs.store.FailSave = errors.New("disk full")
    rec := hs.do(http.MethodPost, "/v1/accounts/"+acct.AccountNumber+"/deposits", tok, map[string]any{"amount": "5"}, nil)
    if rec.Code != http.StatusServiceUnavailable { t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String()) }
    if strings.Contains(rec.Body.String(), "disk full") { t.Fatalf("internal error leaked: %s", rec.Body.String()) }
    hs.store.FailSave = nil

    got := decode[acctResp](t, hs.do(http.MethodGet, "/v1/accounts/"+acct.AccountNumber, tok, nil, nil))
    if got.Balance != "0.00" || got.TransactionCount != 0 {
        t.Fatalf("failed deposit left state behind: %+v", got)
    }
}

func TestDictionary_AccountTypes(t *testing.T) {
    hs := setup(t)
    rec := hs.do(http.MethodGet, "/v1/dictionary/account-types", "", nil, nil)
    if rec.Code != http.StatusOK { t.Fatalf("expected 200, got %d", rec.Code) }
    out := decode[struct {
        Items []struct {
            Code        string `json:"code"`
            AccountType string `json:"account_type"`
        } `json:"items"`
    }](t, rec)
    if len(out.Items) != 3 || out.Items[1].AccountType != "SavingsAccount" {
        t.Fatalf("unexpected dictionary: %+v", out.Items)
    }
}

func TestAuxEndpoints(t *testing.T) {
    hs := setup(t)
    if rec := hs.do(http.MethodGet, "/healthz", "", nil, nil); rec.Code != http.StatusOK {
        t.Fatalf("healthz expected 200, got %d", rec.Code)
    }
    if rec := hs.do(http.MethodGet, "/readyz", "", nil, nil); rec.Code != http.StatusOK {
        t.Fatalf("readyz expected 200, got %d", rec.Code)
    }
    hs.do(http.MethodGet, "/v1/dictionary/account-types", "", nil, nil)
    rec := hs.do(http.MethodGet, "/metrics", "", nil, nil)
    if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "bank_http_requests_total") {
        t.Fatalf("metrics missing request counter")
    }

    reg, _ := registry.New(memory.New(), registry.Options{Logger: testLogger()})
    h := New(reg, testLogger(), Options{Ready: failingReady{}}).Handler()
    rec = httptest.NewRecorder()
    h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
    if rec.Code != http.StatusServiceUnavailable { t.Fatalf("readyz expected 503, got %d", rec.Code) }
}

func TestConcurrency_Smoke(t *testing.T) {
    hs := setup(t)
    tok := hs.login("alice")
    acct := hs.open(tok, map[string]any{"account_type": "base"})
    path := "/v1/accounts/" + acct.AccountNumber + "/deposits"

    var wg sync.WaitGroup
    for i := 0; i < 20; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            hs.do(http.MethodPost, path, tok, map[string]any{"amount": "1.50"}, nil)
        }()
    }
    wg.Wait()
    got := decode[acctResp](t, hs.do(http.MethodGet, "/v1/accounts/"+acct.AccountNumber, tok, nil, nil))
    if got.Balance != "30.00" || got.TransactionCount != 20 {
        t.Fatalf("unexpected balance after concurrent deposits: %+v", got)
    }
}
