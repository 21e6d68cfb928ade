package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/viralforge/deal-agents/internal/adapters/memory"
	"github.com/viralforge/deal-agents/internal/application"
	"github.com/viralforge/deal-agents/internal/domain"
	"github.com/viralforge/deal-agents/internal/ports"
)

type stubOracle struct {
	decision string
	audit    string
}

func (o stubOracle) Decide(context.Context, ports.DecisionRequest) (string, error) {
	return o.decision, nil
}

func (o stubOracle) Audit(context.Context, ports.AuditRequest) (string, error) {
	return o.audit, nil
}

type stubTransfer struct{}

func (stubTransfer) Transfer(context.Context, domain.PaymentInstruction) (domain.TransferReceipt, error) {
	return domain.TransferReceipt{TxHash: "0xabc", BlockNumber: 7, Status: domain.TransferStatusSuccess}, nil
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  struct {
		Code      string `json:"code"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

func newTestRouter(t *testing.T, jwtSecret string, transfer ports.TransferExecutor) http.Handler {
	t.Helper()
	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:   "deal-agents",
			SenderAddress: "0x2222222222222222222222222222222222222222",
		},
		Oracle: stubOracle{
			decision: `{"decision":"accept","reasoning":"fair"}`,
			audit:    `{"overall_score":85,"tier_achieved":2,"deliverables_met":true,"brand_safety_score":90}`,
		},
		Ledger:   memory.NewLedger(),
		Transfer: transfer,
		Locker:   memory.NewRunLocker(),
		Outbox:   memory.NewOutbox(),
	})
	return NewRouter(NewHandler(svc, jwtSecret))
}

func doRequest(t *testing.T, router http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var out envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, out
}

func settlementBody() map[string]any {
	return map[string]any{
		"contract_id": "contract-1",
		"contract_terms": map[string]any{
			"base_payment":           500,
			"bonus_tiers":            []map[string]any{{"tier": 1, "bonus": 100}, {"tier": 2, "bonus": 200}},
			"creator_wallet_address": "0x1111111111111111111111111111111111111111",
		},
		"submission": map[string]any{"content_url": "https://instagram.com/p/abc"},
	}
}

func TestHealthReportsOrchestrators(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, "", nil)
	rec, out := doRequest(t, router, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var health struct {
		Status        string            `json:"status"`
		Orchestrators map[string]string `json:"orchestrators"`
	}
	if err := json.Unmarshal(out.Data, &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "degraded" || health.Orchestrators["settlement"] != application.ReadinessDegraded {
		t.Fatalf("expected degraded settlement without transfer executor, got %+v", health)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}

	rec, _ = doRequest(t, router, http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected readyz 200 with degraded settlement, got %d", rec.Code)
	}
}

func TestV1RequiresBearer(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, "", nil)
	rec, out := doRequest(t, router, http.MethodGet, "/v1/graphs/negotiation", "", nil)
	if rec.Code != http.StatusUnauthorized || out.Error.Code != "unauthorized" {
		t.Fatalf("expected 401 unauthorized, got %d %+v", rec.Code, out.Error)
	}
	rec, _ = doRequest(t, router, http.MethodGet, "/v1/graphs/negotiation", "creator-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with opaque bearer, got %d", rec.Code)
	}
}

func TestV1ValidatesJWTWhenSecretConfigured(t *testing.T) {
	t.Parallel()

	secret := "test-secret"
	router := newTestRouter(t, secret, nil)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "advertiser-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if rec, _ := doRequest(t, router, http.MethodGet, "/v1/graphs/settlement", signed, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected valid jwt to pass, got %d", rec.Code)
	}

	forged, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "x"}).SignedString([]byte("other"))
	if rec, _ := doRequest(t, router, http.MethodGet, "/v1/graphs/settlement", forged, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected forged jwt to be rejected, got %d", rec.Code)
	}
	if rec, _ := doRequest(t, router, http.MethodGet, "/v1/graphs/settlement", "creator-1", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected opaque token to be rejected, got %d", rec.Code)
	}
}

func TestStartNegotiationEndpoint(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, "", nil)
	body := map[string]any{
		"contract_id": "contract-1",
		"creator_id":  "creator-1",
		"initial_offer": map[string]any{
			"base_payment":  500,
			"deliverables":  "1 reel",
			"deadline_days": 14,
			"usage_rights":  "standard",
		},
	}
	rec, out := doRequest(t, router, http.MethodPost, "/v1/negotiations", "creator-1", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var run struct {
		Status      string          `json:"status"`
		RoundNumber int             `json:"round_number"`
		State       json.RawMessage `json:"state"`
	}
	if err := json.Unmarshal(out.Data, &run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if run.Status != "accepted" || run.RoundNumber != 1 || len(run.State) == 0 {
		t.Fatalf("unexpected run: %+v", run)
	}

	rec, _ = doRequest(t, router, http.MethodPost, "/v1/negotiations/resume", "creator-1", map[string]json.RawMessage{"state": run.State})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected resume 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec, _ = doRequest(t, router, http.MethodGet, "/v1/negotiations/contract-1", "creator-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected stored negotiation, got %d", rec.Code)
	}
	rec, out = doRequest(t, router, http.MethodGet, "/v1/activity/creator-1?limit=5", "creator-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected activity 200, got %d", rec.Code)
	}
	var activity struct {
		Items []domain.AgentLog `json:"items"`
	}
	if err := json.Unmarshal(out.Data, &activity); err != nil || len(activity.Items) != 1 {
		t.Fatalf("expected one activity entry, got %+v %v", activity, err)
	}
}

func TestSettlementEndpoints(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, "", stubTransfer{})

	rec, out := doRequest(t, router, http.MethodPost, "/v1/settlements/audit", "advertiser-1", settlementBody())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected audit 200, got %d", rec.Code)
	}
	var audit struct {
		RecommendedPayment float64 `json:"recommended_payment"`
	}
	if err := json.Unmarshal(out.Data, &audit); err != nil || audit.RecommendedPayment != 700 {
		t.Fatalf("expected recommended 700, got %+v %v", audit, err)
	}

	rec, out = doRequest(t, router, http.MethodPost, "/v1/settlements", "advertiser-1", settlementBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected settle 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var settled struct {
		Status          string  `json:"status"`
		TotalPaid       float64 `json:"total_paid"`
		TransactionHash string  `json:"transaction_hash"`
	}
	if err := json.Unmarshal(out.Data, &settled); err != nil {
		t.Fatalf("decode settlement: %v", err)
	}
	if settled.Status != "completed" || settled.TotalPaid != 700 || settled.TransactionHash != "0xabc" {
		t.Fatalf("unexpected settlement: %+v", settled)
	}

	rec, out = doRequest(t, router, http.MethodPost, "/v1/settlements", "advertiser-1", settlementBody())
	if rec.Code != http.StatusConflict || out.Error.Code != "already_settled" {
		t.Fatalf("expected 409 already_settled, got %d %+v", rec.Code, out.Error)
	}
}

func TestErrorResponses(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, "", nil)
	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{name: "malformed json", method: http.MethodPost, path: "/v1/negotiations", body: "{", status: http.StatusBadRequest, code: "invalid_json"},
		{name: "invalid offer", method: http.MethodPost, path: "/v1/negotiations", body: map[string]any{"contract_id": "c-1"}, status: http.StatusBadRequest, code: "invalid_input"},
		{name: "unknown negotiation", method: http.MethodGet, path: "/v1/negotiations/missing", status: http.StatusNotFound, code: "not_found"},
		{name: "unknown settlement", method: http.MethodGet, path: "/v1/settlements/missing", status: http.StatusNotFound, code: "not_found"},
	}
	for _, tc := range cases {
		rec, out := doRequest(t, router, tc.method, tc.path, "creator-1", tc.body)
		if rec.Code != tc.status || out.Error.Code != tc.code {
			t.Fatalf("%s: expected %d %s, got %d %s", tc.name, tc.status, tc.code, rec.Code, out.Error.Code)
		}
		if out.Error.RequestID == "" {
			t.Fatalf("%s: expected request id in error payload", tc.name)
		}
	}
}

func TestMapDomainErrorConflicts(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		code string
	}{
		{err: domain.ErrAlreadySettled, code: "already_settled"},
		{err: domain.ErrRunInProgress, code: "run_in_progress"},
		{err: domain.ErrNeedsReconciliation, code: "needs_reconciliation"},
		{err: domain.ErrNegotiationClosed, code: "negotiation_closed"},
	}
	for _, tc := range cases {
		status, code, message := mapDomainError(fmt.Errorf("%w: contract-1", tc.err))
		if status != http.StatusConflict || code != tc.code {
			t.Fatalf("%v: expected 409 %s, got %d %s", tc.err, tc.code, status, code)
		}
		if message == "" {
			t.Fatalf("%v: expected message", tc.err)
		}
	}
}
