package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/agent-tools/internal/interfaces"
	"github.com/akylbek/payment-system/agent-tools/internal/minipay"
	"github.com/akylbek/payment-system/agent-tools/internal/models"
)

// mockClient implements interfaces.PaymentClient for testing
type mockClient struct {
	CreateChargeFunc func(ctx context.Context, req models.ChargeRequest) (*models.ChargeResult, error)
	RefundFunc       func(ctx context.Context, transactionID string) (*models.RefundResult, error)
	GetBalanceFunc   func(ctx context.Context) (*models.BalanceResult, error)
	GetMetricsFunc   func(ctx context.Context) (*models.MetricsResult, error)
	HealthCheckFunc  func(ctx context.Context) bool

	mu      sync.Mutex
	charges []models.ChargeRequest
}

var errNotScripted = errors.New("not scripted")

func (m *mockClient) CreateCharge(ctx context.Context, req models.ChargeRequest) (*models.ChargeResult, error) {
	m.mu.Lock()
	m.charges = append(m.charges, req)
	m.mu.Unlock()
	if m.CreateChargeFunc != nil {
		return m.CreateChargeFunc(ctx, req)
	}
	return nil, errNotScripted
}

func (m *mockClient) Refund(ctx context.Context, transactionID string) (*models.RefundResult, error) {
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, transactionID)
	}
	return nil, errNotScripted
}

func (m *mockClient) GetBalance(ctx context.Context) (*models.BalanceResult, error) {
	if m.GetBalanceFunc != nil {
		return m.GetBalanceFunc(ctx)
	}
	return nil, errNotScripted
}

func (m *mockClient) GetMetrics(ctx context.Context) (*models.MetricsResult, error) {
	if m.GetMetricsFunc != nil {
		return m.GetMetricsFunc(ctx)
	}
	return nil, errNotScripted
}

func (m *mockClient) HealthCheck(ctx context.Context) bool {
	if m.HealthCheckFunc != nil {
		return m.HealthCheckFunc(ctx)
	}
	return false
}

func (m *mockClient) Close() error { return nil }

func (m *mockClient) chargeRequests() []models.ChargeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ChargeRequest(nil), m.charges...)
}

// countingFactory hands out the same mock and tracks acquire/release pairs.
type countingFactory struct {
	client   *mockClient
	err      error
	acquired atomic.Int32
	released atomic.Int32
}

func (f *countingFactory) factory() ClientFactory {
	return func(ctx context.Context) (interfaces.PaymentClient, func(), error) {
		if f.err != nil {
			return nil, nil, f.err
		}
		f.acquired.Add(1)
		return f.client, func() { f.released.Add(1) }, nil
	}
}

func decodeEnvelope(t *testing.T, out string) map[string]any {
	t.Helper()
	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &env), "output is not JSON: %s", out)
	return env
}

func keysOf(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sampleCharge(req models.ChargeRequest) *models.ChargeResult {
	return &models.ChargeResult{
		ID:             "txn_abc",
		Amount:         req.Amount,
		Currency:       req.Currency,
		Customer:       req.Customer,
		Status:         "succeeded",
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      "2025-01-01T00:00:00Z",
	}
}

var agentKeyPattern = regexp.MustCompile(`^agent_[0-9a-f]{12}$`)

func TestCreateCharge_GeneratesAgentKey(t *testing.T) {
	t.Parallel()

	client := &mockClient{CreateChargeFunc: func(_ context.Context, req models.ChargeRequest) (*models.ChargeResult, error) {
		return sampleCharge(req), nil
	}}
	f := &countingFactory{client: client}
	a := NewAdapter(f.factory())

	env := decodeEnvelope(t, a.CreateCharge(context.Background(), ChargeArgs{Amount: 5000, Customer: "cust_123"}))
	assert.Equal(t, true, env["success"])

	reqs := client.chargeRequests()
	require.Len(t, reqs, 1)
	assert.Regexp(t, agentKeyPattern, reqs[0].IdempotencyKey)
	assert.Equal(t, "usd", reqs[0].Currency)
	assert.Equal(t, reqs[0].IdempotencyKey, env["idempotency_key"])
}

func TestCreateCharge_FreshKeyPerCall(t *testing.T) {
	t.Parallel()

	client := &mockClient{CreateChargeFunc: func(_ context.Context, req models.ChargeRequest) (*models.ChargeResult, error) {
		return sampleCharge(req), nil
	}}
	a := NewAdapter((&countingFactory{client: client}).factory())

	a.CreateCharge(context.Background(), ChargeArgs{Amount: 1})
	a.CreateCharge(context.Background(), ChargeArgs{Amount: 1})

	reqs := client.chargeRequests()
	require.Len(t, reqs, 2)
	assert.NotEqual(t, reqs[0].IdempotencyKey, reqs[1].IdempotencyKey)
}

func TestCreateCharge_ExplicitKeyForwardedUnchanged(t *testing.T) {
	t.Parallel()

	client := &mockClient{CreateChargeFunc: func(_ context.Context, req models.ChargeRequest) (*models.ChargeResult, error) {
		return sampleCharge(req), nil
	}}
	a := NewAdapter((&countingFactory{client: client}).factory())

	args := ChargeArgs{Amount: 5000, Customer: "cust_123", IdempotencyKey: "order-42"}
	first := a.CreateCharge(context.Background(), args)
	second := a.CreateCharge(context.Background(), args)

	reqs := client.chargeRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "order-42", reqs[0].IdempotencyKey)
	assert.Equal(t, "order-42", reqs[1].IdempotencyKey)
	assert.Equal(t, first, second)
}

func TestCreateCharge_EchoedKeyMismatchIsReportedAsEchoed(t *testing.T) {
	t.Parallel()

	client := &mockClient{CreateChargeFunc: func(_ context.Context, req models.ChargeRequest) (*models.ChargeResult, error) {
		res := sampleCharge(req)
		res.IdempotencyKey = "stored-key"
		return res, nil
	}}
	a := NewAdapter((&countingFactory{client: client}).factory())

	env := decodeEnvelope(t, a.CreateCharge(context.Background(), ChargeArgs{Amount: 10, IdempotencyKey: "sent-key"}))
	assert.Equal(t, "stored-key", env["idempotency_key"])
	assert.Equal(t, "sent-key", client.chargeRequests()[0].IdempotencyKey)
}

func TestCreateCharge_NegativeAmountRejectedLocally(t *testing.T) {
	t.Parallel()

	client := &mockClient{}
	f := &countingFactory{client: client}
	a := NewAdapter(f.factory())

	env := decodeEnvelope(t, a.CreateCharge(context.Background(), ChargeArgs{Amount: -5}))
	assert.Equal(t, false, env["success"])
	assert.Empty(t, client.chargeRequests())
	assert.Zero(t, f.acquired.Load())
}

func TestCreateCharge_MatchesDocumentedExample(t *testing.T) {
	t.Parallel()

	client := &mockClient{CreateChargeFunc: func(_ context.Context, req models.ChargeRequest) (*models.ChargeResult, error) {
		return &models.ChargeResult{
			ID:             "txn_abc",
			Amount:         5000,
			Currency:       "usd",
			Customer:       "cust_123",
			Status:         "succeeded",
			IdempotencyKey: "agent_xxxxxxxxxxxx",
			CreatedAt:      "2025-01-01T00:00:00Z",
		}, nil
	}}
	a := NewAdapter((&countingFactory{client: client}).factory(), WithKeyGenerator(func() string {
		return "agent_xxxxxxxxxxxx"
	}))

	out := a.CreateCharge(context.Background(), ChargeArgs{Amount: 5000, Currency: "usd", Customer: "cust_123"})
	assert.Equal(t,
		`{"success":true,"transaction_id":"txn_abc","amount":5000,"currency":"usd","customer":"cust_123","status":"succeeded","idempotency_key":"agent_xxxxxxxxxxxx","created_at":"2025-01-01T00:00:00Z"}`,
		out)
}

func TestSuccessEnvelopes_ExactFieldSets(t *testing.T) {
	t.Parallel()

	client := &mockClient{
		CreateChargeFunc: func(_ context.Context, req models.ChargeRequest) (*models.ChargeResult, error) {
			return sampleCharge(req), nil
		},
		RefundFunc: func(_ context.Context, id string) (*models.RefundResult, error) {
			return &models.RefundResult{ID: id, Amount: 1000, Status: "refunded", RefundedAt: "2025-11-03T10:05:00Z"}, nil
		},
		GetBalanceFunc: func(context.Context) (*models.BalanceResult, error) {
			return &models.BalanceResult{SuccessfulTransactions: 10, RefundedTransactions: 2, Balance: 5000}, nil
		},
		GetMetricsFunc: func(context.Context) (*models.MetricsResult, error) {
			return &models.MetricsResult{TotalCharges: 100, TotalRefunds: 5, PendingWebhooks: 3, DeliveredWebhooks: 95, FailedWebhooks: 2, WebhookRetries: 12}, nil
		},
		HealthCheckFunc: func(context.Context) bool { return true },
	}
	a := NewAdapter((&countingFactory{client: client}).factory())
	ctx := context.Background()

	tests := []struct {
		name string
		out  string
		keys []string
	}{
		{
			name: ToolCreateCharge,
			out:  a.CreateCharge(ctx, ChargeArgs{Amount: 1000, Customer: "cust_test"}),
			keys: []string{"amount", "created_at", "currency", "customer", "idempotency_key", "status", "success", "transaction_id"},
		},
		{
			name: ToolRefundCharge,
			out:  a.RefundCharge(ctx, "txn_test123"),
			keys: []string{"amount", "refunded_at", "status", "success", "transaction_id"},
		},
		{
			name: ToolGetAccountBalance,
			out:  a.GetAccountBalance(ctx),
			keys: []string{"balance", "refunded_transactions", "success", "successful_transactions"},
		},
		{
			name: ToolGetSystemMetrics,
			out:  a.GetSystemMetrics(ctx),
			keys: []string{"delivered_webhooks", "failed_webhooks", "pending_webhooks", "success", "total_charges", "total_refunds", "webhook_retries"},
		},
		{
			name: ToolCheckBackendHealth,
			out:  a.CheckBackendHealth(ctx),
			keys: []string{"healthy", "status", "success"},
		},
	}

	for _, tt := range tests {
		env := decodeEnvelope(t, tt.out)
		assert.Equal(t, tt.keys, keysOf(env), tt.name)
		assert.Equal(t, true, env["success"], tt.name)
	}
}

func TestFailures_BecomeEnvelopes(t *testing.T) {
	t.Parallel()

	boom := errors.New("Connection failed")
	client := &mockClient{
		CreateChargeFunc: func(context.Context, models.ChargeRequest) (*models.ChargeResult, error) { return nil, boom },
		RefundFunc:       func(context.Context, string) (*models.RefundResult, error) { return nil, boom },
		GetBalanceFunc:   func(context.Context) (*models.BalanceResult, error) { return nil, boom },
		GetMetricsFunc:   func(context.Context) (*models.MetricsResult, error) { return nil, boom },
	}
	f := &countingFactory{client: client}
	a := NewAdapter(f.factory())
	ctx := context.Background()

	outs := []string{
		a.CreateCharge(ctx, ChargeArgs{Amount: 1000, Customer: "cust_test"}),
		a.RefundCharge(ctx, "txn_abc"),
		a.GetAccountBalance(ctx),
		a.GetSystemMetrics(ctx),
	}
	for _, out := range outs {
		assert.Equal(t, `{"success":false,"error":"Connection failed"}`, out)
	}
	assert.Equal(t, int32(4), f.acquired.Load())
	assert.Equal(t, int32(4), f.released.Load())
}

func TestPanicsBecomeEnvelopesAndReleaseClient(t *testing.T) {
	t.Parallel()

	client := &mockClient{
		// A nil result without an error must not escape as a panic.
		GetBalanceFunc: func(context.Context) (*models.BalanceResult, error) { return nil, nil },
	}
	f := &countingFactory{client: client}
	a := NewAdapter(f.factory())

	env := decodeEnvelope(t, a.GetAccountBalance(context.Background()))
	assert.Equal(t, false, env["success"])
	assert.NotEmpty(t, env["error"])
	assert.Equal(t, int32(1), f.released.Load())
}

func TestFactoryFailure(t *testing.T) {
	t.Parallel()

	f := &countingFactory{err: errors.New("no sockets left")}
	a := NewAdapter(f.factory())

	env := decodeEnvelope(t, a.RefundCharge(context.Background(), "txn_abc"))
	assert.Equal(t, false, env["success"])
	assert.Contains(t, env["error"], "no sockets left")

	env = decodeEnvelope(t, a.CheckBackendHealth(context.Background()))
	assert.Equal(t, map[string]any{"success": true, "healthy": false, "status": statusUnavailable}, env)
}

func TestCheckBackendHealth(t *testing.T) {
	t.Parallel()

	up := NewAdapter((&countingFactory{client: &mockClient{HealthCheckFunc: func(context.Context) bool { return true }}}).factory())
	assert.Equal(t, `{"success":true,"healthy":true,"status":"The MiniPay backend is operational"}`, up.CheckBackendHealth(context.Background()))

	down := NewAdapter((&countingFactory{client: &mockClient{}}).factory())
	assert.Equal(t, `{"success":true,"healthy":false,"status":"The MiniPay backend is unavailable"}`, down.CheckBackendHealth(context.Background()))

	panicky := NewAdapter((&countingFactory{client: &mockClient{HealthCheckFunc: func(context.Context) bool { panic("boom") }}}).factory())
	env := decodeEnvelope(t, panicky.CheckBackendHealth(context.Background()))
	assert.Equal(t, true, env["success"])
	assert.Equal(t, false, env["healthy"])
}

func TestRefundCharge_RequiresTransactionID(t *testing.T) {
	t.Parallel()

	f := &countingFactory{client: &mockClient{}}
	a := NewAdapter(f.factory())

	assert.Equal(t, `{"success":false,"error":"transaction_id is required"}`, a.RefundCharge(context.Background(), ""))
	assert.Zero(t, f.acquired.Load())
}

func TestConcurrentInvocationsReleaseEveryClient(t *testing.T) {
	t.Parallel()

	client := &mockClient{GetMetricsFunc: func(context.Context) (*models.MetricsResult, error) {
		return &models.MetricsResult{}, nil
	}}
	f := &countingFactory{client: client}
	a := NewAdapter(f.factory())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.GetSystemMetrics(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(20), f.acquired.Load())
	assert.Equal(t, int32(20), f.released.Load())
}

//
// -----------------------------------------------------------------------------
// Against a real minipay.Client
// -----------------------------------------------------------------------------

func TestWithHTTPBackend_KeyTravelsAsHeader(t *testing.T) {
	t.Parallel()

	var (
		mu         sync.Mutex
		gotKey     string
		gotBodyKey bool
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		mu.Lock()
		gotKey = r.Header.Get(minipay.IdempotencyKeyHeader)
		_, gotBodyKey = body["idempotency_key"]
		key := gotKey
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "txn_abc", "amount": body["amount"], "currency": body["currency"],
			"customer": body["customer"], "status": "succeeded",
			"idempotency_key": key, "created_at": "2025-01-01T00:00:00Z",
		})
	}))
	defer srv.Close()

	a := NewAdapter(NewClientFactory(minipay.Config{BaseURL: srv.URL, Timeout: 2 * time.Second}))
	env := decodeEnvelope(t, a.CreateCharge(context.Background(), ChargeArgs{Amount: 5000, Customer: "cust_123"}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, true, env["success"])
	assert.Regexp(t, agentKeyPattern, gotKey)
	assert.False(t, gotBodyKey)
	assert.Equal(t, gotKey, env["idempotency_key"])
}

func TestWithHTTPBackend_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	a := NewAdapter(NewClientFactory(minipay.Config{BaseURL: url, Timeout: time.Second}))

	env := decodeEnvelope(t, a.RefundCharge(context.Background(), "txn_abc"))
	assert.Equal(t, false, env["success"])
	assert.NotEmpty(t, env["error"])
	assert.Equal(t, []string{"error", "success"}, keysOf(env))

	env = decodeEnvelope(t, a.CheckBackendHealth(context.Background()))
	assert.Equal(t, map[string]any{"success": true, "healthy": false, "status": statusUnavailable}, env)
}

func TestWithHTTPBackend_FaultsNeverEscape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"failed to fetch balance"}`))
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"unexpected":true}`))
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			a := NewAdapter(NewClientFactory(minipay.Config{BaseURL: srv.URL, Timeout: time.Second}))
			ctx := context.Background()

			for _, out := range []string{
				a.CreateCharge(ctx, ChargeArgs{Amount: 10}),
				a.RefundCharge(ctx, "txn_abc"),
				a.GetAccountBalance(ctx),
				a.GetSystemMetrics(ctx),
			} {
				env := decodeEnvelope(t, out)
				assert.Equal(t, false, env["success"])
				assert.NotEmpty(t, env["error"])
			}

			env := decodeEnvelope(t, a.CheckBackendHealth(ctx))
			assert.Equal(t, true, env["success"])
		})
	}
}
