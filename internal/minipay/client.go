// Package minipay is the HTTP client for the MiniPay payment backend. Every
// operation except HealthCheck returns a *ConnectionError, *StatusError or
// *ShapeError on failure.
package minipay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/agent-tools/internal/models"
	"github.com/akylbek/payment-system/agent-tools/internal/telemetry"
)

const (
	DefaultBaseURL  = "http://localhost:8080"
	DefaultTimeout  = 30 * time.Second
	DefaultCurrency = "usd"

	// HealthCheckTimeout applies regardless of Config.Timeout.
	HealthCheckTimeout = 5 * time.Second

	IdempotencyKeyHeader = "Idempotency-Key"

	maxResponseBytes = 1 << 20
)

const (
	chargesPath = "/api/v1/charges"
	refundsPath = "/api/v1/refunds"
	balancePath = "/api/v1/balance"
	metricsPath = "/metrics"
	healthPath  = "/health"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	baseURL       string
	timeout       time.Duration
	healthTimeout time.Duration
	httpClient    *http.Client
	closed        atomic.Bool
}

type Option func(*Client)

// WithHTTPClient replaces the client's own transport. Close still releases
// the idle connections of the supplied client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL:       baseURL,
		timeout:       timeout,
		healthTimeout: HealthCheckTimeout,
		httpClient: &http.Client{
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) CreateCharge(ctx context.Context, req models.ChargeRequest) (*models.ChargeResult, error) {
	const op = "create charge"

	if req.Currency == "" {
		req.Currency = DefaultCurrency
	}
	var headers map[string]string
	if req.IdempotencyKey != "" {
		headers = map[string]string{IdempotencyKeyHeader: req.IdempotencyKey}
	}

	data, err := c.send(ctx, op, http.MethodPost, chargesPath, req, headers)
	if err != nil {
		return nil, err
	}
	result, err := decodeCharge(data)
	return result, withOp(op, err)
}

func (c *Client) Refund(ctx context.Context, transactionID string) (*models.RefundResult, error) {
	const op = "refund"

	data, err := c.send(ctx, op, http.MethodPost, refundsPath, models.RefundRequest{TransactionID: transactionID}, nil)
	if err != nil {
		return nil, err
	}
	result, err := decodeRefund(data)
	return result, withOp(op, err)
}

func (c *Client) GetBalance(ctx context.Context) (*models.BalanceResult, error) {
	const op = "get balance"

	data, err := c.send(ctx, op, http.MethodGet, balancePath, nil, nil)
	if err != nil {
		return nil, err
	}
	result, err := decodeBalance(data)
	return result, withOp(op, err)
}

func (c *Client) GetMetrics(ctx context.Context) (*models.MetricsResult, error) {
	const op = "get metrics"

	data, err := c.send(ctx, op, http.MethodGet, metricsPath, nil, nil)
	if err != nil {
		return nil, err
	}
	result, err := decodeMetrics(data)
	return result, withOp(op, err)
}

// HealthCheck reports whether the backend answered GET /health with 200.
// Every failure, including a closed client, is reported as false.
func (c *Client) HealthCheck(ctx context.Context) bool {
	if c.closed.Load() {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		telemetry.Logger.Debug("Health check request could not be built", zap.Error(err))
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.Logger.Debug("Health check failed",
			zap.String("base_url", c.baseURL),
			zap.Error(err),
		)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	return resp.StatusCode == http.StatusOK
}

// Close releases pooled connections. Calling it again is a no-op.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) send(ctx context.Context, op, method, path string, payload any, headers map[string]string) ([]byte, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("%s: %w", op, ErrClientClosed)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := telemetry.Tracer().Start(ctx, "minipay "+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", c.baseURL+path),
		),
	)
	defer span.End()

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return nil, &ConnectionError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failure")
		return nil, &ConnectionError{Op: op, Err: err}
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	telemetry.Logger.Debug("MiniPay request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		return nil, newStatusError(op, resp.StatusCode, data)
	}
	return data, nil
}

func withOp(op string, err error) error {
	if err == nil {
		return nil
	}
	if shapeErr, ok := err.(*ShapeError); ok {
		shapeErr.Op = op
		return shapeErr
	}
	return err
}
