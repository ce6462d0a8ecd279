// Package chainrpc implements the chain view-contract collaborator: a
// JSON-RPC 2.0 client speaking the dns_query / account-existence protocol
// against a configured chain RPC endpoint.
package chainrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/chainresolve/dnsbridge/records"
)

// Client is a JSON-RPC 2.0 client for the chain's naming-contract view
// calls. It does not retry: each call drives exactly one RPC, leaving retry
// policy to the caller.
type Client struct {
	// nextID must stay the first field: sync/atomic requires the 64-bit
	// value it operates on to be 8-byte aligned, which is only guaranteed
	// for the first word of an allocated struct on 32-bit platforms.
	nextID int64

	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger

	latency  *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

// Option configures a Client at construction.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client (one with a
// dnscache-wrapped dialer and a 10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger attaches a structured logger; absent one, Client logs nothing.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRegisterer registers the Client's metrics with reg instead of the
// default Prometheus registry. A nil Registerer disables registration.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) { c.registerMetrics(reg) }
}

// New builds a Client against endpoint (a chain JSON-RPC HTTP URL).
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: NewDNSCachingTransport(),
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.latency == nil {
		c.registerMetrics(prometheus.DefaultRegisterer)
	}
	return c
}

func (c *Client) registerMetrics(reg prometheus.Registerer) {
	c.latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "dnsbridge_chainrpc_call_duration_seconds",
		Help: "Chain RPC call latency, by method and outcome.",
	}, []string{"method", "outcome"})
	c.outcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dnsbridge_chainrpc_calls_total",
		Help: "Chain RPC calls, by method and outcome (ok, negative, error).",
	}, []string{"method", "outcome"})
	if reg != nil {
		reg.MustRegister(c.latency, c.outcomes)
	}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("chain rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	start := time.Now()
	id := c.nextRequestID()

	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("chainrpc: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chainrpc: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(method, "error", start)
		return fmt.Errorf("chainrpc: %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(method, "error", start)
		return fmt.Errorf("chainrpc: read response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		c.observe(method, "error", start)
		return fmt.Errorf("chainrpc: decode response: %w", err)
	}

	if rpcResp.Error != nil {
		c.observe(method, "negative", start)
		return rpcResp.Error
	}

	if out != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			c.observe(method, "error", start)
			return fmt.Errorf("chainrpc: decode result: %w", err)
		}
	}

	c.observe(method, "ok", start)
	return nil
}

func (c *Client) observe(method, outcome string, start time.Time) {
	c.latency.WithLabelValues(method, outcome).Observe(time.Since(start).Seconds())
	c.outcomes.WithLabelValues(method, outcome).Inc()
}

func (c *Client) nextRequestID() int64 {
	return atomic.AddInt64(&c.nextID, 1)
}

// AccountExists checks whether accountID resolves to a deployed chain
// account by invoking the chain's account-view method. A negative signal is
// returned as (false, err) so the caller can classify it rather than this
// client silently swallowing it.
func (c *Client) AccountExists(ctx context.Context, accountID string) (bool, error) {
	params := map[string]string{"account_id": accountID}
	var result struct {
		CodeHash string `json:"code_hash"`
	}
	if err := c.call(ctx, "view_account", params, &result); err != nil {
		return false, err
	}
	return true, nil
}

// DNSQuery invokes contractID's dns_query(name, record_type) view function.
func (c *Client) DNSQuery(ctx context.Context, contractID, name, recordType string) ([]records.StoredRecord, error) {
	params := map[string]string{
		"contract_id": contractID,
		"name":        name,
		"record_type": recordType,
	}
	var result []records.StoredRecord
	if err := c.call(ctx, "dns_query", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}
