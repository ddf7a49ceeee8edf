package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sentinel-hq/bastion/pkg/audit"
	"sentinel-hq/bastion/pkg/config"
	"sentinel-hq/bastion/pkg/decision"
	"sentinel-hq/bastion/pkg/evaluation"
	"sentinel-hq/bastion/pkg/policystore"

	"github.com/prometheus/client_golang/prometheus"

	"sentinel-hq/bastion/pkg/telemetry/metrics"
)

// fixedScorer always returns the same score.
type fixedScorer struct {
	score float64
}

func (s fixedScorer) Score(ctx context.Context, conn decision.Connection) (float64, error) {
	return s.score, nil
}

func newTestServer(t *testing.T, score float64, policies ...decision.Policy) (*Server, policystore.Store) {
	t.Helper()

	store := policystore.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	for _, p := range policies {
		if err := store.Create(context.Background(), p); err != nil {
			t.Fatalf("Create(%s) error = %v", p.ID, err)
		}
	}

	records := audit.NewMemoryStore()
	t.Cleanup(func() { records.Close() })

	collector := metrics.NewCollector(&config.MetricsConfig{
		Enabled:   true,
		Namespace: "bastion",
		Subsystem: "firewall",
	}, prometheus.NewRegistry())

	evaluator := evaluation.NewEvaluator(store, fixedScorer{score: score}, records, collector, nil)

	cfg := config.DefaultConfig()
	srv := New(Options{
		Config:      &cfg.Server,
		Evaluator:   evaluator,
		Policies:    store,
		Collector:   collector,
		MetricsPath: "/metrics",
		Version:     "test",
	})
	return srv, store
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func validConnectionBody() map[string]any {
	return map[string]any{
		"source_ip":        "203.0.113.50",
		"destination_ip":   "10.0.0.5",
		"destination_port": 22,
		"protocol":         "TCP",
	}
}

func TestEvaluateConnectionBlockedByPolicy(t *testing.T) {
	block := decision.Policy{
		ID: "P-SSH-BLOCK",
		Conditions: []decision.Condition{
			{Field: decision.FieldDestinationPort, Operator: decision.OperatorEqual, Value: "22"},
		},
		Action: decision.DecisionBlock,
	}
	srv, _ := newTestServer(t, 0.1, block)
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/connection", validConnectionBody())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result evaluation.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if result.Decision != decision.DecisionBlock {
		t.Errorf("Decision = %q, want block", result.Decision)
	}
	if result.AnomalyScore != 0.0 {
		t.Errorf("AnomalyScore = %v, want 0.0", result.AnomalyScore)
	}
	if result.ConnectionID == "" {
		t.Error("ConnectionID should be assigned")
	}
}

func TestEvaluateConnectionScored(t *testing.T) {
	srv, _ := newTestServer(t, 0.85)
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/connection", validConnectionBody())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result evaluation.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if result.Decision != decision.DecisionBlock {
		t.Errorf("Decision = %q, want block for score 0.85", result.Decision)
	}
	if result.AnomalyScore != 0.85 {
		t.Errorf("AnomalyScore = %v, want 0.85", result.AnomalyScore)
	}
}

func TestEvaluateConnectionValidation(t *testing.T) {
	srv, _ := newTestServer(t, 0.1)
	handler := srv.Handler()

	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing source ip", func(m map[string]any) { m["source_ip"] = "" }},
		{"malformed source ip", func(m map[string]any) { m["source_ip"] = "not-an-ip" }},
		{"missing destination ip", func(m map[string]any) { m["destination_ip"] = "" }},
		{"port zero", func(m map[string]any) { m["destination_port"] = 0 }},
		{"port too large", func(m map[string]any) { m["destination_port"] = 70000 }},
		{"unknown protocol", func(m map[string]any) { m["protocol"] = "ICMP" }},
		{"bad timestamp", func(m map[string]any) { m["timestamp"] = "yesterday" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validConnectionBody()
			tt.mutate(body)

			rec := doJSON(t, handler, http.MethodPost, "/connection", body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422; body = %s", rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), "detail") {
				t.Errorf("body %q missing detail field", rec.Body.String())
			}
		})
	}
}

func TestGetConnection(t *testing.T) {
	srv, _ := newTestServer(t, 0.3)
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/connection", validConnectionBody())
	if rec.Code != http.StatusOK {
		t.Fatalf("evaluate status = %d", rec.Code)
	}
	var result evaluation.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}

	rec = doJSON(t, handler, http.MethodGet, "/connection/"+result.ConnectionID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var stored audit.ConnectionRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &stored); err != nil {
		t.Fatalf("failed to decode record: %v", err)
	}
	if stored.ConnectionID != result.ConnectionID {
		t.Errorf("ConnectionID = %q, want %q", stored.ConnectionID, result.ConnectionID)
	}

	rec = doJSON(t, handler, http.MethodGet, "/connection/no-such-id", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing connection status = %d, want 404", rec.Code)
	}
}

func TestPolicyCRUD(t *testing.T) {
	srv, _ := newTestServer(t, 0.1)
	handler := srv.Handler()

	policy := map[string]any{
		"policy_id": "P-TELNET",
		"conditions": []map[string]any{
			{"field": "destination_port", "operator": "=", "value": "23"},
		},
		"action": "block",
	}

	// Create
	rec := doJSON(t, handler, http.MethodPost, "/policy", policy)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Duplicate create conflicts
	rec = doJSON(t, handler, http.MethodPost, "/policy", policy)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", rec.Code)
	}

	// Get
	rec = doJSON(t, handler, http.MethodGet, "/policy/P-TELNET", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got decision.Policy
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode policy: %v", err)
	}
	if got.Action != decision.DecisionBlock {
		t.Errorf("Action = %q, want block", got.Action)
	}

	// List
	rec = doJSON(t, handler, http.MethodGet, "/policy", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list []decision.Policy
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("list returned %d policies, want 1", len(list))
	}

	// Update
	policy["action"] = "alert"
	rec = doJSON(t, handler, http.MethodPut, "/policy/P-TELNET", policy)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Delete
	rec = doJSON(t, handler, http.MethodDelete, "/policy/P-TELNET", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	// Gone
	rec = doJSON(t, handler, http.MethodGet, "/policy/P-TELNET", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPut, "/policy/P-TELNET", policy)
	if rec.Code != http.StatusNotFound {
		t.Errorf("update missing status = %d, want 404", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodDelete, "/policy/P-TELNET", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete missing status = %d, want 404", rec.Code)
	}
}

func TestPolicyValidation(t *testing.T) {
	srv, _ := newTestServer(t, 0.1)
	handler := srv.Handler()

	tests := []struct {
		name string
		body map[string]any
	}{
		{
			name: "missing id",
			body: map[string]any{
				"conditions": []map[string]any{{"field": "destination_port", "operator": "=", "value": "23"}},
				"action":     "block",
			},
		},
		{
			name: "no conditions",
			body: map[string]any{"policy_id": "P-EMPTY", "conditions": []map[string]any{}, "action": "block"},
		},
		{
			name: "unknown action",
			body: map[string]any{
				"policy_id":  "P-BAD-ACTION",
				"conditions": []map[string]any{{"field": "destination_port", "operator": "=", "value": "23"}},
				"action":     "quarantine",
			},
		},
		{
			name: "unknown field",
			body: map[string]any{
				"policy_id":  "P-BAD-FIELD",
				"conditions": []map[string]any{{"field": "ttl", "operator": "=", "value": "64"}},
				"action":     "block",
			},
		},
		{
			name: "unknown operator",
			body: map[string]any{
				"policy_id":  "P-BAD-OP",
				"conditions": []map[string]any{{"field": "destination_port", "operator": "~", "value": "23"}},
				"action":     "block",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/policy", tt.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422; body = %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, 0.1)
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("health body %q missing status", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 0.85)
	handler := srv.Handler()

	// Drive one evaluation so counters move.
	doJSON(t, handler, http.MethodPost, "/connection", validConnectionBody())

	rec := doJSON(t, handler, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "bastion_firewall_evaluations_total") {
		t.Error("metrics exposition missing evaluation counter")
	}
}

func TestRequestIDPropagation(t *testing.T) {
	srv, _ := newTestServer(t, 0.1)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "client-supplied-id" {
		t.Errorf("X-Request-ID = %q, want client-supplied-id", got)
	}

	// Server generates one when the client does not supply it.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID should be generated")
	}
}

func TestListPoliciesPreservesOrder(t *testing.T) {
	srv, store := newTestServer(t, 0.1)
	handler := srv.Handler()

	for i := 0; i < 4; i++ {
		p := decision.Policy{
			ID: fmt.Sprintf("P-%d", i),
			Conditions: []decision.Condition{
				{Field: decision.FieldDestinationPort, Operator: decision.OperatorEqual, Value: "80"},
			},
			Action: decision.DecisionAllow,
		}
		if err := store.Create(context.Background(), p); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	rec := doJSON(t, handler, http.MethodGet, "/policy", nil)
	var list []decision.Policy
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	for i, p := range list {
		want := fmt.Sprintf("P-%d", i)
		if p.ID != want {
			t.Errorf("list[%d].ID = %q, want %q", i, p.ID, want)
		}
	}
}

func TestRateLimitedServer(t *testing.T) {
	store := policystore.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	records := audit.NewMemoryStore()
	t.Cleanup(func() { records.Close() })
	evaluator := evaluation.NewEvaluator(store, fixedScorer{score: 0.1}, records, nil, nil)

	cfg := config.DefaultConfig()
	cfg.Server.RateLimit = config.RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 0.001,
		Burst:             2,
	}
	srv := New(Options{
		Config:    &cfg.Server,
		Evaluator: evaluator,
		Policies:  store,
		Version:   "test",
	})
	t.Cleanup(func() { srv.limiter.Stop() })
	handler := srv.Handler()

	for i := 0; i < 2; i++ {
		rec := doJSON(t, handler, http.MethodGet, "/health", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want %d", i, rec.Code, http.StatusOK)
		}
	}

	rec := doJSON(t, handler, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if !strings.Contains(rec.Body.String(), "rate limit exceeded") {
		t.Errorf("body = %q", rec.Body.String())
	}

	// Handler() hands out the same chain every time: the exhausted
	// bucket is still exhausted through a second reference.
	rec = doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second Handler() status = %d, want %d: limiter state not shared", rec.Code, http.StatusTooManyRequests)
	}
}
