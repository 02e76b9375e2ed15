package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/baditaflorin/go_pair_features/internal/adapters/capture"
	"github.com/baditaflorin/go_pair_features/internal/adapters/classifier"
	"github.com/baditaflorin/go_pair_features/internal/adapters/logger"
	"github.com/baditaflorin/go_pair_features/internal/adapters/normalizer"
	"github.com/baditaflorin/go_pair_features/internal/adapters/telemetry"
	"github.com/baditaflorin/go_pair_features/internal/core/domain"
	"github.com/baditaflorin/go_pair_features/internal/core/pipeline"
	"github.com/baditaflorin/go_pair_features/internal/npy"
	"github.com/baditaflorin/go_pair_features/internal/ports"
)

type failingClassifier struct{}

func (failingClassifier) Predict(context.Context, domain.MetricVector) (domain.Decision, error) {
	return domain.Decision{}, errors.New("model unavailable")
}

type harness struct {
	client  *fasthttp.Client
	store   *capture.Store
	metrics *telemetry.Metrics
}

func newHarness(t *testing.T, cls ports.Classifier) *harness {
	t.Helper()

	calc, err := pipeline.NewCalculator(pipeline.DefaultConfig(), logger.NewNopLogger(), normalizer.NewOptimizedNormalizer())
	require.NoError(t, err)

	store, err := capture.Open(capture.Config{Path: filepath.Join(t.TempDir(), "captures.db"), SamplingPercentage: 100})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	metrics := telemetry.New(telemetry.Config{Namespace: "test", ServiceName: "svc"})

	srv, err := New(DefaultConfig(), Deps{
		Extractor:  calc,
		Classifier: cls,
		Capture:    store,
		Telemetry:  metrics,
		Logger:     logger.NewNopLogger(),
	})
	require.NoError(t, err)

	ln := fasthttputil.NewInmemoryListener()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	return &harness{
		client:  &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }},
		store:   store,
		metrics: metrics,
	}
}

func (h *harness) do(t *testing.T, method, path, contentType, accept string, body []byte, headers ...string) *fasthttp.Response {
	t.Helper()
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI("http://pairfeat" + path)
	req.Header.SetMethod(method)
	if contentType != "" {
		req.Header.SetContentType(contentType)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	if body != nil {
		req.SetBody(body)
	}

	resp := &fasthttp.Response{}
	require.NoError(t, h.client.DoTimeout(req, resp, 5*time.Second))
	return resp
}

func linearModel(t *testing.T) ports.Classifier {
	t.Helper()
	weights := make([]float64, 23)
	weights[2] = -10 // l1
	m, err := classifier.NewLinear(classifier.Artifact{Weights: weights, Intercept: 5})
	require.NoError(t, err)
	return m
}

const catDog = `{"s1": "the cat sat", "s2": "the dog sat"}`

func TestPing(t *testing.T) {
	h := newHarness(t, nil)
	resp := h.do(t, fasthttp.MethodGet, PathPing, "", "", nil)
	assert.Equal(t, fasthttp.StatusOK, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), `"status":"ok"`)

	resp = h.do(t, fasthttp.MethodPost, PathPing, "", "", nil)
	assert.Equal(t, fasthttp.StatusMethodNotAllowed, resp.StatusCode())
}

func TestNotFound(t *testing.T) {
	h := newHarness(t, nil)
	resp := h.do(t, fasthttp.MethodGet, "/nope", "", "", nil)
	assert.Equal(t, fasthttp.StatusNotFound, resp.StatusCode())
}

func TestFeaturesJSON(t *testing.T) {
	h := newHarness(t, nil)
	resp := h.do(t, fasthttp.MethodPost, PathFeatures, "application/json", "", []byte(catDog), HeaderInferenceID, "req-1")
	require.Equal(t, fasthttp.StatusOK, resp.StatusCode(), string(resp.Body()))
	assert.Equal(t, "req-1", string(resp.Header.Peek(HeaderInferenceID)))

	var out FeaturesResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &out))
	require.Len(t, out.Features, 23)
	require.Len(t, out.Names, 23)
	assert.Equal(t, "euclidean", out.Names[0])
	assert.InDelta(t, 0.64853, *out.Features[0], 1e-9)
	assert.Equal(t, 1, out.Repaired)
	assert.Equal(t, 4, out.VocabularySize)

	e, ok, err := h.store.Get(context.Background(), "req-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, e.Decision)
	assert.Equal(t, "the cat sat", e.Input.S1)
}

func TestFeaturesCSVAndNPY(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.do(t, fasthttp.MethodPost, PathFeatures, "application/json", "text/csv", []byte(catDog))
	require.Equal(t, fasthttp.StatusOK, resp.StatusCode())
	fields := strings.Split(strings.TrimSpace(string(resp.Body())), ",")
	assert.Len(t, fields, 23)
	assert.Equal(t, "0.64853", fields[0])

	resp = h.do(t, fasthttp.MethodPost, PathFeatures, "application/json", npy.ContentType, []byte(catDog))
	require.Equal(t, fasthttp.StatusOK, resp.StatusCode())
	arr, err := npy.Read(bytes.NewReader(resp.Body()))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 23}, arr.Shape)
	assert.InDelta(t, 0.64853, arr.Data[0], 1e-9)
}

func TestFeaturesGeneratesInferenceID(t *testing.T) {
	h := newHarness(t, nil)
	resp := h.do(t, fasthttp.MethodPost, PathFeatures, "application/json", "", []byte(catDog))
	require.Equal(t, fasthttp.StatusOK, resp.StatusCode())
	assert.Len(t, string(resp.Header.Peek(HeaderInferenceID)), 36)
}

func TestFeaturesRejects(t *testing.T) {
	h := newHarness(t, nil)

	tests := []struct {
		name        string
		method      string
		contentType string
		accept      string
		body        string
		status      int
	}{
		{name: "missing s2", method: "POST", contentType: "application/json", body: `{"s1": "x"}`, status: 400},
		{name: "null s1", method: "POST", contentType: "application/json", body: `{"s1": null, "s2": "x"}`, status: 400},
		{name: "not json", method: "POST", contentType: "application/json", body: `s1=x`, status: 400},
		{name: "wrong content type", method: "POST", contentType: "text/plain", body: catDog, status: 415},
		{name: "wrong accept", method: "POST", contentType: "application/json", accept: "text/html", body: catDog, status: 406},
		{name: "wrong method", method: "GET", status: 405},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var body []byte
			if tc.body != "" {
				body = []byte(tc.body)
			}
			resp := h.do(t, tc.method, PathFeatures, tc.contentType, tc.accept, body)
			assert.Equal(t, tc.status, resp.StatusCode(), string(resp.Body()))
		})
	}

	resp := h.do(t, "POST", PathFeatures, "application/json", "", []byte(`{"s1": "x"}`))
	var out ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &out))
	assert.Equal(t, "s2", out.Field)
	assert.Contains(t, out.Error, "missing required data")
}

func TestInvocationsCSV(t *testing.T) {
	h := newHarness(t, linearModel(t))

	// l1 scales to 1 for this pair, so z = -5
	resp := h.do(t, fasthttp.MethodPost, PathInvocations, "application/json", "", []byte(catDog), HeaderInferenceID, "inv-1")
	require.Equal(t, fasthttp.StatusOK, resp.StatusCode(), string(resp.Body()))
	assert.Equal(t, "0\n", string(resp.Body()))

	e, ok, err := h.store.Get(context.Background(), "inv-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, e.Decision)
	assert.Equal(t, 0.0, e.Decision.Label)
}

func TestInvocationsJSON(t *testing.T) {
	h := newHarness(t, linearModel(t))

	resp := h.do(t, fasthttp.MethodPost, PathInvocations, "application/json", "application/json",
		[]byte(`{"s1": "same words", "s2": "same words"}`))
	require.Equal(t, fasthttp.StatusOK, resp.StatusCode(), string(resp.Body()))

	var out InvocationResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &out))
	assert.Equal(t, 1.0, out.Label)
	assert.Greater(t, out.Score, 0.5)
	assert.NotEmpty(t, out.InferenceID)
}

func TestInvocationsClassifierFailure(t *testing.T) {
	h := newHarness(t, failingClassifier{})
	resp := h.do(t, fasthttp.MethodPost, PathInvocations, "application/json", "", []byte(catDog))
	assert.Equal(t, fasthttp.StatusBadGateway, resp.StatusCode())
}

func TestInvocationsWithoutClassifier(t *testing.T) {
	h := newHarness(t, nil)
	resp := h.do(t, fasthttp.MethodPost, PathInvocations, "application/json", "", []byte(catDog))
	assert.Equal(t, fasthttp.StatusServiceUnavailable, resp.StatusCode())
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	h.do(t, fasthttp.MethodPost, PathFeatures, "application/json", "", []byte(catDog))

	resp := h.do(t, fasthttp.MethodGet, PathMetrics, "", "", nil)
	require.Equal(t, fasthttp.StatusOK, resp.StatusCode())
	body := string(resp.Body())
	assert.Contains(t, body, `test_requests_total{endpoint="/features",service="svc",status="200"} 1`)
	assert.Contains(t, body, "test_extractions_total")
}

func TestFormatCSV(t *testing.T) {
	assert.Equal(t, "0.5,nan,inf,-inf,1", FormatCSV(domain.MetricVector{0.5, math.NaN(), math.Inf(1), math.Inf(-1), 1}))
	assert.Equal(t, "", FormatCSV(nil))
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		accept string
		want   string
		ok     bool
	}{
		{accept: "", want: "text/csv", ok: true},
		{accept: "*/*", want: "text/csv", ok: true},
		{accept: "application/json", want: "application/json", ok: true},
		{accept: "text/html, application/json;q=0.9", want: "application/json", ok: true},
		{accept: "text/html", ok: false},
	}
	for _, tc := range tests {
		got, ok := negotiate(tc.accept, "text/csv", "text/csv", "application/json")
		assert.Equal(t, tc.ok, ok, tc.accept)
		assert.Equal(t, tc.want, got, tc.accept)
	}
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := New(DefaultConfig(), Deps{Logger: logger.NewNopLogger()})
	assert.Error(t, err)
}
