package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"mime"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/baditaflorin/go_pair_features/internal/adapters/payload"
	"github.com/baditaflorin/go_pair_features/internal/core/domain"
	"github.com/baditaflorin/go_pair_features/internal/npy"
	"github.com/baditaflorin/go_pair_features/internal/ports"
)

const (
	contentTypeJSON = "application/json"
	contentTypeCSV  = "text/csv"
	contentTypeNPY  = npy.ContentType
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// FeaturesResponse is the JSON form of a feature vector. Non-finite values
// are rendered as null.
type FeaturesResponse struct {
	InferenceID    string     `json:"inference_id,omitempty"`
	Names          []string   `json:"names"`
	Features       []*float64 `json:"features"`
	Repaired       int        `json:"repaired"`
	VocabularySize int        `json:"vocabulary_size"`
}

// NewFeaturesResponse builds the JSON form of res.
func NewFeaturesResponse(id string, names []string, res domain.Result) FeaturesResponse {
	return FeaturesResponse{
		InferenceID:    id,
		Names:          names,
		Features:       nullable(res.Features),
		Repaired:       res.Repaired,
		VocabularySize: len(res.Vocabulary),
	}
}

// InvocationResponse is the JSON form of a classifier decision.
type InvocationResponse struct {
	InferenceID string  `json:"inference_id"`
	Label       float64 `json:"label"`
	Score       float64 `json:"score"`
}

func (s *Server) handlePing(ctx *fasthttp.RequestCtx) {
	if !ctx.IsGet() && !ctx.IsHead() {
		writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
	writeJSON(ctx, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleMetrics(ctx *fasthttp.RequestCtx) {
	if s.metrics == nil {
		writeError(ctx, fasthttp.StatusNotFound, "metrics disabled")
		return
	}
	if !ctx.IsGet() {
		writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.metrics(ctx)
}

// extract runs the shared front half of /invocations and /features. It writes
// the error response itself and reports false on failure.
func (s *Server) extract(ctx *fasthttp.RequestCtx) (domain.RawPair, domain.Result, string, bool) {
	id := string(ctx.Request.Header.Peek(HeaderInferenceID))
	if id == "" {
		id = s.newID()
	}
	ctx.Response.Header.Set(HeaderInferenceID, id)

	if !acceptsJSONBody(string(ctx.Request.Header.ContentType())) {
		writeError(ctx, fasthttp.StatusUnsupportedMediaType, "content type must be application/json")
		return domain.RawPair{}, domain.Result{}, id, false
	}

	pair, err := payload.Decode(ctx.PostBody())
	if err != nil {
		writeValidationError(ctx, err)
		return domain.RawPair{}, domain.Result{}, id, false
	}

	c, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
	defer cancel()

	res, err := s.extractor.Compute(c, pair)
	if err != nil {
		s.logger.Error("Feature extraction failed", "inference_id", id, "error", err)
		writeError(ctx, fasthttp.StatusServiceUnavailable, "feature extraction did not complete")
		return pair, domain.Result{}, id, false
	}
	s.telemetry.ObserveFeatures(s.extractor.MetricNames(), res.Features, res.Repaired)
	return pair, res, id, true
}

func (s *Server) handleInvocations(ctx *fasthttp.RequestCtx) {
	if !ctx.IsPost() {
		writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.classifier == nil {
		writeError(ctx, fasthttp.StatusServiceUnavailable, "no classifier configured")
		return
	}

	accept, ok := negotiate(string(ctx.Request.Header.Peek("Accept")), s.cfg.DefaultAccept, contentTypeCSV, contentTypeJSON)
	if !ok {
		writeError(ctx, fasthttp.StatusNotAcceptable, "supported response types: text/csv, application/json")
		return
	}

	pair, res, id, ok := s.extract(ctx)
	if !ok {
		return
	}

	c, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
	defer cancel()

	decision, err := s.classifier.Predict(c, res.Features)
	if err != nil {
		s.logger.Error("Classifier failed", "inference_id", id, "error", err)
		writeError(ctx, fasthttp.StatusBadGateway, "classifier failed")
		return
	}

	s.save(id, pair, res.Features, &decision)

	ctx.SetStatusCode(fasthttp.StatusOK)
	switch accept {
	case contentTypeJSON:
		writeJSON(ctx, InvocationResponse{InferenceID: id, Label: decision.Label, Score: decision.Score})
	default:
		ctx.SetContentType(contentTypeCSV)
		ctx.SetBodyString(strconv.FormatFloat(decision.Label, 'f', -1, 64) + "\n")
	}
}

func (s *Server) handleFeatures(ctx *fasthttp.RequestCtx) {
	if !ctx.IsPost() {
		writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
		return
	}
	accept, ok := negotiate(string(ctx.Request.Header.Peek("Accept")), contentTypeJSON, contentTypeJSON, contentTypeCSV, contentTypeNPY)
	if !ok {
		writeError(ctx, fasthttp.StatusNotAcceptable, "supported response types: application/json, text/csv, application/x-npy")
		return
	}

	pair, res, id, ok := s.extract(ctx)
	if !ok {
		return
	}
	s.save(id, pair, res.Features, nil)

	ctx.SetStatusCode(fasthttp.StatusOK)
	switch accept {
	case contentTypeCSV:
		ctx.SetContentType(contentTypeCSV)
		ctx.SetBodyString(FormatCSV(res.Features) + "\n")
	case contentTypeNPY:
		var buf bytes.Buffer
		if err := npy.Write(&buf, npy.Row(res.Features)); err != nil {
			s.logger.Error("Error encoding NPY response", "error", err)
			writeError(ctx, fasthttp.StatusInternalServerError, "internal server error")
			return
		}
		ctx.SetContentType(contentTypeNPY)
		ctx.SetBody(buf.Bytes())
	default:
		writeJSON(ctx, NewFeaturesResponse(id, s.extractor.MetricNames(), res))
	}
}

func (s *Server) save(id string, pair domain.RawPair, features domain.MetricVector, decision *domain.Decision) {
	if s.capture == nil {
		return
	}
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.capture.Save(c, ports.CaptureRecord{
		InferenceID: id,
		CapturedAt:  time.Now(),
		Input:       pair,
		Features:    features,
		Decision:    decision,
	})
	if err != nil {
		s.logger.Warn("Capture failed", "inference_id", id, "error", err)
	}
}

// FormatCSV renders a vector as one CSV record. Non-finite values are
// written as nan, inf or -inf.
func FormatCSV(v domain.MetricVector) string {
	var sb strings.Builder
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		switch {
		case math.IsNaN(x):
			sb.WriteString("nan")
		case math.IsInf(x, 1):
			sb.WriteString("inf")
		case math.IsInf(x, -1):
			sb.WriteString("-inf")
		default:
			sb.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
		}
	}
	return sb.String()
}

func nullable(v domain.MetricVector) []*float64 {
	out := make([]*float64, len(v))
	for i := range v {
		if math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
			continue
		}
		out[i] = &v[i]
	}
	return out
}

func acceptsJSONBody(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == contentTypeJSON
}

// negotiate picks the first supported type listed in accept. Wildcards and an
// empty header select fallback.
func negotiate(accept, fallback string, supported ...string) (string, bool) {
	if strings.TrimSpace(accept) == "" {
		return fallback, true
	}
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if mediaType == "*/*" {
			return fallback, true
		}
		for _, t := range supported {
			if mediaType == t {
				return t, true
			}
		}
	}
	return "", false
}

func writeValidationError(ctx *fasthttp.RequestCtx, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	ctx.SetStatusCode(fasthttp.StatusBadRequest)
	writeJSON(ctx, resp)
}

// writeJSON writes a JSON response to the context
func writeJSON(ctx *fasthttp.RequestCtx, data interface{}) {
	response, err := json.Marshal(data)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetContentType(contentTypeJSON)
		ctx.SetBodyString(`{"error":"internal server error"}`)
		return
	}
	ctx.SetContentType(contentTypeJSON)
	ctx.SetBody(response)
}

// writeError writes a JSON error response to the context
func writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	ctx.SetStatusCode(status)
	writeJSON(ctx, ErrorResponse{Error: message})
}
