package replay

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"

	"github.com/baditaflorin/go_pair_features/internal/adapters/payload"
	"github.com/baditaflorin/go_pair_features/internal/ports"
)

// HeaderInferenceID is sent with every request.
const HeaderInferenceID = "X-Inference-Id"

// Config configures a replay run.
type Config struct {
	// URL is the full invocation endpoint, e.g. http://localhost:8080/invocations.
	URL         string
	Concurrency int
	Timeout     time.Duration
	// Accept is the requested response type; text/csv matches the service default.
	Accept string
	// Client overrides the default fasthttp client, mainly for tests.
	Client *fasthttp.Client
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		URL:         "http://localhost:8080/invocations",
		Concurrency: 4,
		Timeout:     30 * time.Second,
		Accept:      "text/csv",
	}
}

// Inference is the recorded outcome of one row.
type Inference struct {
	Input  payload.Request `json:"input"`
	Result [][]string      `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Output is the file written after a run. Each element maps one inference id
// to its outcome.
type Output struct {
	Inferences []map[string]Inference `json:"inferences"`
}

// Summary counts the outcomes of a run.
type Summary struct {
	Sent     int
	Failed   int
	Duration time.Duration
}

// Runner sends rows to the endpoint.
type Runner struct {
	cfg    Config
	client *fasthttp.Client
	logger ports.Logger
}

// NewRunner creates a runner.
func NewRunner(cfg Config, logger ports.Logger) (*Runner, error) {
	if cfg.URL == "" {
		return nil, errors.New("replay: url is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Accept == "" {
		cfg.Accept = "text/csv"
	}
	client := cfg.Client
	if client == nil {
		client = &fasthttp.Client{
			Name:                "pairfeat-replay",
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxConnsPerHost:     cfg.Concurrency,
			MaxIdleConnDuration: time.Minute,
		}
	}
	return &Runner{cfg: cfg, client: client, logger: logger}, nil
}

// Run sends every row, at most Concurrency at a time. A failed row is recorded
// in the output and does not stop the run; only ctx cancellation does.
// tracker may be nil.
func (r *Runner) Run(ctx context.Context, rows []Row, tracker *progress.Tracker) (Output, Summary, error) {
	start := time.Now()
	results := make([]Inference, len(rows))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for i, row := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			inf, err := r.send(gctx, row)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failed.Add(1)
				inf.Error = err.Error()
				r.logger.Warn("Replay request failed", "inference_id", row.InferenceID, "error", err)
			}
			results[i] = inf
			if tracker != nil {
				tracker.Increment(1)
			}
			return nil
		})
	}

	err := g.Wait()
	if tracker != nil {
		if err != nil {
			tracker.MarkAsErrored()
		} else {
			tracker.MarkAsDone()
		}
	}

	out := Output{Inferences: make([]map[string]Inference, 0, len(rows))}
	for i, row := range rows {
		out.Inferences = append(out.Inferences, map[string]Inference{row.InferenceID: results[i]})
	}
	summary := Summary{Sent: len(rows), Failed: int(failed.Load()), Duration: time.Since(start)}
	r.logger.Info("Replay finished",
		"sent", summary.Sent,
		"failed", summary.Failed,
		"duration", summary.Duration,
	)
	if err != nil {
		return out, summary, fmt.Errorf("replay: %w", err)
	}
	return out, summary, nil
}

func (r *Runner) send(ctx context.Context, row Row) (Inference, error) {
	inf := Inference{Input: payload.Request{S1: row.Pair.S1, S2: row.Pair.S2}}

	body, err := payload.Encode(row.Pair)
	if err != nil {
		return inf, err
	}

	timeout := r.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(r.cfg.URL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Accept", r.cfg.Accept)
	if row.InferenceID != "" {
		req.Header.Set(HeaderInferenceID, row.InferenceID)
	}
	req.SetBody(body)

	if err := r.client.DoTimeout(req, resp, timeout); err != nil {
		return inf, err
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return inf, fmt.Errorf("status %d: %s", resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}

	result, err := parseResult(resp.Body())
	if err != nil {
		return inf, err
	}
	inf.Result = result
	return inf, nil
}

// parseResult reads a CSV body into rows. A JSON body becomes a single
// one-field row holding the raw document.
func parseResult(body []byte) ([][]string, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return [][]string{{trimmed}}, nil
	}
	reader := csv.NewReader(strings.NewReader(trimmed))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return rows, nil
}

// WriteJSON writes out as a single JSON document.
func WriteJSON(w io.Writer, out Output) error {
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

// NewProgress creates a progress writer rendering one tracker to w. Call
// Render on the writer in its own goroutine.
func NewProgress(w io.Writer, total int, message string) (progress.Writer, *progress.Tracker) {
	pw := progress.NewWriter()
	pw.SetOutputWriter(w)
	pw.SetAutoStop(true)
	pw.SetTrackerLength(30)
	pw.SetStyle(progress.StyleDefault)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.Style().Visibility.ETA = true
	pw.Style().Visibility.Percentage = true

	tracker := &progress.Tracker{
		Message: message,
		Total:   int64(total),
		Units:   progress.UnitsDefault,
	}
	pw.AppendTracker(tracker)
	return pw, tracker
}
