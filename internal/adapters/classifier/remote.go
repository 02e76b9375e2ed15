package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/baditaflorin/go_pair_features/internal/core/domain"
)

// ErrRemote reports a failed call to a remote model endpoint.
var ErrRemote = errors.New("classifier: remote endpoint error")

// RemoteConfig configures a remote model endpoint.
type RemoteConfig struct {
	URL     string
	Timeout time.Duration
	// Client overrides the default fasthttp client, mainly for tests.
	Client *fasthttp.Client
}

// Remote sends feature vectors to an external model server.
type Remote struct {
	url     string
	timeout time.Duration
	client  *fasthttp.Client
}

type remoteRequest struct {
	Instances [][]float64 `json:"instances"`
}

// NewRemote creates a remote classifier.
func NewRemote(cfg RemoteConfig) (*Remote, error) {
	if cfg.URL == "" {
		return nil, errors.New("classifier: remote url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &fasthttp.Client{
			Name:                "pairfeat",
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: time.Minute,
		}
	}
	return &Remote{url: cfg.URL, timeout: cfg.Timeout, client: client}, nil
}

// Predict posts the vector as {"instances": [[...]]} and parses the reply.
func (r *Remote) Predict(ctx context.Context, features domain.MetricVector) (domain.Decision, error) {
	body, err := json.Marshal(remoteRequest{Instances: [][]float64{features}})
	if err != nil {
		return domain.Decision{}, fmt.Errorf("classifier: encoding request: %w", err)
	}

	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return domain.Decision{}, context.DeadlineExceeded
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(r.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Accept", "text/csv, application/json")
	req.SetBody(body)

	if err := r.client.DoTimeout(req, resp, timeout); err != nil {
		return domain.Decision{}, fmt.Errorf("%w: %v", ErrRemote, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return domain.Decision{}, fmt.Errorf("%w: status %d: %s", ErrRemote, resp.StatusCode(), truncate(string(resp.Body()), 200))
	}

	return ParseDecision(resp.Body())
}

// ParseDecision reads a model reply. It accepts a CSV line whose first field
// is the label (an optional second field is the score), a bare JSON number or
// array, or a JSON object with "label" and "score".
func ParseDecision(body []byte) (domain.Decision, error) {
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return domain.Decision{}, fmt.Errorf("%w: empty reply", ErrRemote)
	}

	trimmed := bytes.TrimSpace(body)
	switch trimmed[0] {
	case '{':
		var d domain.Decision
		if err := json.Unmarshal(trimmed, &d); err != nil {
			return domain.Decision{}, fmt.Errorf("%w: decoding reply: %v", ErrRemote, err)
		}
		d.Raw = raw
		return d, nil
	case '[':
		var values []interface{}
		if err := json.Unmarshal(trimmed, &values); err != nil {
			return domain.Decision{}, fmt.Errorf("%w: decoding reply: %v", ErrRemote, err)
		}
		raw = strings.Trim(raw, "[]")
		raw = strings.ReplaceAll(raw, "[", "")
		raw = strings.ReplaceAll(raw, "]", "")
	}

	line := strings.SplitN(raw, "\n", 2)[0]
	fields := strings.Split(line, ",")
	label, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("%w: parsing label %q", ErrRemote, fields[0])
	}
	d := domain.Decision{Label: label, Score: label, Raw: strings.TrimSpace(string(body))}
	if len(fields) > 1 {
		if score, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64); err == nil {
			d.Score = score
		}
	}
	return d, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
