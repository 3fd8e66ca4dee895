package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/studytree-dev/studytree/internal/observability"
	obsmetrics "github.com/studytree-dev/studytree/pkg/observability"
)

const (
	defaultTimeout          = 120 * time.Second
	defaultRequestsPerSec   = 2
	defaultBurst            = 4
	detailFetchConcurrency  = 4
	generatePath            = "/api/generate"
	sectionDetailPathPrefix = "/api/sections/"
)

var dataPrefix = []byte("data:")

// Config holds generation backend connection settings.
type Config struct {
	// BaseURL is the generation backend address.
	BaseURL string `yaml:"base_url"`
	// Timeout bounds a whole generation invocation including the
	// stream (default: 120s).
	Timeout time.Duration `yaml:"timeout"`
	// RequestsPerSecond rate-limits calls to the backend (default: 2).
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	// Burst is the rate limiter burst size (default: 4).
	Burst int `yaml:"burst"`
	// FetchSectionDetails enables the parallel backfill of per-section
	// detail documents when a completed frame omits them.
	FetchSectionDetails bool `yaml:"fetch_section_details"`
}

// Client talks to the generation backend. It has no retry logic of its
// own; a failed generation surfaces as an error and retrying is the
// caller's decision.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter
	fetchDetails bool
}

// NewClient creates a generation pipeline client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSec
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}

	return &Client{
		baseURL:      cfg.BaseURL,
		httpClient:   &http.Client{Timeout: timeout},
		limiter:      rate.NewLimiter(rate.Limit(rps), burst),
		fetchDetails: cfg.FetchSectionDetails,
	}
}

// Generate submits a topic to the backend and consumes the event stream
// until a terminal outcome. Non-terminal frames are forwarded to
// onProgress when it is non-nil. Generate succeeds only if a completed
// frame with at least one section was observed.
func (c *Client) Generate(ctx context.Context, req Request, onProgress ProgressFunc) (*Result, error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.generate")
	defer span.End()

	start := time.Now()
	result, err := c.generate(ctx, req, onProgress)
	if err != nil {
		span.SetError(err)
		obsmetrics.ObserveGeneration("failed", time.Since(start))
		return nil, err
	}
	obsmetrics.ObserveGeneration("completed", time.Since(start))
	return result, nil
}

func (c *Client) generate(ctx context.Context, req Request, onProgress ProgressFunc) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &GenerationError{Reason: "rate limit wait", Err: err}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &GenerationError{Reason: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return nil, &GenerationError{Reason: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &GenerationError{Reason: "request backend", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &GenerationError{Reason: fmt.Sprintf("backend returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))}
	}

	result, err := c.consumeStream(resp.Body, onProgress)
	if err != nil {
		return nil, err
	}

	if c.fetchDetails {
		if err := c.backfillDetails(ctx, result); err != nil {
			// Details are presentation assets; their absence does not
			// invalidate the generation outcome.
			log.Printf("pipeline: section detail backfill incomplete: %v", err)
		}
	}

	return result, nil
}

// consumeStream reads frames until EOF and reduces them to a terminal
// outcome. A malformed frame is logged and skipped; the stream keeps
// going. A trailing unterminated line at EOF is parsed as one final
// frame.
func (c *Client) consumeStream(r io.Reader, onProgress ProgressFunc) (*Result, error) {
	reader := bufio.NewReader(r)

	var (
		result  *Result
		failure string
		sawFail bool
	)

	for {
		line, err := reader.ReadBytes('\n')
		atEOF := err == io.EOF
		if err != nil && !atEOF {
			return nil, &GenerationError{Reason: "read stream", Err: err}
		}

		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			event, ok := parseFrame(line)
			if ok {
				switch event.Status {
				case StatusCompleted:
					if len(event.Sections) > 0 {
						result = &Result{
							JobID:          event.JobID,
							Sections:       event.Sections,
							Plan:           event.Plan,
							SectionDetails: event.SectionDetails,
						}
					}
				case StatusFailed:
					sawFail = true
					failure = event.Error
				default:
					if onProgress != nil {
						onProgress(Progress{
							Stage:      event.Stage,
							StageName:  event.StageName,
							Percentage: event.ProgressPercentage,
							Message:    event.Message,
						})
					}
				}
			}
		}

		if atEOF {
			break
		}
	}

	if result != nil {
		return result, nil
	}
	if sawFail {
		if failure == "" {
			failure = "backend reported failure"
		}
		return nil, &GenerationError{Reason: failure}
	}
	return nil, &GenerationError{Reason: "stream ended without completing"}
}

// parseFrame decodes one "data: <json>" line. Unparseable frames are
// skipped so one bad frame never aborts the stream.
func parseFrame(line []byte) (*Event, bool) {
	if !bytes.HasPrefix(line, dataPrefix) {
		log.Printf("pipeline: skipping non-data line %q", truncateForLog(line))
		return nil, false
	}

	payload := bytes.TrimSpace(bytes.TrimPrefix(line, dataPrefix))
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("pipeline: skipping malformed frame: %v", err)
		return nil, false
	}
	return &event, true
}

// backfillDetails fetches detail documents for sections the completed
// frame did not describe, in parallel.
func (c *Client) backfillDetails(ctx context.Context, result *Result) error {
	var missing []string
	for _, section := range result.Sections {
		if result.Detail(section) == nil {
			missing = append(missing, section)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	fetched := make([]*SectionDetail, len(missing))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailFetchConcurrency)

	for i, section := range missing {
		g.Go(func() error {
			detail, err := c.fetchSectionDetail(gctx, section)
			if err != nil {
				return err
			}
			fetched[i] = detail
			return nil
		})
	}
	err := g.Wait()

	for _, detail := range fetched {
		if detail != nil {
			result.SectionDetails = append(result.SectionDetails, *detail)
		}
	}
	return err
}

func (c *Client) fetchSectionDetail(ctx context.Context, section string) (*SectionDetail, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+sectionDetailPathPrefix+section, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("section %q detail: status %d", section, resp.StatusCode)
	}

	var detail SectionDetail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, fmt.Errorf("section %q detail: %w", section, err)
	}
	if detail.Section == "" {
		detail.Section = section
	}
	return &detail, nil
}

func truncateForLog(b []byte) string {
	const max = 80
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
