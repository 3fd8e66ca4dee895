package assess

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/studytree-dev/studytree/internal/observability"
	obsmetrics "github.com/studytree-dev/studytree/pkg/observability"
)

const (
	analyzePath  = "/api/analyze-question"
	evaluatePath = "/api/evaluate-answer"
	questionPath = "/api/generate-question"

	defaultHTTPTimeout = 30 * time.Second
)

// HTTPConfig holds connection settings for the analyzer/evaluator
// backend.
type HTTPConfig struct {
	// BaseURL is the assessment backend address.
	BaseURL string `yaml:"base_url"`
	// Timeout bounds each request (default: 30s).
	Timeout time.Duration `yaml:"timeout"`
}

// HTTPClient implements Analyzer and Evaluator against the plain HTTP
// assessment contract.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates an assessment client over HTTP.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Analyze posts a question to the analyzer and validates the phase
// breakdown before returning it.
func (c *HTTPClient) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	ctx, span := observability.StartSpan(ctx, "assess.analyze")
	defer span.End()

	var result AnalysisResult
	if err := c.post(ctx, analyzePath, req, &result); err != nil {
		span.SetError(err)
		obsmetrics.ObserveAnalysis("failed")
		return nil, &AnalysisError{Reason: "analyzer request", Err: err}
	}
	if err := validateAnalysis(&result); err != nil {
		span.SetError(err)
		obsmetrics.ObserveAnalysis("invalid")
		return nil, err
	}
	obsmetrics.ObserveAnalysis("ok")
	return &result, nil
}

// Evaluate posts an answer to the evaluator and returns its verdict.
func (c *HTTPClient) Evaluate(ctx context.Context, req EvaluationRequest) (*Evaluation, error) {
	ctx, span := observability.StartSpan(ctx, "assess.evaluate")
	defer span.End()

	var verdict Evaluation
	if err := c.post(ctx, evaluatePath, req, &verdict); err != nil {
		span.SetError(err)
		obsmetrics.ObserveEvaluation("failed")
		return nil, &EvaluationError{Reason: "evaluator request", Err: err}
	}
	if verdict.Correct {
		obsmetrics.ObserveEvaluation("correct")
	} else {
		obsmetrics.ObserveEvaluation("incorrect")
	}
	return &verdict, nil
}

// ComposeQuestion asks the backend for a comprehension-check question
// grounded in the lesson path.
func (c *HTTPClient) ComposeQuestion(ctx context.Context, req QuestionRequest) (*QuestionResult, error) {
	ctx, span := observability.StartSpan(ctx, "assess.compose_question")
	defer span.End()

	var result QuestionResult
	if err := c.post(ctx, questionPath, req, &result); err != nil {
		span.SetError(err)
		return nil, &QuestionError{Reason: "question backend request", Err: err}
	}
	if result.Question == "" {
		return nil, &QuestionError{Reason: "backend returned an empty question"}
	}
	return &result, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
