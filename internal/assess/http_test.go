package assess

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assessServer(t *testing.T, analysis *AnalysisResult, verdict *Evaluation) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(analyzePath, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(analysis)
	})
	mux.HandleFunc(evaluatePath, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(verdict)
	})
	return httptest.NewServer(mux)
}

func TestAnalyzeValid(t *testing.T) {
	srv := assessServer(t, &AnalysisResult{
		VideoCount: 2,
		Phases: []Phase{
			{SubTopic: "vectors", Description: "what a vector is"},
			{SubTopic: "dot product", Description: "projecting vectors"},
		},
	}, nil)
	defer srv.Close()

	client := NewHTTPClient(HTTPConfig{BaseURL: srv.URL})
	result, err := client.Analyze(context.Background(), AnalysisRequest{
		Question:     "how does the dot product work?",
		CurrentTopic: "linear algebra",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.VideoCount)
	require.Len(t, result.Phases, 2)
	assert.Equal(t, "vectors", result.Phases[0].SubTopic)
}

func TestAnalyzeContractViolations(t *testing.T) {
	tests := []struct {
		name   string
		result AnalysisResult
	}{
		{
			name: "count exceeds phases",
			result: AnalysisResult{
				VideoCount: 3,
				Phases:     []Phase{{SubTopic: "a"}, {SubTopic: "b"}},
			},
		},
		{
			name: "phases exceed count",
			result: AnalysisResult{
				VideoCount: 1,
				Phases:     []Phase{{SubTopic: "a"}, {SubTopic: "b"}},
			},
		},
		{
			name:   "zero count",
			result: AnalysisResult{VideoCount: 0},
		},
		{
			name: "count above five",
			result: AnalysisResult{
				VideoCount: 6,
				Phases: []Phase{
					{SubTopic: "a"}, {SubTopic: "b"}, {SubTopic: "c"},
					{SubTopic: "d"}, {SubTopic: "e"}, {SubTopic: "f"},
				},
			},
		},
		{
			name: "empty sub_topic",
			result: AnalysisResult{
				VideoCount: 1,
				Phases:     []Phase{{Description: "no name"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := assessServer(t, &tt.result, nil)
			defer srv.Close()

			client := NewHTTPClient(HTTPConfig{BaseURL: srv.URL})
			_, err := client.Analyze(context.Background(), AnalysisRequest{Question: "q", CurrentTopic: "t"})
			assert.ErrorIs(t, err, ErrAnalysisFailed)
		})
	}
}

func TestAnalyzeBackendDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(HTTPConfig{BaseURL: srv.URL})
	_, err := client.Analyze(context.Background(), AnalysisRequest{Question: "q", CurrentTopic: "t"})
	assert.ErrorIs(t, err, ErrAnalysisFailed)
}

func TestEvaluate(t *testing.T) {
	srv := assessServer(t, nil, &Evaluation{Correct: true, Reasoning: "matches the definition"})
	defer srv.Close()

	client := NewHTTPClient(HTTPConfig{BaseURL: srv.URL})
	verdict, err := client.Evaluate(context.Background(), EvaluationRequest{
		Answer:   "the projection of one vector onto another",
		Question: "what does the dot product measure?",
		Topic:    "linear algebra",
	})
	require.NoError(t, err)
	assert.True(t, verdict.Correct)
	assert.Equal(t, "matches the definition", verdict.Reasoning)
}

func TestEvaluateSendsBranchPath(t *testing.T) {
	var got EvaluationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(&Evaluation{Correct: false})
	}))
	defer srv.Close()

	client := NewHTTPClient(HTTPConfig{BaseURL: srv.URL})
	_, err := client.Evaluate(context.Background(), EvaluationRequest{
		Answer:     "a",
		Question:   "q",
		Topic:      "t",
		BranchPath: []string{"intro", "vectors", "dot product"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"intro", "vectors", "dot product"}, got.BranchPath)
}

func TestComposeQuestion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, questionPath, r.URL.Path)
		_ = json.NewEncoder(w).Encode(&QuestionResult{
			Question:       "what does the dot product measure?",
			ExpectedAnswer: "how aligned two vectors are",
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(HTTPConfig{BaseURL: srv.URL})
	result, err := client.ComposeQuestion(context.Background(), QuestionRequest{
		Topic: "linear algebra",
		Path:  []string{"vectors", "dot product"},
	})
	require.NoError(t, err)
	assert.Equal(t, "what does the dot product measure?", result.Question)
	assert.NotEmpty(t, result.ExpectedAnswer)
}

func TestComposeQuestionEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(&QuestionResult{})
	}))
	defer srv.Close()

	client := NewHTTPClient(HTTPConfig{BaseURL: srv.URL})
	_, err := client.ComposeQuestion(context.Background(), QuestionRequest{Topic: "t"})
	assert.ErrorIs(t, err, ErrQuestionFailed)
}

func TestEvaluateBackendDown(t *testing.T) {
	client := NewHTTPClient(HTTPConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := client.Evaluate(context.Background(), EvaluationRequest{Answer: "a", Question: "q", Topic: "t"})
	assert.ErrorIs(t, err, ErrEvaluationFailed)
}
