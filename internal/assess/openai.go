package assess

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	obsmetrics "github.com/studytree-dev/studytree/pkg/observability"
)

// OpenAIClient is the slice of the OpenAI API the assessor needs.
// Declared as an interface for testability.
type OpenAIClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIConfig configures the model-backed assessor.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	// Model defaults to gpt-4o-mini.
	Model string `yaml:"model"`
}

const defaultOpenAIModel = "gpt-4o-mini"

const analyzerPrompt = `You break a learner's question about a topic into 1 to 5 short learning phases.
Respond with JSON only: {"video_count": N, "phases": [{"sub_topic": "...", "description": "..."}]}.
video_count must equal the number of phases. Use one phase for simple factual questions
and more phases only when the question genuinely spans multiple concepts.`

const evaluatorPrompt = `You judge whether a learner's answer to a question is correct.
Respond with JSON only: {"correct": true|false, "reasoning": "one short sentence"}.
Accept answers that are substantively right even if loosely worded.`

const questionerPrompt = `You write one open-ended comprehension question about the lesson the learner just finished.
Respond with JSON only: {"question": "...", "expected_answer": "..."}.
Ask about the core idea, not trivia; the question must be answerable from the lesson content alone.`

// OpenAIAssessor implements Analyzer and Evaluator on top of OpenAI
// chat completions in JSON mode.
type OpenAIAssessor struct {
	client OpenAIClient
	model  string
}

// NewOpenAIAssessor creates an assessor with a default OpenAI client.
func NewOpenAIAssessor(cfg OpenAIConfig) *OpenAIAssessor {
	return NewOpenAIAssessorWithClient(cfg, openai.NewClient(cfg.APIKey))
}

// NewOpenAIAssessorWithClient creates an assessor with a custom client
// (useful for testing).
func NewOpenAIAssessorWithClient(cfg OpenAIConfig, client OpenAIClient) *OpenAIAssessor {
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIAssessor{client: client, model: model}
}

// Analyze asks the model for a phase breakdown and validates it.
func (a *OpenAIAssessor) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\nQuestion: %s\n", req.CurrentTopic, req.Question)
	if req.Context != "" {
		fmt.Fprintf(&sb, "Lesson context: %s\n", req.Context)
	}

	content, err := a.complete(ctx, analyzerPrompt, sb.String())
	if err != nil {
		obsmetrics.ObserveAnalysis("failed")
		return nil, &AnalysisError{Reason: "model request", Err: err}
	}

	var result AnalysisResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		obsmetrics.ObserveAnalysis("invalid")
		return nil, &AnalysisError{Reason: "model returned non-JSON breakdown", Err: err}
	}
	if err := validateAnalysis(&result); err != nil {
		obsmetrics.ObserveAnalysis("invalid")
		return nil, err
	}
	obsmetrics.ObserveAnalysis("ok")
	return &result, nil
}

// Evaluate asks the model for a verdict on the learner's answer.
func (a *OpenAIAssessor) Evaluate(ctx context.Context, req EvaluationRequest) (*Evaluation, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\nQuestion: %s\nLearner answer: %s\n", req.Topic, req.Question, req.Answer)
	if len(req.BranchPath) > 0 {
		fmt.Fprintf(&sb, "Lesson path: %s\n", strings.Join(req.BranchPath, " > "))
	}

	content, err := a.complete(ctx, evaluatorPrompt, sb.String())
	if err != nil {
		obsmetrics.ObserveEvaluation("failed")
		return nil, &EvaluationError{Reason: "model request", Err: err}
	}

	var verdict Evaluation
	if err := json.Unmarshal([]byte(content), &verdict); err != nil {
		obsmetrics.ObserveEvaluation("failed")
		return nil, &EvaluationError{Reason: "model returned non-JSON verdict", Err: err}
	}
	if verdict.Correct {
		obsmetrics.ObserveEvaluation("correct")
	} else {
		obsmetrics.ObserveEvaluation("incorrect")
	}
	return &verdict, nil
}

// ComposeQuestion asks the model to write one comprehension question
// from the lesson path and transcript.
func (a *OpenAIAssessor) ComposeQuestion(ctx context.Context, req QuestionRequest) (*QuestionResult, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n", req.Topic)
	if len(req.Path) > 0 {
		fmt.Fprintf(&sb, "Lesson path: %s\n", strings.Join(req.Path, " > "))
	}
	if req.Transcript != "" {
		fmt.Fprintf(&sb, "Transcript:\n%s\n", req.Transcript)
	}

	content, err := a.complete(ctx, questionerPrompt, sb.String())
	if err != nil {
		return nil, &QuestionError{Reason: "model request", Err: err}
	}

	var result QuestionResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, &QuestionError{Reason: "model returned non-JSON question", Err: err}
	}
	if result.Question == "" {
		return nil, &QuestionError{Reason: "model returned an empty question"}
	}
	return &result, nil
}

func (a *OpenAIAssessor) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
