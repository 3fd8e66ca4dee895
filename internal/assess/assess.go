// Package assess holds the question-complexity analyzer and answer
// evaluator clients. Both concerns have a plain HTTP contract client and
// an OpenAI-backed implementation behind the same interfaces.
package assess

import "context"

// AnalysisRequest asks how complex a learner's question is.
type AnalysisRequest struct {
	Question     string `json:"question"`
	CurrentTopic string `json:"currentTopic"`
	Context      string `json:"context,omitempty"`
}

// Phase is one sub-topic lesson the analyzer prescribes for answering
// a question.
type Phase struct {
	SubTopic    string `json:"sub_topic"`
	Description string `json:"description"`
}

// AnalysisResult is the analyzer's breakdown of a question into 1..5
// learning phases. VideoCount must equal len(Phases).
type AnalysisResult struct {
	VideoCount int     `json:"video_count"`
	Phases     []Phase `json:"phases"`
}

// EvaluationRequest asks whether a learner's answer is correct.
type EvaluationRequest struct {
	Answer     string   `json:"answer"`
	Question   string   `json:"question"`
	Topic      string   `json:"topic"`
	BranchPath []string `json:"branchPath,omitempty"`
}

// Evaluation is the evaluator's verdict.
type Evaluation struct {
	Correct   bool   `json:"correct"`
	Reasoning string `json:"reasoning,omitempty"`
}

// Analyzer classifies a learner question into learning phases.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error)
}

// Evaluator judges a learner answer.
type Evaluator interface {
	Evaluate(ctx context.Context, req EvaluationRequest) (*Evaluation, error)
}

// QuestionRequest asks for a comprehension-check question grounded in
// the lesson path the learner just walked.
type QuestionRequest struct {
	Topic      string   `json:"topic"`
	Path       []string `json:"path,omitempty"`
	Transcript string   `json:"transcript,omitempty"`
}

// QuestionResult is a composed comprehension-check question together
// with the answer the composer had in mind.
type QuestionResult struct {
	Question       string `json:"question"`
	ExpectedAnswer string `json:"expected_answer,omitempty"`
}

// Questioner composes comprehension-check questions.
type Questioner interface {
	ComposeQuestion(ctx context.Context, req QuestionRequest) (*QuestionResult, error)
}

const (
	minPhases = 1
	maxPhases = 5
)

// validateAnalysis enforces the analyzer contract: between 1 and 5
// phases, and a declared count matching the actual phase list. A
// response violating the shape is rejected outright rather than
// truncated or padded.
func validateAnalysis(result *AnalysisResult) error {
	if result.VideoCount < minPhases || result.VideoCount > maxPhases {
		return &AnalysisError{Reason: "video_count out of range", Result: result}
	}
	if len(result.Phases) != result.VideoCount {
		return &AnalysisError{Reason: "phase list length does not match video_count", Result: result}
	}
	for _, phase := range result.Phases {
		if phase.SubTopic == "" {
			return &AnalysisError{Reason: "phase missing sub_topic", Result: result}
		}
	}
	return nil
}
