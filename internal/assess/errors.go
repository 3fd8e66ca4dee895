package assess

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks across the analyzer and evaluator.
var (
	ErrAnalysisFailed   = errors.New("question analysis failed")
	ErrEvaluationFailed = errors.New("answer evaluation failed")
	ErrQuestionFailed   = errors.New("question composition failed")
)

// AnalysisError reports a malformed or missing analyzer response.
type AnalysisError struct {
	Reason string
	Result *AnalysisResult
	Err    error
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analysis failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("analysis failed: %s", e.Reason)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

func (e *AnalysisError) Is(target error) bool { return target == ErrAnalysisFailed }

// EvaluationError reports an unreachable or malformed evaluator.
type EvaluationError struct {
	Reason string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("evaluation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("evaluation failed: %s", e.Reason)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

func (e *EvaluationError) Is(target error) bool { return target == ErrEvaluationFailed }

// QuestionError reports a failed question composition.
type QuestionError struct {
	Reason string
	Err    error
}

func (e *QuestionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("question composition failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("question composition failed: %s", e.Reason)
}

func (e *QuestionError) Unwrap() error { return e.Err }

func (e *QuestionError) Is(target error) bool { return target == ErrQuestionFailed }
