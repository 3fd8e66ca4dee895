// Package pipeline consumes the streamed multi-event generation protocol
// of the lesson generation backend and reduces each invocation to a
// single outcome: a set of generated sections or an error.
package pipeline

// Frame statuses emitted by the generation backend.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Event is one decoded frame of the generation stream. Frames arrive as
// newline-delimited "data: <json>" lines.
type Event struct {
	Status             string          `json:"status"`
	Stage              int             `json:"stage,omitempty"`
	StageName          string          `json:"stage_name,omitempty"`
	ProgressPercentage float64         `json:"progress_percentage,omitempty"`
	Message            string          `json:"message,omitempty"`
	JobID              string          `json:"job_id,omitempty"`
	Sections           []string        `json:"sections,omitempty"`
	Plan               *Plan           `json:"plan,omitempty"`
	SectionDetails     []SectionDetail `json:"sectionDetails,omitempty"`
	Error              string          `json:"error,omitempty"`
}

// Plan describes the backend's intended structure for the generated
// lesson, one entry per section.
type Plan struct {
	VideoStructure []PlanSection `json:"video_structure"`
}

// PlanSection is one planned section of a lesson video.
type PlanSection struct {
	Section  string  `json:"section"`
	Duration float64 `json:"duration"`
	Content  string  `json:"content"`
}

// SectionDetail carries the per-section assets of a completed
// generation.
type SectionDetail struct {
	Section         string `json:"section"`
	VideoURL        string `json:"video_url"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
	Title           string `json:"title,omitempty"`
	VoiceoverScript string `json:"voiceover_script,omitempty"`
}

// Progress is a non-terminal status update forwarded to the caller's
// progress callback. Delivery is best-effort and has no effect on the
// outcome.
type Progress struct {
	Stage      int
	StageName  string
	Percentage float64
	Message    string
}

// ProgressFunc receives intermediate progress updates. It must not
// block; updates may be stale or dropped.
type ProgressFunc func(Progress)

// Request is what the caller asks the backend to generate.
type Request struct {
	// Topic is the subject to generate a lesson for.
	Topic string `json:"topic"`
	// Style is the learner's preferred teaching style, if known.
	Style string `json:"style,omitempty"`
}

// Result is the reduced outcome of a successful generation.
type Result struct {
	JobID          string
	Sections       []string
	Plan           *Plan
	SectionDetails []SectionDetail
}

// Detail returns the detail record for a section name, or nil.
func (r *Result) Detail(section string) *SectionDetail {
	for i := range r.SectionDetails {
		if r.SectionDetails[i].Section == section {
			return &r.SectionDetails[i]
		}
	}
	return nil
}
