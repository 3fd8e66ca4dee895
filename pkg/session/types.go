// Package session provides crash-safe persistence for learning sessions.
// A session bundles the lesson tree with the rolling teaching context and
// is written whole to a single named slot after every mutation, so any
// observer reading storage after a controller action sees a tree state
// consistent with that action.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/studytree-dev/studytree/pkg/lesson"
)

// correctnessWindow bounds the rolling answer-correctness history.
const correctnessWindow = 5

// TeachingContext is the rolling teaching state owned by the controller.
// The tree never touches it; the generation pipeline reads it as input
// only.
type TeachingContext struct {
	// InitialTopic is the topic the session started with.
	InitialTopic string `json:"initialTopic"`
	// CurrentTopic is the most recently taught topic.
	CurrentTopic string `json:"currentTopic"`
	// LastAnswer is the learner's most recent answer text.
	LastAnswer string `json:"lastAnswer,omitempty"`
	// LastAnswerCorrect records whether the most recent answer was
	// correct; nil before any answer.
	LastAnswerCorrect *bool `json:"lastAnswerCorrect,omitempty"`
	// TopicHistory lists every topic taught, in order, across pivots.
	TopicHistory []string `json:"topicHistory,omitempty"`
	// Depth is the current question-branch recursion depth.
	Depth int `json:"depth"`
	// RecentCorrectness holds at most the last five answer outcomes,
	// oldest first.
	RecentCorrectness []bool `json:"recentCorrectness,omitempty"`
	// PreferredStyle is the learner's preferred teaching style, if set.
	PreferredStyle string `json:"preferredStyle,omitempty"`
}

// RecordAnswer pushes an answer outcome into the rolling state, trimming
// the correctness history to the window size.
func (c *TeachingContext) RecordAnswer(answer string, correct bool) {
	c.LastAnswer = answer
	c.LastAnswerCorrect = &correct
	c.RecentCorrectness = append(c.RecentCorrectness, correct)
	if len(c.RecentCorrectness) > correctnessWindow {
		c.RecentCorrectness = c.RecentCorrectness[len(c.RecentCorrectness)-correctnessWindow:]
	}
}

// RecordTopic sets the current topic and appends it to the history.
func (c *TeachingContext) RecordTopic(topic string) {
	c.CurrentTopic = topic
	c.TopicHistory = append(c.TopicHistory, topic)
}

// LearningSession is the persisted unit: one lesson tree plus its
// teaching context and bookkeeping timestamps.
type LearningSession struct {
	// SessionID uniquely identifies the session.
	SessionID string `json:"sessionId"`
	// Tree is the lesson forest.
	Tree *lesson.Tree `json:"tree"`
	// Context is the rolling teaching state.
	Context TeachingContext `json:"context"`
	// StartedAt is when the session was created.
	StartedAt time.Time `json:"startedAt"`
	// LastUpdatedAt is when the session was last persisted.
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// New creates an empty session for the given topic. The tree starts
// nodeless; the controller populates the first root once generation
// succeeds.
func New(topic string) *LearningSession {
	now := time.Now().UTC()
	return &LearningSession{
		SessionID: uuid.New().String(),
		Tree: &lesson.Tree{
			Nodes:   make(map[string]*lesson.Node),
			RootIDs: []string{},
		},
		Context: TeachingContext{
			InitialTopic: topic,
			CurrentTopic: topic,
			TopicHistory: []string{topic},
		},
		StartedAt:     now,
		LastUpdatedAt: now,
	}
}
