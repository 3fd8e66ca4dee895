package controller

// SummaryEntry is one node's contribution to the closing reflection:
// its address, content, and what the learner answered there.
type SummaryEntry struct {
	Number          string `json:"number"`
	Topic           string `json:"topic"`
	Title           string `json:"title,omitempty"`
	VoiceoverScript string `json:"voiceoverScript,omitempty"`
	Question        string `json:"question,omitempty"`
	UserAnswer      string `json:"userAnswer,omitempty"`
	IsQuestionNode  bool   `json:"isQuestionNode,omitempty"`
}

// Summary collects every node across all roots in document order, for
// closing-reflection input. Returns nil when no session is active.
func (c *Controller) Summary() []SummaryEntry {
	if c.sess == nil {
		return nil
	}

	nodes := c.sess.Tree.AllNodes()
	entries := make([]SummaryEntry, 0, len(nodes))
	for _, n := range nodes {
		number, err := c.sess.Tree.NodeNumber(n.ID)
		if err != nil {
			continue
		}
		entries = append(entries, SummaryEntry{
			Number:          number,
			Topic:           n.Segment.Topic,
			Title:           n.Segment.Title,
			VoiceoverScript: n.Segment.VoiceoverScript,
			Question:        n.Segment.Question,
			UserAnswer:      n.Segment.UserAnswer,
			IsQuestionNode:  n.Segment.IsQuestionNode,
		})
	}
	return entries
}
