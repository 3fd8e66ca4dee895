// Package lesson provides the branching lesson tree: a forest of content
// nodes with stable addressing, primary-path navigation, and explicit
// branch traversal. The tree is a pure in-memory structure; it knows
// nothing about content generation or persistence.
package lesson

// GenerationStatus tracks the lifecycle of a segment's generated content.
type GenerationStatus string

const (
	// StatusPending means the segment's assets are not yet available.
	StatusPending GenerationStatus = "pending"
	// StatusReady means the segment's content is available.
	StatusReady GenerationStatus = "ready"
)

// Segment is the content payload of a single node. The tree treats it as
// opaque; only UserAnswer may be mutated after the node is created.
type Segment struct {
	// Topic is the subject this segment teaches.
	Topic string `json:"topic"`
	// Status is the generation status of the segment's content.
	Status GenerationStatus `json:"status"`
	// VideoURL points at the rendered lesson video, when available.
	VideoURL string `json:"videoUrl,omitempty"`
	// ThumbnailURL points at the video thumbnail, when available.
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	// Title is a short display title for the segment.
	Title string `json:"title,omitempty"`
	// VoiceoverScript is the narration transcript for the segment.
	VoiceoverScript string `json:"voiceoverScript,omitempty"`
	// Question is an optional comprehension-check question.
	Question string `json:"question,omitempty"`
	// Answer is the expected answer to Question, if any.
	Answer string `json:"answer,omitempty"`
	// UserAnswer records what the learner answered. This is the one
	// field that may be written after node creation.
	UserAnswer string `json:"userAnswer,omitempty"`
	// IsQuestionNode marks a zero-duration knowledge-check placeholder
	// inserted by the leaf-question flow.
	IsQuestionNode bool `json:"isQuestionNode,omitempty"`
}

// Node is one unit of lesson content plus its position in the tree.
// Apart from Segment.UserAnswer and ChildIDs growing, a node is
// immutable once created. Nodes are never removed.
type Node struct {
	// ID uniquely identifies the node across the whole forest.
	ID string `json:"id"`
	// ParentID is the owning node's ID, empty for a root.
	ParentID string `json:"parentId,omitempty"`
	// ChildIDs lists direct children in creation order.
	ChildIDs []string `json:"childIds"`
	// BranchIndex is the node's 0-based position among its parent's
	// children at creation time. Presentation only; never renumbered.
	BranchIndex int `json:"branchIndex"`
	// BranchLabel describes why this branch exists (e.g. the learner's
	// question). Empty for primary-path nodes.
	BranchLabel string `json:"branchLabel,omitempty"`
	// Segment is the content payload.
	Segment Segment `json:"segment"`
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool {
	return n.ParentID == ""
}

// Tree is a forest of lesson nodes. Each entry in RootIDs begins an
// independent topic lineage; CurrentNodeID is the node in focus.
// Tree is not safe for concurrent use; it has exactly one owner.
type Tree struct {
	// Nodes maps node ID to node.
	Nodes map[string]*Node `json:"-"`
	// RootIDs lists parentless nodes in creation order.
	RootIDs []string `json:"rootIds"`
	// CurrentNodeID is the node presently in focus. It always resolves
	// to a live entry in Nodes except transiently during corruption
	// repair at load time.
	CurrentNodeID string `json:"currentNodeId"`
}
