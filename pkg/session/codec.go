package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/studytree-dev/studytree/pkg/lesson"
)

// NodeEntry is one [id, node] pair in the persisted document. The node
// map is stored as an ordered pair sequence rather than a JSON object so
// that key order and non-string-safe keys survive every runtime that may
// read the document back.
type NodeEntry struct {
	ID   string
	Node *lesson.Node
}

// MarshalJSON encodes the entry as a two-element array.
func (e NodeEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.ID, e.Node})
}

// UnmarshalJSON decodes a two-element [id, node] array.
func (e *NodeEntry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("node entry has %d elements, want 2", len(raw))
	}
	if err := json.Unmarshal(raw[0], &e.ID); err != nil {
		return fmt.Errorf("node entry id: %w", err)
	}
	if err := json.Unmarshal(raw[1], &e.Node); err != nil {
		return fmt.Errorf("node entry payload: %w", err)
	}
	return nil
}

// treeDocument is the storable form of a lesson.Tree.
type treeDocument struct {
	Nodes         []NodeEntry `json:"nodes"`
	RootIDs       []string    `json:"rootIds"`
	CurrentNodeID string      `json:"currentNodeId"`
}

// sessionDocument is the storable form of a LearningSession.
type sessionDocument struct {
	SessionID     string          `json:"sessionId"`
	Tree          treeDocument    `json:"tree"`
	Context       TeachingContext `json:"context"`
	StartedAt     time.Time       `json:"startedAt"`
	LastUpdatedAt time.Time       `json:"lastUpdatedAt"`
}

// Encode serializes a session to its storable JSON document. Node pairs
// are emitted in root-major document order, which is deterministic and
// round-trips through AllNodes.
func Encode(s *LearningSession) ([]byte, error) {
	if s == nil || s.Tree == nil {
		return nil, fmt.Errorf("encode session: nil session or tree")
	}

	ordered := s.Tree.AllNodes()
	entries := make([]NodeEntry, 0, len(ordered))
	for _, n := range ordered {
		entries = append(entries, NodeEntry{ID: n.ID, Node: n})
	}

	doc := sessionDocument{
		SessionID: s.SessionID,
		Tree: treeDocument{
			Nodes:         entries,
			RootIDs:       s.Tree.RootIDs,
			CurrentNodeID: s.Tree.CurrentNodeID,
		},
		Context:       s.Context,
		StartedAt:     s.StartedAt,
		LastUpdatedAt: s.LastUpdatedAt,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return data, nil
}

// Decode reconstructs a session from its storable document, rebuilding
// the keyed node map from the pair sequence and validating the current
// pointer: a dangling CurrentNodeID is repaired to the first root, and a
// document with nodes reachable from no root at all is corrupt.
func Decode(data []byte) (*LearningSession, error) {
	var doc sessionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}

	nodes := make(map[string]*lesson.Node, len(doc.Tree.Nodes))
	for _, entry := range doc.Tree.Nodes {
		if entry.ID == "" || entry.Node == nil {
			return nil, fmt.Errorf("%w: empty node entry", ErrSessionCorrupt)
		}
		nodes[entry.ID] = entry.Node
	}

	tree := &lesson.Tree{
		Nodes:         nodes,
		RootIDs:       doc.Tree.RootIDs,
		CurrentNodeID: doc.Tree.CurrentNodeID,
	}
	if tree.RootIDs == nil {
		tree.RootIDs = []string{}
	}

	if len(tree.Nodes) > 0 {
		if len(tree.RootIDs) == 0 {
			return nil, fmt.Errorf("%w: nodes present but no roots", ErrSessionCorrupt)
		}
		if _, ok := tree.Nodes[tree.CurrentNodeID]; !ok {
			tree.CurrentNodeID = tree.RootIDs[0]
			if _, ok := tree.Nodes[tree.CurrentNodeID]; !ok {
				return nil, fmt.Errorf("%w: first root %q missing from node set", ErrSessionCorrupt, tree.RootIDs[0])
			}
		}
		if err := validateLinkage(tree); err != nil {
			return nil, err
		}
	}

	return &LearningSession{
		SessionID:     doc.SessionID,
		Tree:          tree,
		Context:       doc.Context,
		StartedAt:     doc.StartedAt,
		LastUpdatedAt: doc.LastUpdatedAt,
	}, nil
}

// validateLinkage walks the forest from the roots and rejects childIds
// that form a cycle, point at a missing node, or claim the same node
// twice. A document with broken linkage must fail decoding here rather
// than hang the first traversal after resume.
func validateLinkage(tree *lesson.Tree) error {
	visited := make(map[string]bool, len(tree.Nodes))

	var walk func(id string) error
	walk = func(id string) error {
		if visited[id] {
			return fmt.Errorf("%w: node %q reachable twice in the forest", ErrSessionCorrupt, id)
		}
		visited[id] = true

		node, ok := tree.Nodes[id]
		if !ok {
			return fmt.Errorf("%w: dangling child reference %q", ErrSessionCorrupt, id)
		}
		for _, childID := range node.ChildIDs {
			if err := walk(childID); err != nil {
				return err
			}
		}
		return nil
	}

	for _, rootID := range tree.RootIDs {
		if err := walk(rootID); err != nil {
			return err
		}
	}
	return nil
}
