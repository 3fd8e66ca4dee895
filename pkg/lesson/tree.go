package lesson

import (
	"github.com/google/uuid"
)

// NewTree creates a tree with exactly one node holding rootSegment. The
// node becomes the sole root and the current node.
func NewTree(rootSegment Segment) *Tree {
	root := &Node{
		ID:          uuid.New().String(),
		ChildIDs:    []string{},
		BranchIndex: 0,
		Segment:     rootSegment,
	}
	return &Tree{
		Nodes:         map[string]*Node{root.ID: root},
		RootIDs:       []string{root.ID},
		CurrentNodeID: root.ID,
	}
}

// AddChild creates a node under parentID and returns it. The new node's
// BranchIndex is the parent's child count before insertion; branchLabel
// records why the branch was created and may be empty. The current node
// is not changed.
func (t *Tree) AddChild(parentID string, segment Segment, branchLabel string) (*Node, error) {
	parent, ok := t.Nodes[parentID]
	if !ok {
		return nil, &NotFoundError{ID: parentID}
	}

	node := &Node{
		ID:          uuid.New().String(),
		ParentID:    parentID,
		ChildIDs:    []string{},
		BranchIndex: len(parent.ChildIDs),
		BranchLabel: branchLabel,
		Segment:     segment,
	}

	parent.ChildIDs = append(parent.ChildIDs, node.ID)
	t.Nodes[node.ID] = node
	return node, nil
}

// AddRoot creates a parentless node and appends it to RootIDs, starting a
// new independent lineage inside the same tree. Used for topic pivots so
// the prior lineage stays inspectable. The current node is not changed.
func (t *Tree) AddRoot(segment Segment) *Node {
	node := &Node{
		ID:          uuid.New().String(),
		ChildIDs:    []string{},
		BranchIndex: 0,
		Segment:     segment,
	}
	t.Nodes[node.ID] = node
	t.RootIDs = append(t.RootIDs, node.ID)
	return node
}

// NavigateTo sets the current node. It fails loudly if nodeID is unknown
// rather than leave CurrentNodeID dangling.
func (t *Tree) NavigateTo(nodeID string) error {
	if _, ok := t.Nodes[nodeID]; !ok {
		return &NotFoundError{ID: nodeID}
	}
	t.CurrentNodeID = nodeID
	return nil
}

// Children returns the direct children of nodeID in creation order.
// Unknown or childless nodes yield an empty slice.
func (t *Tree) Children(nodeID string) []*Node {
	node, ok := t.Nodes[nodeID]
	if !ok {
		return nil
	}
	children := make([]*Node, 0, len(node.ChildIDs))
	for _, id := range node.ChildIDs {
		if child, ok := t.Nodes[id]; ok {
			children = append(children, child)
		}
	}
	return children
}

// IsLeaf reports whether nodeID has no children.
func (t *Tree) IsLeaf(nodeID string) bool {
	return len(t.Children(nodeID)) == 0
}

// Len returns the number of nodes across all roots.
func (t *Tree) Len() int {
	return len(t.Nodes)
}
