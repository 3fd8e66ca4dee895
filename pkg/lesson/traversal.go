package lesson

import (
	"strconv"
	"strings"
)

// NodeNumber returns the dotted hierarchical address of a node, e.g.
// "1.3.2" for the second child of the third child of the first root.
// Each component is the 1-based position of an ancestor among its own
// siblings (RootIDs for the top level). The address is derived, never
// stored: it is a display label and shifts if an earlier sibling is
// ever inserted.
func (t *Tree) NodeNumber(nodeID string) (string, error) {
	node, ok := t.Nodes[nodeID]
	if !ok {
		return "", &NotFoundError{ID: nodeID}
	}

	var parts []string
	for {
		var siblings []string
		if node.IsRoot() {
			siblings = t.RootIDs
		} else {
			parent, ok := t.Nodes[node.ParentID]
			if !ok {
				return "", &NotFoundError{ID: node.ParentID}
			}
			siblings = parent.ChildIDs
		}

		pos := indexOf(siblings, node.ID)
		if pos < 0 {
			return "", &NotFoundError{ID: node.ID}
		}
		parts = append(parts, strconv.Itoa(pos+1))

		if node.IsRoot() {
			break
		}
		node = t.Nodes[node.ParentID]
	}

	reverse(parts)
	return strings.Join(parts, "."), nil
}

// PathFromRoot returns the root-to-node path, inclusive at both ends.
// Used to build generation context from everything the learner has seen
// on the node's lineage.
func (t *Tree) PathFromRoot(nodeID string) ([]*Node, error) {
	node, ok := t.Nodes[nodeID]
	if !ok {
		return nil, &NotFoundError{ID: nodeID}
	}

	var path []*Node
	for node != nil {
		path = append(path, node)
		if node.IsRoot() {
			break
		}
		parent, ok := t.Nodes[node.ParentID]
		if !ok {
			return nil, &NotFoundError{ID: node.ParentID}
		}
		node = parent
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// IsOnCurrentPath reports whether nodeID lies on the root-to-current
// path.
func (t *Tree) IsOnCurrentPath(nodeID string) bool {
	path, err := t.PathFromRoot(t.CurrentNodeID)
	if err != nil {
		return false
	}
	for _, n := range path {
		if n.ID == nodeID {
			return true
		}
	}
	return false
}

// Next returns the primary-path successor of nodeID: its first child, or
// nil when the node is a leaf. Branch siblings beyond the first child are
// reachable only through explicit navigation, keeping forward/back
// controls predictable however many branches exist.
func (t *Tree) Next(nodeID string) *Node {
	node, ok := t.Nodes[nodeID]
	if !ok || len(node.ChildIDs) == 0 {
		return nil
	}
	return t.Nodes[node.ChildIDs[0]]
}

// Previous returns the parent of nodeID, or nil for roots and unknown
// IDs.
func (t *Tree) Previous(nodeID string) *Node {
	node, ok := t.Nodes[nodeID]
	if !ok || node.IsRoot() {
		return nil
	}
	return t.Nodes[node.ParentID]
}

// AllNodes flattens the whole forest: root-major, each subtree in
// document (preorder, creation) order. Used to build full-session
// summaries such as collecting every voiceover script and user answer.
func (t *Tree) AllNodes() []*Node {
	nodes := make([]*Node, 0, len(t.Nodes))
	for _, rootID := range t.RootIDs {
		nodes = t.appendSubtree(nodes, rootID)
	}
	return nodes
}

func (t *Tree) appendSubtree(acc []*Node, nodeID string) []*Node {
	node, ok := t.Nodes[nodeID]
	if !ok {
		return acc
	}
	acc = append(acc, node)
	for _, childID := range node.ChildIDs {
		acc = t.appendSubtree(acc, childID)
	}
	return acc
}

// Current returns the node in focus, or nil if CurrentNodeID does not
// resolve.
func (t *Tree) Current() *Node {
	return t.Nodes[t.CurrentNodeID]
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
