package session

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/studytree-dev/studytree/pkg/lesson"
)

func buildSession(t *testing.T) *LearningSession {
	t.Helper()

	s := New("plate tectonics")
	tree := lesson.NewTree(lesson.Segment{Topic: "plate tectonics", Status: lesson.StatusReady})
	s.Tree = tree

	root := tree.Current()
	child, err := tree.AddChild(root.ID, lesson.Segment{Topic: "subduction", Status: lesson.StatusReady}, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tree.AddChild(root.ID, lesson.Segment{Topic: "hotspots"}, "what about hawaii?"); err != nil {
		t.Fatal(err)
	}
	if err := tree.NavigateTo(child.ID); err != nil {
		t.Fatal(err)
	}
	s.Context.RecordAnswer("B", true)
	return s
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := buildSession(t)

	data, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if got.SessionID != s.SessionID {
		t.Errorf("SessionID = %v, want %v", got.SessionID, s.SessionID)
	}
	if got.Tree.CurrentNodeID != s.Tree.CurrentNodeID {
		t.Errorf("CurrentNodeID = %v, want %v", got.Tree.CurrentNodeID, s.Tree.CurrentNodeID)
	}
	if len(got.Tree.Nodes) != len(s.Tree.Nodes) {
		t.Fatalf("decoded %d nodes, want %d", len(got.Tree.Nodes), len(s.Tree.Nodes))
	}
	for i, id := range s.Tree.RootIDs {
		if got.Tree.RootIDs[i] != id {
			t.Errorf("RootIDs[%d] = %v, want %v", i, got.Tree.RootIDs[i], id)
		}
	}

	// AllNodes order survives the round trip.
	wantOrder := s.Tree.AllNodes()
	gotOrder := got.Tree.AllNodes()
	if len(gotOrder) != len(wantOrder) {
		t.Fatalf("AllNodes() = %d nodes, want %d", len(gotOrder), len(wantOrder))
	}
	for i := range wantOrder {
		if gotOrder[i].ID != wantOrder[i].ID {
			t.Errorf("AllNodes()[%d] = %v, want %v", i, gotOrder[i].ID, wantOrder[i].ID)
		}
	}

	if got.Context.LastAnswer != "B" {
		t.Errorf("Context.LastAnswer = %q, want %q", got.Context.LastAnswer, "B")
	}
	if got.Context.LastAnswerCorrect == nil || !*got.Context.LastAnswerCorrect {
		t.Error("Context.LastAnswerCorrect should decode as true")
	}
}

func TestNodesEncodedAsPairs(t *testing.T) {
	s := buildSession(t)

	data, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var doc struct {
		Tree struct {
			Nodes []json.RawMessage `json:"nodes"`
		} `json:"tree"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("document is not valid JSON: %v", err)
	}
	if len(doc.Tree.Nodes) != 3 {
		t.Fatalf("encoded %d node entries, want 3", len(doc.Tree.Nodes))
	}

	// Each entry is a two-element [id, node] array, not an object.
	for i, raw := range doc.Tree.Nodes {
		var pair []json.RawMessage
		if err := json.Unmarshal(raw, &pair); err != nil {
			t.Fatalf("entry %d is not an array: %v", i, err)
		}
		if len(pair) != 2 {
			t.Errorf("entry %d has %d elements, want 2", i, len(pair))
		}
	}
}

func TestDecodeRepairsDanglingCurrent(t *testing.T) {
	s := buildSession(t)
	s.Tree.CurrentNodeID = "stale-id"

	data, err := Encode(s)
	if err != nil {
		t.Fatal(err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Tree.CurrentNodeID != got.Tree.RootIDs[0] {
		t.Errorf("CurrentNodeID = %v, want repaired to first root %v", got.Tree.CurrentNodeID, got.Tree.RootIDs[0])
	}
}

func TestDecodeCorruptDocuments(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{
			name: "not json",
			data: "{",
		},
		{
			name: "nodes without roots",
			data: `{"sessionId":"x","tree":{"nodes":[["n1",{"id":"n1","childIds":[],"branchIndex":0,"segment":{"topic":"t","status":"ready"}}]],"rootIds":[],"currentNodeId":"n1"}}`,
		},
		{
			name: "first root missing from nodes",
			data: `{"sessionId":"x","tree":{"nodes":[["n1",{"id":"n1","childIds":[],"branchIndex":0,"segment":{"topic":"t","status":"ready"}}]],"rootIds":["ghost"],"currentNodeId":"stale"}}`,
		},
		{
			name: "malformed pair",
			data: `{"sessionId":"x","tree":{"nodes":[["n1"]],"rootIds":["n1"],"currentNodeId":"n1"}}`,
		},
		{
			name: "childIds cycle",
			data: `{"sessionId":"x","tree":{"nodes":[["a",{"id":"a","childIds":["b"],"branchIndex":0,"segment":{"topic":"t","status":"ready"}}],["b",{"id":"b","childIds":["a"],"branchIndex":0,"segment":{"topic":"t","status":"ready"}}]],"rootIds":["a"],"currentNodeId":"a"}}`,
		},
		{
			name: "node is its own child",
			data: `{"sessionId":"x","tree":{"nodes":[["a",{"id":"a","childIds":["a"],"branchIndex":0,"segment":{"topic":"t","status":"ready"}}]],"rootIds":["a"],"currentNodeId":"a"}}`,
		},
		{
			name: "dangling child reference",
			data: `{"sessionId":"x","tree":{"nodes":[["a",{"id":"a","childIds":["ghost"],"branchIndex":0,"segment":{"topic":"t","status":"ready"}}]],"rootIds":["a"],"currentNodeId":"a"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			if !errors.Is(err, ErrSessionCorrupt) {
				t.Errorf("Decode() error = %v, want ErrSessionCorrupt", err)
			}
		})
	}
}

func TestDecodeEmptyTree(t *testing.T) {
	s := New("fresh topic")

	data, err := Encode(s)
	if err != nil {
		t.Fatal(err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Tree.Len() != 0 {
		t.Errorf("decoded tree has %d nodes, want 0", got.Tree.Len())
	}
	if got.Context.InitialTopic != "fresh topic" {
		t.Errorf("InitialTopic = %q", got.Context.InitialTopic)
	}
}
