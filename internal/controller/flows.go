package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/studytree-dev/studytree/internal/assess"
	"github.com/studytree-dev/studytree/internal/observability"
	"github.com/studytree-dev/studytree/internal/pipeline"
	"github.com/studytree-dev/studytree/pkg/lesson"
	obsmetrics "github.com/studytree-dev/studytree/pkg/observability"
	"github.com/studytree-dev/studytree/pkg/session"
)

// Flow precondition errors.
var (
	// ErrNoQuestion is returned when an answer is submitted but the
	// current node carries no question.
	ErrNoQuestion = errors.New("current node has no question")
	// ErrNotLeaf is returned when a leaf-question is requested on a
	// node that still has children or is itself a question node.
	ErrNotLeaf = errors.New("current node is not a content leaf")
	// ErrNoQuiz is returned when a quiz answer arrives with no quiz in
	// flight.
	ErrNoQuiz = errors.New("no quiz in flight")
)

// StartTopic begins a fresh session: it generates a lesson for the
// topic and builds the whole lesson as one linear chain, persisted once
// after the chain is complete. On failure the controller holds no
// session and the caller may retry by resubmitting the topic.
func (c *Controller) StartTopic(ctx context.Context, topic string) error {
	ctx, span := observability.StartSpan(ctx, "controller.start_topic")
	defer span.End()

	token := c.begin(StateGenerating)

	result, err := c.gen.Generate(ctx, pipeline.Request{Topic: topic, Style: c.style()}, c.onProgress)
	if err != nil {
		span.SetError(err)
		return c.fail(err)
	}
	if c.stale(token) {
		log.Printf("controller: discarding generation for %q, session was reset", topic)
		return ErrSuperseded
	}

	sess := session.New(topic)
	segments := segmentsFromResult(result, topic)
	sess.Tree = lesson.NewTree(segments[0])
	if err := appendChain(sess.Tree, sess.Tree.CurrentNodeID, segments[1:], ""); err != nil {
		span.SetError(err)
		return c.fail(err)
	}

	// Installing a new session supersedes any flow still suspended over
	// the old one.
	c.token++
	c.sess = sess
	c.persist(ctx)
	c.finish()
	return nil
}

// PivotTopic abandons topic continuity: it generates a lesson chain for
// the new topic and attaches it as a brand-new root, preserving the
// existing lineage for later inspection. Navigation moves to the new
// root.
func (c *Controller) PivotTopic(ctx context.Context, topic string) error {
	ctx, span := observability.StartSpan(ctx, "controller.pivot_topic")
	defer span.End()

	if c.sess == nil {
		return c.fail(ErrNoSession)
	}
	token := c.begin(StateGenerating)

	result, err := c.gen.Generate(ctx, pipeline.Request{Topic: topic, Style: c.style()}, c.onProgress)
	if err != nil {
		span.SetError(err)
		return c.fail(err)
	}
	if c.stale(token) {
		log.Printf("controller: discarding pivot generation for %q, session changed", topic)
		return ErrSuperseded
	}

	segments := segmentsFromResult(result, topic)
	tree := c.sess.Tree
	root := tree.AddRoot(segments[0])
	if err := appendChain(tree, root.ID, segments[1:], ""); err != nil {
		span.SetError(err)
		return c.fail(err)
	}
	if err := tree.NavigateTo(root.ID); err != nil {
		return c.fail(err)
	}

	c.sess.Context.RecordTopic(topic)
	obsmetrics.RecordBranch("pivot")
	c.persist(ctx)
	c.finish()
	return nil
}

// AskQuestion handles "ask a question about this topic": the analyzer
// breaks the question into 1 to 5 learning phases, each phase is
// generated in sequence, and the successful phases are committed as a
// single chain rooted at the node the learner was viewing. A failed
// phase is logged and skipped; only zero successes fail the flow, and
// then the tree is left untouched.
func (c *Controller) AskQuestion(ctx context.Context, question string) error {
	ctx, span := observability.StartSpan(ctx, "controller.ask_question")
	defer span.End()

	cur, err := c.currentNode()
	if err != nil {
		return c.fail(err)
	}
	token := c.begin(StateGenerating)

	analysis, err := c.analyzer.Analyze(ctx, assess.AnalysisRequest{
		Question:     question,
		CurrentTopic: c.sess.Context.CurrentTopic,
		Context:      cur.Segment.VoiceoverScript,
	})
	if err != nil {
		span.SetError(err)
		return c.fail(err)
	}

	// Phases run one at a time so failures stay isolated and later
	// phases can assume earlier ones exist.
	var segments []lesson.Segment
	for i, phase := range analysis.Phases {
		req := pipeline.Request{
			Topic: fmt.Sprintf("%s: %s (asked: %q)", cur.Segment.Topic, phase.SubTopic, question),
			Style: c.style(),
		}
		result, genErr := c.gen.Generate(ctx, req, c.onProgress)
		if genErr != nil {
			log.Printf("controller: phase %d/%d (%s) failed, skipping: %v",
				i+1, analysis.VideoCount, phase.SubTopic, genErr)
			continue
		}
		phaseSegments := segmentsFromResult(result, phase.SubTopic)
		segments = append(segments, phaseSegments[0])
	}

	if len(segments) == 0 {
		err := &pipeline.GenerationError{Reason: "every learning phase failed"}
		span.SetError(err)
		return c.fail(err)
	}
	if c.stale(token) {
		log.Printf("controller: discarding question branch for %q, session changed", question)
		return ErrSuperseded
	}

	firstID, err := commitBranch(c.sess.Tree, cur.ID, segments, question)
	if err != nil {
		span.SetError(err)
		return c.fail(err)
	}
	if err := c.sess.Tree.NavigateTo(firstID); err != nil {
		return c.fail(err)
	}

	c.sess.Context.Depth++
	obsmetrics.RecordBranch("question")
	c.persist(ctx)
	c.finish()
	return nil
}

// SubmitAnswer evaluates the learner's answer to the current node's
// question. The answer is recorded on the segment in place, the rolling
// correctness window is updated, and navigation advances to the first
// child when one exists. On a question node an incorrect answer
// additionally generates exactly one remediation segment addressing the
// misconception and navigates to it.
func (c *Controller) SubmitAnswer(ctx context.Context, answer string) (*assess.Evaluation, error) {
	ctx, span := observability.StartSpan(ctx, "controller.submit_answer")
	defer span.End()

	cur, err := c.currentNode()
	if err != nil {
		return nil, c.fail(err)
	}
	if cur.Segment.Question == "" {
		return nil, c.fail(ErrNoQuestion)
	}
	token := c.begin(StateEvaluating)

	req := assess.EvaluationRequest{
		Answer:   answer,
		Question: cur.Segment.Question,
		Topic:    c.sess.Context.CurrentTopic,
	}
	if cur.Segment.IsQuestionNode {
		req.BranchPath = c.pathTopics(cur.ID)
	}

	verdict, err := c.evaluator.Evaluate(ctx, req)
	if err != nil {
		span.SetError(err)
		return nil, c.fail(err)
	}
	if c.stale(token) {
		return nil, ErrSuperseded
	}

	// The one sanctioned in-place segment mutation after creation.
	cur.Segment.UserAnswer = answer
	c.sess.Context.RecordAnswer(answer, verdict.Correct)
	c.persist(ctx)

	if cur.Segment.IsQuestionNode && !verdict.Correct {
		if err := c.remediate(ctx, cur, answer); err != nil {
			span.SetError(err)
			return verdict, c.fail(err)
		}
		c.finish()
		return verdict, nil
	}

	if children := c.sess.Tree.Children(cur.ID); len(children) > 0 {
		if err := c.sess.Tree.NavigateTo(children[0].ID); err != nil {
			return verdict, c.fail(err)
		}
		c.persist(ctx)
	}

	c.finish()
	return verdict, nil
}

// remediate generates one segment addressing the specific misconception
// behind an incorrect answer and navigates to it.
func (c *Controller) remediate(ctx context.Context, questionNode *lesson.Node, answer string) error {
	token := c.token
	c.state = StateGenerating

	req := pipeline.Request{
		Topic: fmt.Sprintf("%s: clearing up a misconception (question: %q, learner answered: %q)",
			questionNode.Segment.Topic, questionNode.Segment.Question, answer),
		Style: c.style(),
	}
	result, err := c.gen.Generate(ctx, req, c.onProgress)
	if err != nil {
		return err
	}
	if c.stale(token) {
		return ErrSuperseded
	}

	segment := segmentsFromResult(result, questionNode.Segment.Topic)[0]
	node, err := c.sess.Tree.AddChild(questionNode.ID, segment, "")
	if err != nil {
		return err
	}
	if err := c.sess.Tree.NavigateTo(node.ID); err != nil {
		return err
	}
	obsmetrics.RecordBranch("remediation")
	c.persist(ctx)
	return nil
}

// AskLeafQuestion runs when the learner reaches a content leaf: one
// contextual question is composed from the full root-to-leaf path and
// inserted as a zero-duration question node, which becomes the new
// current node.
func (c *Controller) AskLeafQuestion(ctx context.Context) (*lesson.Node, error) {
	ctx, span := observability.StartSpan(ctx, "controller.leaf_question")
	defer span.End()

	cur, err := c.currentNode()
	if err != nil {
		return nil, c.fail(err)
	}
	if !c.sess.Tree.IsLeaf(cur.ID) || cur.Segment.IsQuestionNode {
		return nil, c.fail(ErrNotLeaf)
	}
	token := c.begin(StateGenerating)

	result, err := c.questioner.ComposeQuestion(ctx, assess.QuestionRequest{
		Topic:      c.sess.Context.CurrentTopic,
		Path:       c.pathTopics(cur.ID),
		Transcript: c.pathTranscript(cur.ID),
	})
	if err != nil {
		span.SetError(err)
		return nil, c.fail(err)
	}
	if c.stale(token) {
		return nil, ErrSuperseded
	}

	segment := lesson.Segment{
		Topic:          cur.Segment.Topic,
		Status:         lesson.StatusReady,
		Question:       result.Question,
		Answer:         result.ExpectedAnswer,
		IsQuestionNode: true,
	}
	node, err := c.sess.Tree.AddChild(cur.ID, segment, "")
	if err != nil {
		return nil, c.fail(err)
	}
	if err := c.sess.Tree.NavigateTo(node.ID); err != nil {
		return nil, c.fail(err)
	}

	obsmetrics.RecordBranch("leaf_question")
	c.persist(ctx)
	c.finish()
	return node, nil
}

// quizState is the ephemeral knowledge check. It lives outside the tree
// until an incorrect answer resolves it into a remediation node.
type quizState struct {
	question string
	expected string
}

// StartQuiz composes an ephemeral quiz question from the current topic
// and transcript. Nothing is persisted; the quiz touches the tree only
// if the answer turns out incorrect.
func (c *Controller) StartQuiz(ctx context.Context) (string, error) {
	ctx, span := observability.StartSpan(ctx, "controller.start_quiz")
	defer span.End()

	cur, err := c.currentNode()
	if err != nil {
		return "", c.fail(err)
	}
	token := c.begin(StateGenerating)

	result, err := c.questioner.ComposeQuestion(ctx, assess.QuestionRequest{
		Topic:      c.sess.Context.CurrentTopic,
		Transcript: cur.Segment.VoiceoverScript,
	})
	if err != nil {
		span.SetError(err)
		return "", c.fail(err)
	}
	if c.stale(token) {
		return "", ErrSuperseded
	}

	c.quiz = &quizState{question: result.Question, expected: result.ExpectedAnswer}
	c.finish()
	return result.Question, nil
}

// SubmitQuizAnswer evaluates the in-flight quiz. A correct answer
// resolves the quiz with no tree mutation; an incorrect one generates
// one explanatory segment, inserts it under the current node, and
// navigates there.
func (c *Controller) SubmitQuizAnswer(ctx context.Context, answer string) (*assess.Evaluation, error) {
	ctx, span := observability.StartSpan(ctx, "controller.submit_quiz_answer")
	defer span.End()

	cur, err := c.currentNode()
	if err != nil {
		return nil, c.fail(err)
	}
	if c.quiz == nil {
		return nil, c.fail(ErrNoQuiz)
	}
	token := c.begin(StateEvaluating)

	verdict, err := c.evaluator.Evaluate(ctx, assess.EvaluationRequest{
		Answer:   answer,
		Question: c.quiz.question,
		Topic:    c.sess.Context.CurrentTopic,
	})
	if err != nil {
		span.SetError(err)
		return nil, c.fail(err)
	}
	if c.stale(token) {
		return nil, ErrSuperseded
	}

	c.sess.Context.RecordAnswer(answer, verdict.Correct)

	if verdict.Correct {
		c.quiz = nil
		c.persist(ctx)
		c.finish()
		return verdict, nil
	}

	c.state = StateGenerating
	req := pipeline.Request{
		Topic: fmt.Sprintf("%s: explaining the answer (quiz question: %q, learner answered: %q)",
			c.sess.Context.CurrentTopic, c.quiz.question, answer),
		Style: c.style(),
	}
	result, err := c.gen.Generate(ctx, req, c.onProgress)
	if err != nil {
		return verdict, c.fail(err)
	}
	if c.stale(token) {
		return verdict, ErrSuperseded
	}

	segment := segmentsFromResult(result, c.sess.Context.CurrentTopic)[0]
	node, err := c.sess.Tree.AddChild(cur.ID, segment, "")
	if err != nil {
		return verdict, c.fail(err)
	}
	if err := c.sess.Tree.NavigateTo(node.ID); err != nil {
		return verdict, c.fail(err)
	}

	c.quiz = nil
	obsmetrics.RecordBranch("quiz_remediation")
	c.persist(ctx)
	c.finish()
	return verdict, nil
}

// Advance moves focus to the current node's first child. It returns nil
// without error at a leaf.
func (c *Controller) Advance(ctx context.Context) (*lesson.Node, error) {
	cur, err := c.currentNode()
	if err != nil {
		return nil, err
	}
	next := c.sess.Tree.Next(cur.ID)
	if next == nil {
		return nil, nil
	}
	if err := c.sess.Tree.NavigateTo(next.ID); err != nil {
		return nil, err
	}
	c.persist(ctx)
	return next, nil
}

func (c *Controller) currentNode() (*lesson.Node, error) {
	if c.sess == nil {
		return nil, ErrNoSession
	}
	cur := c.sess.Tree.Current()
	if cur == nil {
		return nil, ErrNoCurrentNode
	}
	return cur, nil
}

func (c *Controller) style() string {
	if c.sess == nil {
		return ""
	}
	return c.sess.Context.PreferredStyle
}

// pathTopics returns the topics from the root to the node, in order.
func (c *Controller) pathTopics(nodeID string) []string {
	path, err := c.sess.Tree.PathFromRoot(nodeID)
	if err != nil {
		return nil
	}
	topics := make([]string, len(path))
	for i, n := range path {
		topics[i] = n.Segment.Topic
	}
	return topics
}

// pathTranscript joins the voiceover scripts along the root-to-node
// path into one context blob.
func (c *Controller) pathTranscript(nodeID string) string {
	path, err := c.sess.Tree.PathFromRoot(nodeID)
	if err != nil {
		return ""
	}
	var scripts []string
	for _, n := range path {
		if n.Segment.VoiceoverScript != "" {
			scripts = append(scripts, n.Segment.VoiceoverScript)
		}
	}
	return strings.Join(scripts, "\n")
}

// segmentsFromResult maps a generation result onto lesson segments, one
// per section, folding in any per-section detail. A section the backend
// has not described yet stays pending until its assets arrive. The
// pipeline guarantees at least one section on success.
func segmentsFromResult(result *pipeline.Result, topic string) []lesson.Segment {
	segments := make([]lesson.Segment, 0, len(result.Sections))
	for _, section := range result.Sections {
		seg := lesson.Segment{
			Topic:  topic,
			Title:  section,
			Status: lesson.StatusPending,
		}
		if d := result.Detail(section); d != nil {
			seg.Status = lesson.StatusReady
			seg.VideoURL = d.VideoURL
			seg.ThumbnailURL = d.ThumbnailURL
			seg.VoiceoverScript = d.VoiceoverScript
			if d.Title != "" {
				seg.Title = d.Title
			}
		}
		segments = append(segments, seg)
	}
	return segments
}

// appendChain grows a linear chain under parentID, each new node the
// child of the previously added one.
func appendChain(tree *lesson.Tree, parentID string, segments []lesson.Segment, label string) error {
	for _, seg := range segments {
		node, err := tree.AddChild(parentID, seg, label)
		if err != nil {
			return err
		}
		parentID = node.ID
		label = ""
	}
	return nil
}

// commitBranch attaches the successful phases as one chain under the
// asked node and returns the first new node's id. The branch label on
// the first node records why the branch exists.
func commitBranch(tree *lesson.Tree, parentID string, segments []lesson.Segment, question string) (string, error) {
	first, err := tree.AddChild(parentID, segments[0], question)
	if err != nil {
		return "", err
	}
	if err := appendChain(tree, first.ID, segments[1:], ""); err != nil {
		return "", err
	}
	return first.ID, nil
}
