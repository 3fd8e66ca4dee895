package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/studytree-dev/studytree/pkg/lesson"
	obsmetrics "github.com/studytree-dev/studytree/pkg/observability"
)

func init() {
	rootCmd.AddCommand(startCmd, pivotCmd, askCmd, answerCmd, nextCmd,
		checkpointCmd, quizCmd, statusCmd, summaryCmd, resetCmd, serveCmd, versionCmd)
}

var startCmd = &cobra.Command{
	Use:   "start <topic>",
	Short: "Start a fresh session on a topic",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, cleanup, err := buildController(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		topic := strings.Join(args, " ")
		if err := ctrl.StartTopic(cmd.Context(), topic); err != nil {
			return err
		}
		fmt.Printf("Lesson ready: %d segments.\n\n", ctrl.Session().Tree.Len())
		printTree(ctrl.Session().Tree)
		return nil
	},
}

var pivotCmd = &cobra.Command{
	Use:   "pivot <topic>",
	Short: "Abandon the current topic and start a new root",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, cleanup, err := buildController(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		if err := ctrl.PivotTopic(cmd.Context(), strings.Join(args, " ")); err != nil {
			return err
		}
		printTree(ctrl.Session().Tree)
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the current segment (branches the lesson)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, cleanup, err := buildController(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		if err := ctrl.AskQuestion(cmd.Context(), strings.Join(args, " ")); err != nil {
			return err
		}
		printTree(ctrl.Session().Tree)
		return nil
	},
}

var answerCmd = &cobra.Command{
	Use:   "answer <text>",
	Short: "Answer the current segment's question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, cleanup, err := buildController(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		verdict, err := ctrl.SubmitAnswer(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if verdict.Correct {
			fmt.Println("Correct.")
		} else {
			fmt.Println("Not quite.")
		}
		if verdict.Reasoning != "" {
			fmt.Println(verdict.Reasoning)
		}
		printCurrent(ctrl.Session().Tree)
		return nil
	},
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Advance along the primary path",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, cleanup, err := buildController(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		node, err := ctrl.Advance(cmd.Context())
		if err != nil {
			return err
		}
		if node == nil {
			fmt.Println("End of this path. Try `studytree checkpoint` or `studytree ask`.")
			return nil
		}
		printCurrent(ctrl.Session().Tree)
		return nil
	},
}

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Get a comprehension-check question at the end of a path",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, cleanup, err := buildController(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		node, err := ctrl.AskLeafQuestion(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Question: %s\n", node.Segment.Question)
		fmt.Println("Answer with `studytree answer <text>`.")
		return nil
	},
}

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Take a quick quiz on the current segment",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, cleanup, err := buildController(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		question, err := ctrl.StartQuiz(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Quiz: %s\n> ", question)

		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			return scanner.Err()
		}
		verdict, err := ctrl.SubmitQuizAnswer(cmd.Context(), strings.TrimSpace(scanner.Text()))
		if err != nil {
			return err
		}
		if verdict.Correct {
			fmt.Println("Correct.")
		} else {
			fmt.Println("Not quite; added an explanation to the lesson.")
			printCurrent(ctrl.Session().Tree)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, cleanup, err := buildController(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		sess := ctrl.Session()
		if sess == nil {
			fmt.Println("No active session. Start one with `studytree start <topic>`.")
			return nil
		}
		fmt.Printf("Session %s, topic %q, %d nodes.\n\n",
			sess.SessionID, sess.Context.CurrentTopic, sess.Tree.Len())
		printTree(sess.Tree)
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show everything covered so far, across all branches",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, cleanup, err := buildController(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		entries := ctrl.Summary()
		if entries == nil {
			fmt.Println("No active session.")
			return nil
		}
		for _, e := range entries {
			title := e.Title
			if title == "" {
				title = e.Topic
			}
			fmt.Printf("%-10s %s\n", e.Number, title)
			if e.Question != "" {
				fmt.Printf("%-10s   Q: %s\n", "", e.Question)
			}
			if e.UserAnswer != "" {
				fmt.Printf("%-10s   A: %s\n", "", e.UserAnswer)
			}
		}
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the session and clear stored state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, cleanup, err := buildController(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		return ctrl.Reset(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the metrics and health endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		checker := obsmetrics.NewHealthChecker()
		checker.Register("config", func(ctx context.Context) error { return cfg.Validate() })

		srv := obsmetrics.NewServer(cfg.Observability.Port, checker)
		fmt.Printf("Serving /metrics and /health on :%d\n", cfg.Observability.Port)
		return srv.Start()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("studytree %s\n", Version)
	},
}

// printTree renders the forest, marking the current node.
func printTree(tree *lesson.Tree) {
	for _, node := range tree.AllNodes() {
		number, err := tree.NodeNumber(node.ID)
		if err != nil {
			continue
		}
		marker := " "
		if node.ID == tree.CurrentNodeID {
			marker = ">"
		}
		title := node.Segment.Title
		if title == "" {
			title = node.Segment.Topic
		}
		suffix := ""
		if node.Segment.IsQuestionNode {
			suffix = " [question]"
		} else if node.BranchLabel != "" {
			suffix = fmt.Sprintf(" [branch: %s]", node.BranchLabel)
		}
		fmt.Printf("%s %-10s %s%s\n", marker, number, title, suffix)
	}
}

// printCurrent shows the node now in focus.
func printCurrent(tree *lesson.Tree) {
	node := tree.Current()
	if node == nil {
		return
	}
	number, _ := tree.NodeNumber(node.ID)
	title := node.Segment.Title
	if title == "" {
		title = node.Segment.Topic
	}
	fmt.Printf("Now at %s: %s\n", number, title)
	if node.Segment.VideoURL != "" {
		fmt.Printf("Video: %s\n", node.Segment.VideoURL)
	}
	if node.Segment.Question != "" {
		fmt.Printf("Question: %s\n", node.Segment.Question)
	}
}
