package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/studytree-dev/studytree/internal/assess"
	"github.com/studytree-dev/studytree/internal/controller"
	"github.com/studytree-dev/studytree/internal/observability"
	"github.com/studytree-dev/studytree/internal/pipeline"
	"github.com/studytree-dev/studytree/pkg/config"
	obsmetrics "github.com/studytree-dev/studytree/pkg/observability"
	"github.com/studytree-dev/studytree/pkg/session"
)

// Version information (set via ldflags)
var Version = "dev"

var (
	configFile string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "studytree",
	Short: "Branching micro-lesson sessions from the command line",
	Long: `studytree drives a branching lesson session: it generates a lesson
for a topic, lets you answer questions and ask your own (which branch
the lesson tree), and persists the session between invocations.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (YAML)")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		if configFile != "" {
			cfg, err = config.Load(configFile)
		} else {
			cfg = config.Default()
		}
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		obsmetrics.InitMetrics()
		if err := observability.InitFromEnv(); err != nil {
			log.Printf("tracing disabled: %v", err)
		}
		return nil
	}
}

// buildController wires the controller from configuration. The caller
// must invoke the returned cleanup.
func buildController(ctx context.Context) (*controller.Controller, func(), error) {
	store, err := session.Open(cfg.Session)
	if err != nil {
		return nil, nil, fmt.Errorf("open session store: %w", err)
	}

	var (
		analyzer   assess.Analyzer
		evaluator  assess.Evaluator
		questioner assess.Questioner
	)
	switch cfg.Assess.Provider {
	case "openai":
		assessor := assess.NewOpenAIAssessor(cfg.Assess.OpenAI)
		analyzer, evaluator, questioner = assessor, assessor, assessor
	default:
		client := assess.NewHTTPClient(cfg.Assess.HTTP)
		analyzer, evaluator, questioner = client, client, client
	}

	ctrl := controller.New(controller.Deps{
		Generator:  pipeline.NewClient(cfg.Pipeline),
		Analyzer:   analyzer,
		Evaluator:  evaluator,
		Questioner: questioner,
		Store:      store,
		Slot:       cfg.Session.Slot,
		OnProgress: printProgress,
	})
	ctrl.Resume(ctx)

	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Printf("closing store: %v", err)
		}
		observability.Shutdown(ctx)
	}
	return ctrl, cleanup, nil
}

func printProgress(p pipeline.Progress) {
	if p.StageName != "" {
		fmt.Printf("  [%3.0f%%] %s %s\n", p.Percentage, p.StageName, p.Message)
		return
	}
	fmt.Printf("  [%3.0f%%] %s\n", p.Percentage, p.Message)
}
