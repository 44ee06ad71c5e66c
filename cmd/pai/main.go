package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"paicode/internal/agent"
	"paicode/internal/config"
	"paicode/internal/history"
	"paicode/internal/llm"
	"paicode/internal/logging"
	"paicode/internal/ui"
	"paicode/internal/workspace"
)

const version = "0.3.0"

var (
	// Global flags
	verbose       bool
	workspaceFlag string

	// Logger for non-interactive subcommands
	logger *zap.Logger
)

// rootCmd represents the base command. Running it without a subcommand
// starts the interactive session.
var rootCmd = &cobra.Command{
	Use:   "pai",
	Short: "pai - interactive workspace agent",
	Long: `pai is an interactive agent that reads, writes, and reorganizes files
inside a sandboxed workspace directory.

Each request is classified, planned, and executed as batches of explicit
file commands. Large rewrites of existing files are blocked by a
mutation guard; nothing outside the workspace is ever touched.

Run without arguments to start the interactive session in the current
directory.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The interactive session has its own categorized file logger.
		if cmd.Use == "pai" && cmd.CalledAs() == "pai" {
			return nil
		}

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pai version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pai %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", "", "workspace directory (default: current directory)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// resolveWorkspaceRoot picks the workspace directory from the flag or
// the current directory.
func resolveWorkspaceRoot() (string, error) {
	if workspaceFlag != "" {
		return workspaceFlag, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to resolve current directory: %w", err)
	}
	return cwd, nil
}

// resolveAPIKey returns the API key from config or env, falling back to
// the credential store.
func resolveAPIKey(cfg *config.Config) (string, error) {
	if cfg.Model.APIKey != "" {
		return cfg.Model.APIKey, nil
	}
	return config.LoadAPIKey()
}

func runInteractive() error {
	root, err := resolveWorkspaceRoot()
	if err != nil {
		return err
	}

	cfg, err := config.Load(filepath.Join(root, ".pai", "config.yaml"))
	if err != nil {
		return err
	}

	apiKey, err := resolveAPIKey(cfg)
	if err != nil {
		return err
	}
	cfg.Model.APIKey = apiKey
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logging.Initialize(root, cfg.Logging.DebugMode, cfg.Logging.Level); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.CloseAll()
	logging.Get(logging.CategoryBoot).Info("pai %s starting in %s", version, root)

	ws, err := workspace.New(root, workspace.Options{
		ModifyThreshold: cfg.Guard.ModifyThreshold,
		MaxChangeRatio:  cfg.Guard.MaxChangeRatio,
	})
	if err != nil {
		return err
	}

	client := llm.NewGeminiClientWithConfig(llm.GeminiConfig{
		APIKey:  cfg.Model.APIKey,
		BaseURL: cfg.Model.BaseURL,
		Model:   cfg.Model.Model,
		Timeout: cfg.GetModelTimeout(),
	})

	token := agent.NewCancelToken()
	printer := ui.NewPrinter()

	// First Ctrl+C requests a graceful stop at the next checkpoint; a
	// second one while the first is still pending exits immediately.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if token.Signal() {
				printer.Warnf("cancelling at the next safe point (Ctrl+C again to force quit)")
				continue
			}
			printer.Errorf("forced exit")
			logging.CloseAll()
			os.Exit(130)
		}
	}()

	controller := agent.NewController(ws, client, token, agent.Options{
		BatchLimit: cfg.EffectiveBatchLimit(),
		MaxPhases:  cfg.Execution.MaxPhases,
	})

	var store *history.Store
	if store, err = history.Open(filepath.Join(root, ".pai", "history.db")); err != nil {
		// The history log is informational; the session runs without it.
		logging.SessionError("history store unavailable: %v", err)
		store = nil
	} else {
		defer store.Close()
	}

	session := agent.NewSession(agent.SessionConfig{
		Version:    version,
		Workspace:  ws,
		Controller: controller,
		Cancel:     token,
		Printer:    printer,
		Store:      store,
		Input:      os.Stdin,
	})

	return session.Run(context.Background())
}
