// smolchat is a terminal chat client for a locally hosted Ollama daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"smolchat/internal/bootstrap"
	"smolchat/internal/chat"
	"smolchat/internal/config"
	"smolchat/internal/ollama"
)

var (
	// Global flags
	verbose bool
	cfgPath string

	// Session flags
	flagModel     string
	flagSystem    string
	flagTemp      float64
	flagCtx       int
	flagMaxTokens int
	flagNoStream  bool
	flagPrompt    string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "smolchat",
	Short: "smolchat - terminal chat for a local Ollama daemon",
	Long: `smolchat is a thin terminal client over the Ollama HTTP API.

It streams generated tokens as they arrive, keeps the conversation
history for the session, and pulls the configured model via the ollama
CLI when the daemon does not have it yet.

Run without -p to start an interactive chat; use -p for a one-shot
prompt that prints the response and exits.`,
	SilenceUsage: true,
	RunE:         runChat,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default: ~/.smolchat/config.yaml)")

	rootCmd.Flags().StringVarP(&flagModel, "model", "m", "", "Model name, e.g. smollm2:1.7b (or set OLLAMA_MODEL)")
	rootCmd.Flags().StringVarP(&flagSystem, "system", "s", "", "Optional system prompt")
	rootCmd.Flags().Float64VarP(&flagTemp, "temperature", "t", 0, "Sampling temperature")
	rootCmd.Flags().IntVar(&flagCtx, "ctx", 0, "Context window size (num_ctx)")
	rootCmd.Flags().IntVar(&flagMaxTokens, "max-tokens", 0, "Max tokens to generate (num_predict)")
	rootCmd.Flags().BoolVar(&flagNoStream, "no-stream", false, "Disable streaming output")
	rootCmd.Flags().StringVarP(&flagPrompt, "prompt", "p", "", "One-shot prompt (non-interactive)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	logger = zap.NewNop()
	if verbose {
		zapCfg := zap.NewDevelopmentConfig()
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger.Debug("configuration resolved",
		zap.String("endpoint", cfg.BaseURL()),
		zap.String("model", cfg.Model))

	client := ollama.NewClient(cfg, logger)
	ctx := cmd.Context()

	// Startup probe: an unreachable daemon is fatal here, unlike mid-session.
	version, err := client.Version(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot reach Ollama at %s. Is the daemon running?\n", cfg.BaseURL())
		fmt.Fprintln(os.Stderr, "Start it with: ollama serve")
		return err
	}
	logger.Debug("daemon reachable", zap.String("version", version))

	if err := bootstrap.Ensure(ctx, client, cfg.Model, os.Stderr, logger); err != nil {
		return err
	}

	session := chat.New(cfg, client, os.Stdin, os.Stdout, os.Stderr, logger)
	if flagPrompt != "" {
		return session.OneShot(ctx, flagPrompt)
	}
	return session.Run(ctx)
}

// loadConfig resolves the session configuration: defaults, config file,
// environment, then flags. The result is read-only afterwards.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := cfgPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path: %w", err)
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Model = flagModel
	}
	if flags.Changed("system") {
		cfg.System = flagSystem
	}
	if flags.Changed("temperature") {
		cfg.Temperature = flagTemp
	}
	if flags.Changed("ctx") {
		cfg.NumCtx = flagCtx
	}
	if flags.Changed("max-tokens") {
		cfg.NumPredict = flagMaxTokens
	}
	if flags.Changed("no-stream") {
		cfg.NoStream = flagNoStream
	}
	return cfg, nil
}
