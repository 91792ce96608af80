package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/playbook/internal/cli"
	"github.com/aretw0/playbook/internal/config"
	"github.com/aretw0/playbook/internal/logging"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "playbook",
	Short: "Playbook guides agents and people through step-by-step protocols",
	Long: `Playbook detects which protocol a request calls for and walks through its steps,
rendering the command for each one. It never runs commands itself: the caller
executes them and reports back with "playbook done".`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// The context is cancelled on SIGINT/SIGTERM.
func Execute() {
	ctx := cli.NewSignalContext(context.Background())
	err := rootCmd.ExecuteContext(ctx)
	ctx.Cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default: $PLAYBOOK_CONFIG or ./playbook.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().Bool("json", false, "Print machine-readable JSON")
	rootCmd.PersistentFlags().String("store", "", "Override the store backend (file, memory, redis, sqlite)")
	rootCmd.PersistentFlags().String("catalog", "", "Directory of protocol documents (Loam)")
}

// loadConfig resolves the configuration and applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	if s, _ := cmd.Flags().GetString("store"); s != "" {
		cfg.Store = s
	}
	if dir, _ := cmd.Flags().GetString("catalog"); dir != "" {
		cfg.Catalog.Dir = dir
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.New(logging.ParseLevel(cfg.LogLevel)), nil
}

// setup builds the app and a printer for stdout. Callers must Close the app.
func setup(cmd *cobra.Command) (*cli.App, *cli.Printer, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	app, err := cli.NewApp(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	jsonMode, _ := cmd.Flags().GetBool("json")
	return app, cli.NewPrinter(cmd.OutOrStdout(), jsonMode), nil
}

// withApp runs fn with a fully wired app.
func withApp(fn func(ctx context.Context, app *cli.App, out *cli.Printer, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, out, err := setup(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		return fn(cmd.Context(), app, out, args)
	}
}

// contextFlags adds --set and --context to cmd.
func contextFlags(cmd *cobra.Command) {
	cmd.Flags().StringArray("set", nil, "Context value as key=value (repeatable; JSON values are decoded)")
	cmd.Flags().String("context", "", "Context as a JSON object")
}

// parseContext merges --context and --set; --set wins.
func parseContext(cmd *cobra.Command) (domain.Context, error) {
	raw := map[string]any{}
	if s, _ := cmd.Flags().GetString("context"); s != "" {
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			return nil, fmt.Errorf("invalid --context: %w", err)
		}
	}
	sets, _ := cmd.Flags().GetStringArray("set")
	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: want key=value", kv)
		}
		raw[key] = decodeValue(value)
	}
	return domain.ContextFrom(raw), nil
}

// decodeValue treats JSON literals (numbers, booleans, objects) as typed values.
func decodeValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}
