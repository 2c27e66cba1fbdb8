// Package main provides the CLI entrypoint for curricheck.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/curricheck/internal/analysis"
	"github.com/verte-zerg/curricheck/internal/config"
	"github.com/verte-zerg/curricheck/internal/model"
	"github.com/verte-zerg/curricheck/internal/session"
	"github.com/verte-zerg/curricheck/internal/store"
	"github.com/verte-zerg/curricheck/internal/tui"
)

const (
	defaultTimeout = analysis.DefaultTimeout
)

var (
	serviceEndpoint string
	serviceField    string
	serviceTimeout  time.Duration
	noHistory       bool
	debugLog        bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "curricheck [file.xlsx]",
		Short:         "Curriculum redundancy checker",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runRootCmd,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&serviceEndpoint, "endpoint", analysis.DefaultEndpoint, "redundancy service URL")
	flags.StringVar(&serviceField, "field", analysis.DefaultField, "multipart field carrying the file")
	flags.DurationVar(&serviceTimeout, "timeout", defaultTimeout, "request timeout (0 disables)")
	flags.BoolVar(&noHistory, "no-history", false, "do not record analyses in the history database")
	flags.BoolVar(&debugLog, "debug", false, "write debug logs (TUI: to the data dir, otherwise to stderr)")

	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newPreviewCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func runRootCmd(cmd *cobra.Command, args []string) error {
	if len(args) == 1 && !term.IsTerminal(int(os.Stdout.Fd())) {
		return runCheck(cmd, args[0], formatText, "")
	}

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	closeLog, err := setupTUILog()
	if err != nil {
		return err
	}
	defer closeLog()

	history, closeHistory := openHistory(cfg)
	defer closeHistory()

	client := newClient(cfg)
	m := tui.NewModel(session.New(), client, history, client.Endpoint())
	if len(args) == 1 {
		if err := m.Open(args[0]); err != nil {
			return userError(err)
		}
	}
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// resolveConfig layers .env, environment and the TOML file under CLI flags.
func resolveConfig(cmd *cobra.Command) (model.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return model.Config{}, err
	}
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	fileCfg = config.ApplyEnv(fileCfg)

	applyStringConfig(cmd, "endpoint", &serviceEndpoint, fileCfg.Service.Endpoint)
	applyStringConfig(cmd, "field", &serviceField, fileCfg.Service.Field)
	if err := applyDurationConfig(cmd, "timeout", &serviceTimeout, fileCfg.Service.Timeout); err != nil {
		return model.Config{}, err
	}
	historyEnabled := !noHistory
	if fileCfg.History.Enabled != nil && !cmd.Flags().Changed("no-history") {
		historyEnabled = *fileCfg.History.Enabled
	}

	cfg := model.Config{
		Endpoint:       strings.TrimSpace(serviceEndpoint),
		Field:          strings.TrimSpace(serviceField),
		Timeout:        serviceTimeout,
		HistoryEnabled: historyEnabled,
	}
	if err := validateConfig(cfg); err != nil {
		return model.Config{}, err
	}
	if !debugLog {
		log.SetOutput(io.Discard)
	}
	return cfg, nil
}

func validateConfig(cfg model.Config) error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("--endpoint must not be empty")
	}
	if !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://") {
		return fmt.Errorf("--endpoint must be an http(s) URL")
	}
	if cfg.Field == "" {
		return fmt.Errorf("--field must not be empty")
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("--timeout must be >= 0")
	}
	return nil
}

func newClient(cfg model.Config) *analysis.Client {
	return analysis.NewClient(cfg.Endpoint,
		analysis.WithField(cfg.Field),
		analysis.WithTimeout(cfg.Timeout),
	)
}

func openHistory(cfg model.Config) (*store.Store, func()) {
	if !cfg.HistoryEnabled {
		return nil, func() {}
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		logErrf("history disabled: failed to open db: %v\n", err)
		return nil, func() {}
	}
	return st, func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}
}

func setupTUILog() (func(), error) {
	if !debugLog {
		log.SetOutput(io.Discard)
		return func() {}, nil
	}
	path := config.DefaultLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := tea.LogToFile(path, "curricheck")
	if err != nil {
		return nil, fmt.Errorf("failed to open debug log: %w", err)
	}
	return func() {
		_ = f.Close()
	}, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *string) error {
	if value == nil {
		return nil
	}
	if cmd.Flags().Changed(name) {
		return nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(*value))
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", name, *value, err)
	}
	*target = parsed
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# curricheck configuration
# Uncomment a value to enable it. Environment variables (%s, %s)
# override this file; CLI flags override both.

[service]
# endpoint = %q   # Redundancy service URL
# field = %q                                        # Multipart field carrying the file
# timeout = %q                                      # Request timeout

[history]
# enabled = true                                       # Record analyses in the history database
`,
		config.EnvEndpoint,
		config.EnvTimeout,
		analysis.DefaultEndpoint,
		analysis.DefaultField,
		defaultTimeout.String(),
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
