package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gwi.com/assistant/internal/chat"
	"gwi.com/assistant/internal/config"
	"gwi.com/assistant/internal/dispatch"
	"gwi.com/assistant/internal/observability"
	"gwi.com/assistant/internal/reveal"
	"gwi.com/assistant/internal/session"
	"gwi.com/assistant/internal/tui"
)

var (
	// Global flags
	serverURL string
	verbose   bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "assistant",
	Short: "Terminal client for the business assistant",
	Long: `Chat with the business assistant from your terminal.

Run 'assistant login <username>' once, then start 'assistant' for the
interactive client or 'assistant ask "<question>"' for a single answer.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              runInteractive,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Answering service URL (or set ASSISTANT_SERVER_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(askCmd)
}

func main() {
	defer func() {
		if logger != nil {
			_ = logger.Sync()
		}
	}()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and opens the log file. The terminal belongs to
// the UI, so logs never go to stdout.
func setup(cmd *cobra.Command, _ []string) error {
	if _, err := config.LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if serverURL != "" {
		config.AppConfig.ServerURL = serverURL
	}
	level := config.AppConfig.LogLevel
	if verbose {
		level = "DEBUG"
	}

	var err error
	logger, err = observability.NewLogger(level, config.AppConfig.LogFile)
	if err != nil {
		return err
	}
	logger.Debug("client starting",
		zap.String("command", cmd.Name()),
		zap.String("server", config.AppConfig.ServerURL))
	return nil
}

func newDispatchClient() (*dispatch.Client, error) {
	client, err := dispatch.NewClient(config.AppConfig.ServerURL, config.AppConfig.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	return client, nil
}

func identityFile() session.FileIdentity {
	return session.FileIdentity{Path: config.AppConfig.IdentityFile}
}

func runInteractive(cmd *cobra.Command, _ []string) error {
	identity := identityFile()
	if _, err := identity.Identity(); err != nil {
		return fmt.Errorf("not logged in, run 'assistant login <username>' first: %w", err)
	}
	client, err := newDispatchClient()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()

	engine := reveal.NewEngine(config.AppConfig.RevealChunkSize, config.AppConfig.RevealInterval)
	ctrl := session.NewController(chat.NewThreadStore(), client, engine, identity, logger)
	defer ctrl.Close()

	p := tea.NewProgram(tui.New(ctx, ctrl, tui.Options{}), tea.WithAltScreen(), tea.WithContext(ctx))
	engine.OnSnapshot(tui.RevealSink(p))

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
