package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"gwi.com/assistant/internal/dispatch"
	"gwi.com/assistant/internal/session"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return errors.New("question cannot be empty")
	}
	username, err := identityFile().Identity()
	if err != nil {
		return fmt.Errorf("not logged in, run 'assistant login <username>' first: %w", err)
	}
	client, err := newDispatchClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	res := client.Dispatch(ctx, username, query)
	answer := res.Answer
	if !res.OK() {
		logger.Warn("query not answered",
			zap.Stringer("outcome", res.Kind),
			zap.String("service_message", res.Message),
			zap.Error(res.Err))
		answer = session.ApologyMessage
	}
	fmt.Fprint(cmd.OutOrStdout(), render(answer))
	if res.Kind == dispatch.KindUnavailable {
		return errors.New("answering service unavailable")
	}
	return nil
}

// render formats markdown when stdout is a terminal and leaves piped output
// untouched.
func render(answer string) string {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return answer + "\n"
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	if err != nil {
		return answer + "\n"
	}
	out, err := r.Render(answer)
	if err != nil {
		return answer + "\n"
	}
	return out
}
