package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var loginPassword string

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Sign in and remember the username for later sessions",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored username",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := identityFile().Clear(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (prompted for when omitted)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	username := strings.TrimSpace(args[0])
	password := loginPassword
	if password == "" {
		var err error
		password, err = readPassword(cmd)
		if err != nil {
			return err
		}
	}

	client, err := newDispatchClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	resp, err := client.Login(ctx, username, password)
	if err != nil {
		logger.Warn("login request failed", zap.String("username", username), zap.Error(err))
		return fmt.Errorf("could not reach %s: %w", client.Server(), err)
	}
	if !resp.Success || resp.User == nil {
		msg := resp.Message
		if msg == "" {
			msg = "login rejected"
		}
		return errors.New(msg)
	}

	if err := identityFile().Save(resp.User.Username); err != nil {
		return err
	}
	logger.Info("logged in", zap.String("username", resp.User.Username))
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", resp.User.Username)
	return nil
}

func readPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
