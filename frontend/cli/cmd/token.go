package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/furisto/switchboard/frontend/cli/pkg/terminal"
	"github.com/furisto/switchboard/shared/config"
	"github.com/furisto/switchboard/shared/keyring"
)

const defaultTokenKey = "agent"

func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "token",
		Short:   "Manage the agent service bearer token",
		GroupID: "system",
	}

	cmd.AddCommand(NewTokenSetCmd())
	cmd.AddCommand(NewTokenDeleteCmd())
	return cmd
}

type tokenOptions struct {
	Key string
}

func NewTokenSetCmd() *cobra.Command {
	var options tokenOptions

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store the agent token in the OS keyring",
		Long: `Store the agent token in the OS keyring and point agent.token_ref in the
config file at it. At a terminal the token is prompted for without echo;
otherwise the first line of stdin is used.`,
		Example: `  echo "$AGENT_TOKEN" | switchboard token set`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := readToken(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			if err := getKeyring(cmd.Context()).Set(options.Key, token); err != nil {
				return fmt.Errorf("failed to store token in keyring: %w", err)
			}

			if err := getConfigLoader(cmd.Context()).Save("agent.token_ref", config.TokenRef(options.Key)); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Token stored as %s\n", terminal.SuccessSymbol, config.TokenRef(options.Key))
			return nil
		},
	}

	cmd.Flags().StringVar(&options.Key, "key", defaultTokenKey, "keyring entry to store the token under")
	return cmd
}

func NewTokenDeleteCmd() *cobra.Command {
	var options tokenOptions

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove the agent token from the OS keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := getKeyring(cmd.Context()).Delete(options.Key)
			if err != nil && !errors.Is(err, keyring.ErrNotFound) {
				return fmt.Errorf("failed to delete token from keyring: %w", err)
			}

			cfg := getConfig(cmd.Context())
			if cfg.Agent.TokenRef == config.TokenRef(options.Key) {
				if err := getConfigLoader(cmd.Context()).Save("agent.token_ref", ""); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Token %s deleted\n", terminal.SuccessSymbol, options.Key)
			return nil
		},
	}

	cmd.Flags().StringVar(&options.Key, "key", defaultTokenKey, "keyring entry the token is stored under")
	return cmd
}

var errNoToken = errors.New("no token provided on stdin")

// readToken reads the token from in. A terminal gets a prompt on prompt and
// the input is not echoed; piped input contributes its first line.
func readToken(in io.Reader, prompt io.Writer) (string, error) {
	var raw string
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Enter agent token: ")
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		raw = string(secret)
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		raw = line
	}

	token := strings.TrimSpace(raw)
	if token == "" {
		return "", errNoToken
	}
	return token, nil
}
