package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/furisto/switchboard/backend/health"
	"github.com/furisto/switchboard/frontend/cli/pkg/fail"
	"github.com/furisto/switchboard/frontend/cli/pkg/terminal"
)

type healthOptions struct {
	JSON bool
}

func NewHealthCmd() *cobra.Command {
	var options healthOptions

	cmd := &cobra.Command{
		Use:     "health",
		Short:   "Check whether the REST API is reachable",
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			checker := getHealthChecker(cmd.Context())

			result, _ := terminal.SpinnerFunc(cmd.ErrOrStderr(), "Checking API health", func() (health.Result, error) {
				result := checker.Check(cmd.Context())
				if !result.Healthy {
					return result, fmt.Errorf("%s", result.Message)
				}
				return result, nil
			}, terminal.WithErrorMsg("API is unhealthy"))

			if options.JSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				if err := encoder.Encode(result); err != nil {
					return err
				}
			} else if result.Healthy {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", terminal.SuccessSymbol, result.Message)
			}

			if !result.Healthy {
				return fail.NewUnhealthyAPIError(checker.URL(), result.Message)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&options.JSON, "json", false, "print the result as JSON")

	return cmd
}
