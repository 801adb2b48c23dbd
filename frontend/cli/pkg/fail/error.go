package fail

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"connectrpc.com/connect"

	"github.com/furisto/switchboard/frontend/cli/pkg/terminal"
	"github.com/furisto/switchboard/shared"
)

type UserError struct {
	Cause       error
	UserMessage string
	Solutions   []string
	TechDetails string
}

func (e *UserError) Error() string {
	var msg strings.Builder

	msg.WriteString(fmt.Sprintf("%s %s\n\n", terminal.ErrorSymbol, terminal.Bold(e.UserMessage)))

	if len(e.Solutions) > 0 {
		msg.WriteString(fmt.Sprintf("%s Try these solutions:\n", terminal.InfoSymbol))
		for i, solution := range e.Solutions {
			msg.WriteString(fmt.Sprintf("  %d. %s\n", i+1, solution))
		}
		msg.WriteString("\n")
	}

	if e.TechDetails != "" {
		msg.WriteString(fmt.Sprintf("Technical details: %s\n", e.TechDetails))
	}

	return msg.String()
}

func (e *UserError) Unwrap() error {
	return e.Cause
}

func NewPermissionError(path string, err error) *UserError {
	return &UserError{
		Cause:       err,
		UserMessage: fmt.Sprintf("Permission denied accessing %s", path),
		Solutions: []string{
			"Check file permissions and ownership",
			"Ensure you have write access to the directory",
			"Verify the path exists and is accessible",
		},
		TechDetails: fmt.Sprintf("Failed to access %s: %v", path, err),
	}
}

// NewAgentError explains a chat that ended with an error event. message is
// the text of that event.
func NewAgentError(address, message string) *UserError {
	var solutions []string

	switch {
	case strings.Contains(message, "circuit open"):
		solutions = []string{
			"The agent service failed repeatedly, wait for the breaker to reset and try again",
			"Check the agent service logs",
		}
	case strings.Contains(message, "connection refused"), strings.Contains(message, "unavailable"):
		solutions = []string{
			"Check if the agent service is running",
			"Verify the agent address: set GRPC_URL or agent.address in the config file",
			"Run 'switchboard devagent' to start a local development agent",
		}
	case strings.Contains(message, "unauthenticated"):
		solutions = []string{
			"Store the agent token: switchboard token set",
			"Verify that the token matches the one the agent service expects",
		}
	case strings.Contains(message, "no such file"):
		solutions = []string{
			"Check if the socket file exists and has correct permissions",
			"Verify the socket path in the agent address",
		}
	default:
		solutions = []string{
			"Check the agent service logs for details",
			"Retry the query",
		}
	}

	return &UserError{
		Cause:       errors.New(message),
		UserMessage: "The agent could not answer",
		Solutions:   solutions,
		TechDetails: fmt.Sprintf("Agent at %s: %s", address, message),
	}
}

func NewUnhealthyAPIError(url, message string) *UserError {
	return &UserError{
		Cause:       errors.New(message),
		UserMessage: "The API is not healthy",
		Solutions: []string{
			"Check if the API server is running",
			"Verify the API address: set API_URL or api.url in the config file",
		},
		TechDetails: fmt.Sprintf("%s: %s", url, message),
	}
}

func EnhanceError(err error, context map[string]any) error {
	if err == nil {
		return nil
	}

	var userErr *UserError
	if errors.As(err, &userErr) {
		return err
	}

	errStr := err.Error()

	if os.IsPermission(err) {
		if path, ok := context["path"].(string); ok {
			return NewPermissionError(path, err)
		}
	}

	if shared.SourceOf(err) == shared.ErrorSourceConfig {
		return &UserError{
			Cause:       err,
			UserMessage: "The configuration is invalid",
			Solutions: []string{
				"Check the config file for typos",
				"Check SWITCHBOARD_* environment variables",
			},
			TechDetails: errStr,
		}
	}

	if strings.Contains(errStr, "address already in use") {
		return &UserError{
			Cause:       err,
			UserMessage: "The network address is already in use by another process",
			Solutions: []string{
				"Choose a different address with --listen-http",
				"Stop the process using this port",
				"Use a Unix socket instead: --listen-unix",
			},
			TechDetails: errStr,
		}
	}

	if connect.CodeOf(err) == connect.CodeUnauthenticated {
		return &UserError{
			Cause:       err,
			UserMessage: "The agent service rejected the credentials",
			Solutions: []string{
				"Store the agent token: switchboard token set",
			},
			TechDetails: errStr,
		}
	}

	return err
}
