package fail

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furisto/switchboard/shared"
)

func TestUserError_Error(t *testing.T) {
	err := &UserError{
		UserMessage: "Something broke",
		Solutions:   []string{"Fix it", "Try again"},
		TechDetails: "details",
	}

	assert.Contains(t, err.Error(), "Something broke")
	assert.Contains(t, err.Error(), "  1. Fix it\n  2. Try again\n")
	assert.Contains(t, err.Error(), "Technical details: details\n")
}

func TestNewAgentError(t *testing.T) {
	tests := []struct {
		message      string
		wantSolution string
	}{
		{message: "unavailable: dial tcp: connection refused", wantSolution: "Check if the agent service is running"},
		{message: "unavailable: circuit open for localhost:50051", wantSolution: "Check the agent service logs"},
		{message: "unauthenticated: missing authorization header", wantSolution: "Store the agent token: switchboard token set"},
		{message: "internal: model crashed", wantSolution: "Check the agent service logs for details"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			err := NewAgentError("localhost:50051", tt.message)

			assert.Contains(t, err.Solutions, tt.wantSolution)
			assert.Equal(t, "Agent at localhost:50051: "+tt.message, err.TechDetails)
			assert.EqualError(t, errors.Unwrap(err), tt.message)
		})
	}
}

func TestEnhanceError(t *testing.T) {
	var userErr *UserError

	assert.NoError(t, EnhanceError(nil, nil))

	plain := errors.New("plain")
	assert.Same(t, plain, EnhanceError(plain, nil))

	err := EnhanceError(fmt.Errorf("listen: %w", errors.New("bind: address already in use")), nil)
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "The network address is already in use by another process", userErr.UserMessage)

	err = EnhanceError(shared.Errorf(shared.ErrorSourceConfig, "invalid agent.protocol"), nil)
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "The configuration is invalid", userErr.UserMessage)

	err = EnhanceError(&os.PathError{Op: "open", Path: "/etc/switchboard", Err: os.ErrPermission}, map[string]any{"path": "/etc/switchboard"})
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "Permission denied accessing /etc/switchboard", userErr.UserMessage)
}
