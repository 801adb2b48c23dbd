package cmd

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/furisto/switchboard/frontend/cli/pkg/fail"
	"github.com/furisto/switchboard/shared"
)

func TestRoot(t *testing.T) {
	setup := &TestSetup{}

	setup.RunTests(t, []TestScenario{
		{
			Name:    "error - invalid log level",
			Command: []string{"--log-level", "loud", "health"},
			Expected: TestExpectation{
				Error: `invalid argument "loud" for "--log-level" flag: must be one of "debug", "info", "warn", or "error"`,
			},
		},
		{
			Name:    "error - invalid config",
			Command: []string{"health"},
			SetupFileSystem: func(fs *afero.Afero) {
				require.NoError(t, fs.WriteFile(testConfig, []byte("agent:\n  protocol: telepathy\n"), 0600))
			},
			Expected: TestExpectation{
				Error: fail.EnhanceError(shared.Errorf(shared.ErrorSourceConfig, `invalid agent.protocol "telepathy": must be grpc, grpcweb or connect`), nil).Error(),
			},
		},
	})
}
