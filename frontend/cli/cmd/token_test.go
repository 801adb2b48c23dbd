package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furisto/switchboard/frontend/cli/pkg/terminal"
	"github.com/furisto/switchboard/shared/keyring"
)

func TestToken(t *testing.T) {
	setup := &TestSetup{}

	stored := keyring.NewMemoryProvider(nil)
	existing := keyring.NewMemoryProvider(map[string]string{"agent": "old"})
	piped := keyring.NewMemoryProvider(nil)

	setup.RunTests(t, []TestScenario{
		{
			Name:    "success - set stores token and reference",
			Command: []string{"token", "set"},
			Stdin:   "s3cret\n",
			Keyring: stored,
			SetupFileSystem: func(fs *afero.Afero) {
				require.NoError(t, fs.WriteFile(testConfig, []byte("agent:\n  address: agent:50051\n"), 0600))
			},
			Expected: TestExpectation{
				Stdout: terminal.SuccessSymbol + " Token stored as keyring://switchboard/agent\n",
			},
			Verify: func(t *testing.T, fs *afero.Afero) {
				token, err := stored.Get("agent")
				require.NoError(t, err)
				assert.Equal(t, "s3cret", token)

				content, err := fs.ReadFile(testConfig)
				require.NoError(t, err)
				assert.Contains(t, string(content), "token_ref: keyring://switchboard/agent")
				assert.Contains(t, string(content), "address: agent:50051")
			},
		},
		{
			Name:    "error - set without token",
			Command: []string{"token", "set"},
			Expected: TestExpectation{
				Error: "no token provided on stdin",
			},
		},
		{
			Name:    "success - piped token without trailing newline",
			Command: []string{"token", "set", "--key", "ci"},
			Stdin:   "  piped-token",
			Keyring: piped,
			Expected: TestExpectation{
				Stdout: terminal.SuccessSymbol + " Token stored as keyring://switchboard/ci\n",
			},
			Verify: func(t *testing.T, fs *afero.Afero) {
				token, err := piped.Get("ci")
				require.NoError(t, err)
				assert.Equal(t, "piped-token", token)
			},
		},
		{
			Name:    "error - set with whitespace only token",
			Command: []string{"token", "set"},
			Stdin:   " \t\nsecond-line\n",
			Expected: TestExpectation{
				Error: "no token provided on stdin",
			},
		},
		{
			Name:    "success - delete removes token and reference",
			Command: []string{"token", "delete"},
			Keyring: existing,
			SetupFileSystem: func(fs *afero.Afero) {
				require.NoError(t, fs.WriteFile(testConfig, []byte("agent:\n  token_ref: keyring://switchboard/agent\n"), 0600))
			},
			Expected: TestExpectation{
				Stdout: terminal.SuccessSymbol + " Token agent deleted\n",
			},
			Verify: func(t *testing.T, fs *afero.Afero) {
				assert.False(t, existing.Has("agent"))

				content, err := fs.ReadFile(testConfig)
				require.NoError(t, err)
				assert.NotContains(t, string(content), "keyring://")
			},
		},
		{
			Name:    "success - delete missing token",
			Command: []string{"token", "delete", "--key", "other"},
			Expected: TestExpectation{
				Stdout: terminal.SuccessSymbol + " Token other deleted\n",
			},
		},
	})
}

func TestReadToken_Piped(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		want    string
		wantErr error
	}{
		{name: "first line only", stdin: "s3cret\nignored\n", want: "s3cret"},
		{name: "no trailing newline", stdin: "s3cret", want: "s3cret"},
		{name: "surrounding whitespace", stdin: "  s3cret \r\n", want: "s3cret"},
		{name: "empty", stdin: "", wantErr: errNoToken},
		{name: "blank line", stdin: "\n", wantErr: errNoToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prompt bytes.Buffer

			got, err := readToken(strings.NewReader(tt.stdin), &prompt)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Empty(t, prompt.String(), "piped input must not be prompted for")
		})
	}
}
