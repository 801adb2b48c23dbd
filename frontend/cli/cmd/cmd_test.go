package cmd

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	v1 "github.com/furisto/switchboard/api/go/v1"
	"github.com/furisto/switchboard/backend/health"
	"github.com/furisto/switchboard/backend/stream"
	"github.com/furisto/switchboard/shared/keyring"
)

const (
	testConfigDir = "/home/user/.config/switchboard"
	testConfig    = testConfigDir + "/config.yaml"
)

var testNow = time.UnixMilli(1700000000000)

type TestUserInfo struct{}

func (u *TestUserInfo) HomeDir() (string, error)   { return "/home/user", nil }
func (u *TestUserInfo) ConfigDir() (string, error) { return testConfigDir, nil }
func (u *TestUserInfo) LogDir() (string, error)    { return "/home/user/.local/state/switchboard", nil }

type chatCall struct {
	Query          string
	ConversationID string
}

type FakeAgent struct {
	Events []v1.Event
	Err    error

	mu    sync.Mutex
	calls []chatCall
}

func (f *FakeAgent) StreamAgentResponse(ctx context.Context, query, conversationID string) *stream.Stream {
	f.mu.Lock()
	f.calls = append(f.calls, chatCall{Query: query, ConversationID: conversationID})
	f.mu.Unlock()

	s := stream.New(stream.WithClock(func() time.Time { return testNow }))
	for _, event := range f.Events {
		s.Publish(&v1.AgentResponse{Event: event, Timestamp: testNow.UnixMilli()})
	}
	if f.Err != nil {
		s.Fail(f.Err)
	} else {
		s.End()
	}
	return s
}

func (f *FakeAgent) Address() string {
	return "localhost:50051"
}

func (f *FakeAgent) Calls() []chatCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type FakeHealth struct {
	Result health.Result
}

func (f *FakeHealth) Check(context.Context) health.Result {
	return f.Result
}

func (f *FakeHealth) URL() string {
	return "http://localhost:8080/health"
}

type TestSetup struct {
	CmpOptions []cmp.Option
}

type TestScenario struct {
	Name            string
	Command         []string
	Stdin           string
	Agent           *FakeAgent
	Health          *FakeHealth
	Keyring         *keyring.MemoryProvider
	SetupFileSystem func(fs *afero.Afero)
	SetupEnv        map[string]string
	Verify          func(t *testing.T, fs *afero.Afero)
	Expected        TestExpectation
}

type TestExpectation struct {
	Stdout string
	Error  string
}

var configEnv = []string{
	"GRPC_URL", "API_URL", "NEXT_PUBLIC_API_URL",
	"SWITCHBOARD_AGENT_ADDRESS", "SWITCHBOARD_AGENT_TOKEN", "SWITCHBOARD_AGENT_TOKEN_REF",
	"SWITCHBOARD_API_URL", "SWITCHBOARD_LOG_LEVEL", "SWITCHBOARD_SENTRY_DSN",
}

func (s *TestSetup) RunTests(t *testing.T, scenarios []TestScenario) {
	if len(scenarios) == 0 {
		t.Fatalf("no scenarios provided")
	}

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			for _, name := range configEnv {
				t.Setenv(name, "")
			}
			for key, value := range scenario.SetupEnv {
				t.Setenv(key, value)
			}

			fs := &afero.Afero{Fs: afero.NewMemMapFs()}
			if scenario.SetupFileSystem != nil {
				scenario.SetupFileSystem(fs)
			}

			agent := scenario.Agent
			if agent == nil {
				agent = &FakeAgent{}
			}
			checker := scenario.Health
			if checker == nil {
				checker = &FakeHealth{Result: health.Result{Healthy: true, Message: health.MessageHealthy}}
			}
			secrets := scenario.Keyring
			if secrets == nil {
				secrets = keyring.NewMemoryProvider(nil)
			}

			testCmd := NewRootCmd()

			stdin := bytes.NewBufferString(scenario.Stdin)
			testCmd.SetIn(stdin)

			var stdout, stderr bytes.Buffer
			testCmd.SetOut(&stdout)
			testCmd.SetErr(&stderr)

			ctx := context.Background()
			ctx = context.WithValue(ctx, ContextKeyFileSystem, fs)
			ctx = context.WithValue(ctx, ContextKeyUserInfo, &TestUserInfo{})
			ctx = context.WithValue(ctx, ContextKeyDisableFileLogs, true)
			ctx = context.WithValue(ctx, ContextKeyAgentClient, agent)
			ctx = context.WithValue(ctx, ContextKeyHealthChecker, checker)
			ctx = context.WithValue(ctx, ContextKeyKeyring, secrets)

			testCmd.SetArgs(scenario.Command)

			var actual TestExpectation
			err := testCmd.ExecuteContext(ctx)
			if err != nil {
				actual.Error = err.Error()
			}
			actual.Stdout = stdout.String()

			if diff := cmp.Diff(scenario.Expected, actual, s.CmpOptions...); diff != "" {
				t.Errorf("%s() mismatch (-want +got):\n%s\nstderr:\n%s", scenario.Name, diff, stderr.String())
			}

			if scenario.Verify != nil {
				scenario.Verify(t, fs)
			}
		})
	}
}
