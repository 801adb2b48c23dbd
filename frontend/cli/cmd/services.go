package cmd

import (
	"context"

	"github.com/spf13/afero"

	"github.com/furisto/switchboard/api/go/client"
	"github.com/furisto/switchboard/backend/api"
	"github.com/furisto/switchboard/backend/health"
	"github.com/furisto/switchboard/shared"
	"github.com/furisto/switchboard/shared/config"
	"github.com/furisto/switchboard/shared/keyring"
)

type contextKey string

const (
	ContextKeyFileSystem      contextKey = "file_system"
	ContextKeyUserInfo        contextKey = "user_info"
	ContextKeyKeyring         contextKey = "keyring"
	ContextKeyDisableFileLogs contextKey = "disable_file_logs"
	ContextKeyConfig          contextKey = "config"
	ContextKeyConfigLoader    contextKey = "config_loader"
	ContextKeyAgentClient     contextKey = "agent_client"
	ContextKeyHealthChecker   contextKey = "health_checker"
	ContextKeyGlobalOptions   contextKey = "global_options"
)

func getFileSystem(ctx context.Context) *afero.Afero {
	if fs, ok := ctx.Value(ContextKeyFileSystem).(*afero.Afero); ok {
		return fs
	}
	return &afero.Afero{Fs: afero.NewOsFs()}
}

func getUserInfo(ctx context.Context) shared.UserInfo {
	if userInfo, ok := ctx.Value(ContextKeyUserInfo).(shared.UserInfo); ok {
		return userInfo
	}
	return shared.NewDefaultUserInfo(getFileSystem(ctx))
}

func getKeyring(ctx context.Context) keyring.Provider {
	if provider, ok := ctx.Value(ContextKeyKeyring).(keyring.Provider); ok {
		return provider
	}
	return keyring.NewKeyringProvider()
}

func setConfig(ctx context.Context, loader *config.Loader, cfg *config.Config) context.Context {
	ctx = context.WithValue(ctx, ContextKeyConfigLoader, loader)
	return context.WithValue(ctx, ContextKeyConfig, cfg)
}

func getConfig(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(ContextKeyConfig).(*config.Config); ok {
		return cfg
	}
	return nil
}

func getConfigLoader(ctx context.Context) *config.Loader {
	if loader, ok := ctx.Value(ContextKeyConfigLoader).(*config.Loader); ok {
		return loader
	}
	return nil
}

func setGlobalOptions(ctx context.Context, options *globalOptions) context.Context {
	return context.WithValue(ctx, ContextKeyGlobalOptions, options)
}

// agentClient is what the CLI needs from the agent service.
type agentClient interface {
	api.Streamer
	Address() string
}

// getAgentClient returns the injected client or builds one from the loaded
// configuration.
func getAgentClient(ctx context.Context, opts ...client.Option) (agentClient, error) {
	if c, ok := ctx.Value(ContextKeyAgentClient).(agentClient); ok {
		return c, nil
	}

	cfg := getConfig(ctx)
	token, err := cfg.AgentToken(getKeyring(ctx))
	if err != nil {
		return nil, err
	}
	if token != "" {
		opts = append(opts, client.WithAuthToken(token))
	}

	return client.New(client.Config{
		Address:          cfg.Agent.Address,
		Protocol:         client.Protocol(cfg.Agent.Protocol),
		BreakerThreshold: cfg.Agent.BreakerThreshold,
		BreakerReset:     cfg.Agent.BreakerReset,
	}, opts...), nil
}

// healthChecker is what the CLI needs from the health probe.
type healthChecker interface {
	api.HealthChecker
	URL() string
}

func getHealthChecker(ctx context.Context) healthChecker {
	if checker, ok := ctx.Value(ContextKeyHealthChecker).(healthChecker); ok {
		return checker
	}

	cfg := getConfig(ctx)
	return health.NewProbe(cfg.API.URL, cfg.API.Timeout)
}

var (
	_ agentClient   = (*client.Client)(nil)
	_ healthChecker = (*health.Probe)(nil)
	_ api.Streamer  = (*client.Client)(nil)
)
