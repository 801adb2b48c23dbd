package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/furisto/switchboard/frontend/cli/pkg/fail"
	"github.com/furisto/switchboard/shared"
	"github.com/furisto/switchboard/shared/config"
)

var (
	// Version is the version of the CLI
	Version = "unknown"

	// Git Commit is the commit that the CLI was built from
	GitCommit = "unknown"

	// BuildDate is the date the CLI was built
	BuildDate = "unknown"
)

type globalOptions struct {
	LogLevel   LogLevel
	ConfigFile string
}

func NewRootCmd() *cobra.Command {
	options := globalOptions{}
	cmd := &cobra.Command{
		Use:           "switchboard",
		Short:         "Switchboard: bridge the agent dashboard to the agent service.",
		Long:          figure.NewColorFigure("switchboard", "standard", "blue", true).String(),
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			fs := getFileSystem(cmd.Context())
			userInfo := getUserInfo(cmd.Context())

			configDir, err := userInfo.ConfigDir()
			if err != nil {
				return fail.EnhanceError(err, map[string]any{"path": configDir})
			}

			loader := config.NewLoader(fs, configDir)
			if options.ConfigFile != "" {
				loader.WithConfigFile(options.ConfigFile)
			}
			cfg, err := loader.Load()
			if err != nil {
				return fail.EnhanceError(err, nil)
			}

			options.LogLevel = resolveLogLevel(cmd, &options, cfg)
			slog.SetDefault(slog.New(slog.NewJSONHandler(setupLogSink(cmd.Context(), userInfo, cmd.ErrOrStderr()), &slog.HandlerOptions{
				Level: options.LogLevel.SlogLevel(),
			})))

			if cfg.Sentry.DSN != "" {
				if err := sentry.Init(sentry.ClientOptions{
					Dsn:     cfg.Sentry.DSN,
					Release: Version,
				}); err != nil {
					slog.Warn("failed to initialize sentry", "error", err)
				}
			}

			ctx := setGlobalOptions(cmd.Context(), &options)
			cmd.SetContext(setConfig(ctx, loader, cfg))
			return nil
		},
	}

	cmd.PersistentFlags().Var(&options.LogLevel, "log-level", "set the log level")
	cmd.PersistentFlags().StringVar(&options.ConfigFile, "config", "", "config file (default is $XDG_CONFIG_HOME/switchboard/config.yaml)")

	cmd.AddGroup(
		&cobra.Group{
			ID:    "core",
			Title: "Core Commands",
		},
	)

	cmd.AddGroup(
		&cobra.Group{
			ID:    "system",
			Title: "System Commands",
		},
	)

	cmd.AddCommand(NewChatCmd())
	cmd.AddCommand(NewHealthCmd())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewDevAgentCmd())
	cmd.AddCommand(NewTokenCmd())
	return cmd
}

func Execute() {
	defer func() {
		if r := recover(); r != nil {
			sentry.CurrentHub().Recover(r)
			sentry.Flush(2 * time.Second)
			fmt.Fprintf(os.Stderr, "Panic occurred: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack:\n%s\n", debug.Stack())
			os.Exit(1)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var userErr *fail.UserError
		if !errors.As(err, &userErr) {
			sentry.CaptureException(err)
		}
		fmt.Fprintln(os.Stderr, err)
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}

	sentry.Flush(2 * time.Second)
}

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

func (e *LogLevel) String() string {
	if e == nil {
		return ""
	}
	return string(*e)
}

func (e *LogLevel) Set(v string) error {
	for _, level := range []LogLevel{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError} {
		if v == string(level) {
			*e = level
			return nil
		}
	}
	return errors.New(`must be one of "debug", "info", "warn", or "error"`)
}

func (e *LogLevel) Type() string {
	return "log-level"
}

func (e *LogLevel) SlogLevel() slog.Level {
	switch *e {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	}

	return slog.LevelInfo
}

// resolveLogLevel prefers the flag over the configured level, which already
// reflects SWITCHBOARD_LOG_LEVEL.
func resolveLogLevel(cmd *cobra.Command, options *globalOptions, cfg *config.Config) LogLevel {
	if cmd.Flags().Changed("log-level") {
		return options.LogLevel
	}

	var level LogLevel
	if err := level.Set(cfg.Log.Level); err != nil {
		return LogLevelInfo
	}
	return level
}

func setupLogSink(ctx context.Context, userInfo shared.UserInfo, stderr io.Writer) io.Writer {
	if disable, ok := ctx.Value(ContextKeyDisableFileLogs).(bool); ok && disable {
		return stderr
	}

	logDir, err := userInfo.LogDir()
	if err != nil {
		return stderr
	}

	fileLogger := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "switchboard.json"),
		MaxSize:    50,
		MaxAge:     7,
		MaxBackups: 3,
		Compress:   true,
	}
	return io.MultiWriter(stderr, fileLogger)
}
