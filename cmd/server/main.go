// Package main is the entry point for the runbox MCP server.
//
// The runbox server executes untrusted learner code (JAC and a Python-like
// dialect) in isolated OS-process sandboxes, translates programs between
// the two surface syntaxes, and keeps per-session execution accounting.
// The server supports both stdio and HTTP transports and enforces
// administrator-configured security policy (blocked constructs, code-size
// ceilings, per-caller rate limits) before any code runs.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/jaclearn/runbox/config"
	"github.com/jaclearn/runbox/lang"
	"github.com/jaclearn/runbox/logger"
	"github.com/jaclearn/runbox/mcpserver"
	"github.com/jaclearn/runbox/policy"
	"github.com/jaclearn/runbox/sandbox"
	"github.com/jaclearn/runbox/session"
)

func newPolicy(cfg *config.Config) (policy.Policy, error) {
	return policy.FromConfig(cfg.Policy)
}

func newRateCounter(cfg *config.Config) policy.RateCounter {
	if cfg.Policy.RateBackend == "redis" {
		return policy.NewRedisCounter(cfg.Policy.RedisAddr)
	}
	return policy.NewMemoryCounter()
}

func newExecutor(cfg *config.Config, log *zap.Logger, pol policy.Policy) sandbox.Executor {
	runtimes := map[lang.ID]string{
		lang.JAC: cfg.Languages.Jac.RunCmd,
		lang.PY:  cfg.Languages.Python.RunCmd,
	}
	isolation := sandbox.Isolation{
		Enabled:      pol.SandboxingEnabled,
		AllowNetwork: pol.NetworkAccessEnabled,
	}
	return sandbox.NewProcessExecutor(log, runtimes, isolation,
		sandbox.WithGracePeriod(cfg.Sandbox.GracePeriod()),
		sandbox.WithWorkdirPattern(cfg.Sandbox.WorkdirPattern),
	)
}

func main() {
	app := fx.New(
		fx.Provide(
			config.New,
			logger.NewFromConfig,
			newPolicy,
			newRateCounter,
			newExecutor,
			session.NewManager,
			mcpserver.New,
		),

		// Start the appropriate transport based on config
		fx.Invoke(
			func(cfg *config.Config, server *mcpserver.MCPServer) {
				switch cfg.Server.Transport {
				case "stdio":
					go func() {
						if err := server.ServeStdio(); err != nil {
							panic(err)
						}
					}()
				case "http":
					go func() {
						if err := server.ServeHTTP(); err != nil {
							panic(err)
						}
					}()
				default:
					panic("unsupported transport: " + cfg.Server.Transport)
				}
			},
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	app.Run()
}
