package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/teilomillet/prompt2json/config"
	"github.com/teilomillet/prompt2json/enhancer"
	"github.com/teilomillet/prompt2json/errors"
	"github.com/teilomillet/prompt2json/server"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp() *cli.App {
	app := &cli.App{
		Name:    "prompt2json",
		Usage:   "Turn free-text prompts into structured JSON records",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(),
			transformCmd(),
			checkConfigCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to the YAML configuration file (defaults apply when empty)",
	EnvVars: []string{"PROMPT2JSON_CONFIG"},
}

// serveCmd creates the serve command.
func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			configFlag,
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Override server.port"},
			&cli.BoolFlag{Name: "watch", Usage: "Reload the configuration file when it changes"},
		},
		Action: func(c *cli.Context) error {
			path := c.String("config")
			cfg, err := loadConfig(path)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if c.IsSet("port") {
				cfg.Server.Port = c.Int("port")
			}

			level := zap.NewAtomicLevel()
			logger, err := newLogger(cfg.Logging, level)
			if err != nil {
				return cli.Exit(fmt.Sprintf("create logger: %v", err), 1)
			}
			defer func() { _ = logger.Sync() }()
			errors.SetLogger(logger)

			srv, err := server.NewServer(cfg, logger, server.WithLogLevel(level))
			if err != nil {
				logger.Error("server initialization failed", zap.Error(err), zap.String("config_path", path))
				return cli.Exit(err.Error(), 1)
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if c.Bool("watch") && path != "" {
				watcher, err := config.NewConfigWatcher(path, logger)
				if err != nil {
					return cli.Exit(fmt.Sprintf("watch config: %v", err), 1)
				}
				defer watcher.Close()
				go srv.WatchConfig(ctx, watcher)
			}

			logger.Info("starting prompt2json",
				zap.String("version", Version),
				zap.Int("port", cfg.Server.Port),
			)
			if err := srv.Start(ctx); err != nil {
				logger.Error("server stopped", zap.Error(err))
				return cli.Exit(err.Error(), 1)
			}
			logger.Info("server stopped")
			return nil
		},
	}
}

// transformCmd creates the transform command.
func transformCmd() *cli.Command {
	return &cli.Command{
		Name:      "transform",
		Usage:     "Transform a prompt offline (reads stdin when no argument is given)",
		ArgsUsage: "[prompt]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "short", Aliases: []string{"s"}, Usage: "Keep only the first sentence of expected_solution"},
			&cli.StringFlag{Name: "keys", Aliases: []string{"k"}, Usage: "Comma-separated fields to print"},
		},
		Action: func(c *cli.Context) error {
			prompt := strings.Join(c.Args().Slice(), " ")
			if c.NArg() == 0 {
				data, err := io.ReadAll(c.App.Reader)
				if err != nil {
					return cli.Exit(fmt.Sprintf("read stdin: %v", err), 1)
				}
				prompt = string(data)
			}

			if err := enhancer.Validate(prompt); err != nil {
				return cli.Exit(err.Error(), 1)
			}

			result := enhancer.Transform(prompt)
			if c.Bool("short") {
				result = result.Shorten()
			}
			if keys := parseKeys(c.String("keys")); keys != nil {
				return outputJSON(c.App.Writer, selectFields(result, keys))
			}
			return outputJSON(c.App.Writer, result)
		},
	}
}

// checkConfigCmd creates the check-config command.
func checkConfigCmd() *cli.Command {
	return &cli.Command{
		Name:      "check-config",
		Usage:     "Validate a configuration file and exit",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected exactly one configuration file", 1)
			}
			if _, err := config.LoadFile(c.Args().First()); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			fmt.Fprintln(c.App.Writer, "Configuration is valid")
			return nil
		},
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadFile(path)
}

// newLogger builds a zap logger whose level is controlled by level, so a
// reloaded configuration can change it.
func newLogger(cfg config.LoggingConfig, level zap.AtomicLevel) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	level.SetLevel(lvl)

	zcfg := zap.NewProductionConfig()
	if cfg.Format == "text" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	return zcfg.Build()
}

// selectFields keeps the requested record fields. Unknown names are ignored
// and cached is always false since the CLI never caches.
func selectFields(r enhancer.Result, keys []string) map[string]interface{} {
	fields := r.Fields()
	out := make(map[string]interface{}, len(keys)+1)
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			out[k] = v
		}
	}
	out["cached"] = false
	return out
}

// parseKeys splits a comma-separated string into field names.
func parseKeys(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if k := strings.TrimSpace(p); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
