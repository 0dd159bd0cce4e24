package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/sqlpulse/internal/app"
	"github.com/charlesng35/sqlpulse/internal/auth"
	"github.com/charlesng35/sqlpulse/internal/pipeline"
	"github.com/charlesng35/sqlpulse/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

const usage = `usage: sqlpulse [-config path] <command>

commands:
  serve                         run the scheduler and the HTTP API
  load                          seed one row into every target and exit
  report                        publish the latest row of every target and exit
  token <subject> [pipeline...] print a bearer token for the run trigger API
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("sqlpulse", flag.ContinueOnError)
	fs.SetOutput(stdout)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	command := fs.Arg(0)
	switch command {
	case "serve", pipeline.Load, pipeline.Report, "token":
	case "":
		fs.Usage()
		return errors.New("missing command")
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", command)
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if command == "token" {
		return printToken(cfg.Server.Auth, fs.Args()[1:], stdout)
	}

	if err := app.ConfigureLogging(cfg.Server); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	if command == "serve" {
		return serve(ctx, cfg, log)
	}
	return runOnce(ctx, cfg, log, command, stdout)
}

// runOnce executes a single pipeline invocation and fails unless every target succeeded.
func runOnce(ctx context.Context, cfg *app.Config, log *zap.Logger, name string, stdout io.Writer) error {
	stack, err := bootstrapRuntime(ctx, cfg, log, false)
	if err != nil {
		return err
	}
	defer stack.Shutdown(context.Background(), log)

	result, err := stack.Runner.Run(ctx, name)

	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	if encodeErr := encoder.Encode(result); encodeErr != nil {
		log.Warn("write result", zap.Error(encodeErr))
	}

	if err != nil {
		return fmt.Errorf("%s failed: %w", name, err)
	}
	if result.Status != pipeline.StatusSuccess {
		return fmt.Errorf("%s finished with status %s: %d of %d targets failed", name, result.Status, result.Failed, result.Targets)
	}
	return nil
}

func serve(ctx context.Context, cfg *app.Config, log *zap.Logger) error {
	stack, err := bootstrapRuntime(ctx, cfg, log, true)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           stack.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		stack.Shutdown(context.Background(), log)
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	stack.Shutdown(shutdownCtx, log)

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

// printToken signs a token for subject, optionally scoped to the named pipelines.
func printToken(cfg app.AuthConfig, args []string, stdout io.Writer) error {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return errors.New("token: subject is required")
	}
	for _, name := range args[1:] {
		if name != pipeline.Load && name != pipeline.Report {
			return fmt.Errorf("token: unknown pipeline %q", name)
		}
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: cfg.JWTSecret, Issuer: cfg.Issuer, TTL: cfg.TokenTTL})
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	token, err := tokens.Issue(args[0], args[1:]...)
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	_, err = fmt.Fprintln(stdout, token)
	return err
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}
