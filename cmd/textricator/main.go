package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/a3tai/textricator/internal/config"
	"github.com/a3tai/textricator/internal/form"
	"github.com/a3tai/textricator/internal/mcp"
	"github.com/a3tai/textricator/internal/output"
	"github.com/a3tai/textricator/internal/record"
	"github.com/a3tai/textricator/internal/service"
	"github.com/a3tai/textricator/internal/table"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

const programName = "textricator"

// Exit codes
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(args)
	switch {
	case errors.Is(err, config.ErrVersionRequested):
		printVersion(stdout)
		return exitOK
	case errors.Is(err, pflag.ErrHelp):
		return exitOK
	case err != nil:
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		config.Usage(stderr, programName)
		return exitUsage
	}

	if version != "dev" {
		cfg.Version = version
	}
	logger := setupLogging(cfg, stderr)
	logger.Debug("starting", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, cfg, logger, stdout); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	return exitOK
}

// setupLogging logs to stderr so that stdout carries only command output
// or, in stdio mode, the MCP protocol.
func setupLogging(cfg *config.Config, stderr io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel(), AddSource: cfg.IsDebug()}
	logger := slog.New(slog.NewTextHandler(stderr, opts))
	slog.SetDefault(logger)
	return logger
}

func execute(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	if cfg.Command == config.CommandServe {
		return serve(ctx, cfg, logger)
	}

	svc, err := service.NewService(service.WithLogger(logger))
	if err != nil {
		return err
	}
	switch cfg.Command {
	case config.CommandText:
		return extractText(ctx, cfg, svc, stdout)
	case config.CommandForm:
		formCfg, err := form.LoadFile(cfg.ParseConfig)
		if err != nil {
			return err
		}
		return writeRecords(cfg, formCfg, stdout, func(w output.Writer) (*service.ParseResult, error) {
			return svc.ParseForm(ctx, service.FormRequest{Input: cfg.Input, InputFormat: cfg.InputFormat, Config: formCfg}, w)
		})
	case config.CommandTable:
		tableCfg, err := table.LoadFile(cfg.ParseConfig)
		if err != nil {
			return err
		}
		return writeRecords(cfg, tableCfg, stdout, func(w output.Writer) (*service.ParseResult, error) {
			return svc.ParseTable(ctx, service.TableRequest{Input: cfg.Input, InputFormat: cfg.InputFormat, Config: tableCfg}, w)
		})
	case config.CommandForms:
		return parseForms(ctx, cfg, svc, stdout)
	}
	return fmt.Errorf("unknown command %q", cfg.Command)
}

func extractText(ctx context.Context, cfg *config.Config, svc *service.Service, stdout io.Writer) error {
	w, closeOut, err := openOutput(cfg.Output, stdout)
	if err != nil {
		return err
	}
	_, err = svc.ExtractText(ctx, service.TextRequest{
		Input:          cfg.Input,
		InputFormat:    cfg.InputFormat,
		Pages:          cfg.Pages,
		MaxRowDistance: cfg.MaxRowDistance,
		OutputFormat:   cfg.OutputFormat,
	}, w)
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	return err
}

func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == config.Stdout {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func writeRecords(cfg *config.Config, m record.Model, stdout io.Writer, parse func(output.Writer) (*service.ParseResult, error)) error {
	var (
		w   output.Writer
		err error
	)
	if cfg.Output == config.Stdout {
		w, err = output.New(cfg.OutputFormat, stdout, m)
	} else {
		w, err = output.Create(cfg.OutputFormat, cfg.Output, m)
	}
	if err != nil {
		return err
	}
	_, err = parse(w)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return err
}

func parseForms(ctx context.Context, cfg *config.Config, svc *service.Service, stdout io.Writer) error {
	formCfg, err := form.LoadFile(cfg.ParseConfig)
	if err != nil {
		return err
	}
	outDir := cfg.Output
	if outDir == config.Stdout {
		outDir = ""
	}
	result, err := svc.ParseForms(ctx, service.BatchRequest{
		InputDir:     cfg.Input,
		InputFormat:  cfg.InputFormat,
		Config:       formCfg,
		OutputDir:    outDir,
		OutputFormat: cfg.OutputFormat,
	})
	if err != nil {
		return err
	}
	for _, f := range result.Files {
		if f.Error != "" {
			fmt.Fprintf(stdout, "FAILED %s: %s\n", f.Input, f.Error)
			continue
		}
		fmt.Fprintf(stdout, "%s -> %s (%d records)\n", f.Input, f.Output, f.Records)
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", result.Failed, len(result.Files))
	}
	return nil
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	svc, err := service.NewService(
		service.WithDirectory(cfg.Directory),
		service.WithMaxFileSize(cfg.MaxFileSize),
		service.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	server, err := mcp.NewServer(cfg, svc, logger)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "Textricator\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
