package mcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/textricator/internal/config"
	"github.com/a3tai/textricator/internal/extractor"
	"github.com/a3tai/textricator/internal/form"
	"github.com/a3tai/textricator/internal/output"
	"github.com/a3tai/textricator/internal/record"
	"github.com/a3tai/textricator/internal/service"
	"github.com/a3tai/textricator/internal/table"
)

// Tool names
const (
	ToolTextExtract = "text_extract"
	ToolFormParse   = "form_parse"
	ToolTableParse  = "table_parse"
	ToolServerInfo  = "server_info"
)

// textFormats are the record formats a tool can return as text.
var textFormats = []string{output.FormatCSV, output.FormatJSON, output.FormatJSONFlat, output.FormatXML}

const shutdownTimeout = 5 * time.Second

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *service.Service
	mcpServer *server.MCPServer
	logger    *slog.Logger

	stdin  io.Reader
	stdout io.Writer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, svc *service.Service, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if svc == nil {
		return nil, errors.New("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		config:    cfg,
		service:   svc,
		mcpServer: mcpServer,
		logger:    logger,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
	}
	s.registerTools()
	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		ToolTextExtract,
		mcp.WithDescription("Extract positioned text (page, coordinates, font, content) from a document"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the document, absolute or relative to the server directory"),
		),
		mcp.WithString("input_format",
			mcp.Description("Input format (pdf, pdf.ledongthuc, csv, json); default from the extension"),
		),
		mcp.WithString("pages",
			mcp.Description("Pages to extract, e.g. 1,3-5,10-"),
		),
		mcp.WithNumber("max_row_distance",
			mcp.Description("Group text into rows; text within this vertical distance forms one row"),
		),
		mcp.WithString("format",
			mcp.Description("Output format"),
			mcp.Enum(config.TextFormats...),
		),
	), s.handleTextExtract)

	s.mcpServer.AddTool(mcp.NewTool(
		ToolFormParse,
		mcp.WithDescription("Parse a form document into records with a form config"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the document"),
		),
		mcp.WithString("config",
			mcp.Required(),
			mcp.Description("Path to the form config (YAML)"),
		),
		mcp.WithString("input_format",
			mcp.Description("Input format; default from the extension or the config"),
		),
		mcp.WithString("format",
			mcp.Description("Output format"),
			mcp.Enum(textFormats...),
		),
	), s.handleFormParse)

	s.mcpServer.AddTool(mcp.NewTool(
		ToolTableParse,
		mcp.WithDescription("Parse a table document into one record per row with a table config"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the document"),
		),
		mcp.WithString("config",
			mcp.Required(),
			mcp.Description("Path to the table config (YAML)"),
		),
		mcp.WithString("input_format",
			mcp.Description("Input format; default from the extension or the config"),
		),
		mcp.WithString("format",
			mcp.Description("Output format"),
			mcp.Enum(textFormats...),
		),
	), s.handleTableParse)

	s.mcpServer.AddTool(mcp.NewTool(
		ToolServerInfo,
		mcp.WithDescription("Get server information, supported formats and usage guidance"),
	), s.handleServerInfo)
}

func stringArg(request mcp.CallToolRequest, name string) string {
	v, _ := request.GetArguments()[name].(string)
	return v
}

func (s *Server) handleTextExtract(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req := service.TextRequest{
		Input:        path,
		InputFormat:  stringArg(request, "input_format"),
		Pages:        stringArg(request, "pages"),
		OutputFormat: stringArg(request, "format"),
	}
	if d, ok := request.GetArguments()["max_row_distance"].(float64); ok {
		req.MaxRowDistance = &d
	}

	var buf bytes.Buffer
	result, err := s.service.ExtractText(ctx, req, &buf)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := fmt.Sprintf("Extracted text from: %s\n", result.Input)
	responseText += fmt.Sprintf("Pages with text: %d\n", result.Pages)
	responseText += fmt.Sprintf("Text fragments: %d\n", result.Texts)
	responseText += "\nContent:\n" + buf.String()
	return mcp.NewToolResultText(responseText), nil
}

// recordFormat checks a record output format requested from a tool.
func recordFormat(request mcp.CallToolRequest) (string, error) {
	format := strings.ToLower(stringArg(request, "format"))
	if format == "" {
		return output.FormatJSON, nil
	}
	for _, f := range textFormats {
		if f == format {
			return format, nil
		}
	}
	return "", fmt.Errorf("unsupported format %q, expected one of %s", format, strings.Join(textFormats, ", "))
}

// parseArgs reads the arguments shared by the parse tools and resolves the
// config path inside the server directory.
func (s *Server) parseArgs(request mcp.CallToolRequest) (path, configPath, format string, err error) {
	if path, err = request.RequireString("path"); err != nil {
		return "", "", "", err
	}
	if configPath, err = request.RequireString("config"); err != nil {
		return "", "", "", err
	}
	if configPath, err = s.service.Resolve(configPath); err != nil {
		return "", "", "", fmt.Errorf("security validation failed: %w", err)
	}
	if format, err = recordFormat(request); err != nil {
		return "", "", "", err
	}
	return path, configPath, format, nil
}

func (s *Server) handleFormParse(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, configPath, format, err := s.parseArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cfg, err := form.LoadFile(configPath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.runParse(format, cfg, func(w output.Writer) (*service.ParseResult, error) {
		return s.service.ParseForm(ctx, service.FormRequest{Input: path, InputFormat: stringArg(request, "input_format"), Config: cfg}, w)
	})
}

func (s *Server) handleTableParse(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, configPath, format, err := s.parseArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cfg, err := table.LoadFile(configPath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.runParse(format, cfg, func(w output.Writer) (*service.ParseResult, error) {
		return s.service.ParseTable(ctx, service.TableRequest{Input: path, InputFormat: stringArg(request, "input_format"), Config: cfg}, w)
	})
}

func (s *Server) runParse(format string, m record.Model, parse func(output.Writer) (*service.ParseResult, error)) (*mcp.CallToolResult, error) {
	var buf bytes.Buffer
	w, err := output.New(format, &buf, m)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := parse(w)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := fmt.Sprintf("Parsed: %s\n", result.Input)
	responseText += fmt.Sprintf("Records: %d\n", result.Records)
	responseText += fmt.Sprintf("Format: %s\n", format)
	responseText += "\nContent:\n" + buf.String()
	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleServerInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.formatServerInfo()), nil
}

func (s *Server) formatServerInfo() string {
	text := fmt.Sprintf("%s v%s - Server Information\n", s.config.ServerName, s.config.Version)
	text += fmt.Sprintf("Directory: %s\n", s.service.Directory())
	text += fmt.Sprintf("Max File Size: %d MB\n\n", s.service.MaxFileSize()/(1024*1024))

	text += "Available Tools:\n"
	text += fmt.Sprintf("\n• %s\n  Extract positioned text. Parameters: path (required), input_format, pages, max_row_distance, format (%s)\n",
		ToolTextExtract, strings.Join(config.TextFormats, ", "))
	text += fmt.Sprintf("\n• %s\n  Parse a form document into records. Parameters: path, config (required), input_format, format\n", ToolFormParse)
	text += fmt.Sprintf("\n• %s\n  Parse a table document into rows. Parameters: path, config (required), input_format, format\n", ToolTableParse)
	text += fmt.Sprintf("\n• %s\n  This summary.\n", ToolServerInfo)

	text += fmt.Sprintf("\nInput Formats: %s\n", strings.Join(extractor.Formats, ", "))
	text += fmt.Sprintf("Record Formats: %s\n", strings.Join(textFormats, ", "))

	text += "\nUsage: run text_extract with max_row_distance to see how a document's text is grouped, " +
		"then write a form or table config against the coordinates and content it reports.\n"
	return text
}

// Run starts the MCP server in the configured mode and stops when ctx is
// done.
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode serves MCP over stdin and stdout
func (s *Server) runStdioMode(ctx context.Context) error {
	s.logger.Debug("starting MCP server in stdio mode", "directory", s.service.Directory())

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	if err := stdio.Listen(ctx, s.stdin, s.stdout); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves MCP over HTTP with server-sent events
func (s *Server) runServerMode(ctx context.Context) error {
	addr := s.config.Address()
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))
	s.logger.Info("starting MCP server", "address", addr, "directory", s.service.Directory())

	errCh := make(chan error, 1)
	go func() { errCh <- sse.Start(addr) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sse.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return ctx.Err()
}
