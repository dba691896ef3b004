package mcp

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/textricator/internal/config"
	"github.com/a3tai/textricator/internal/extractor"
	"github.com/a3tai/textricator/internal/service"
	"github.com/a3tai/textricator/internal/text"
)

const peopleConfig = `
rootRecordType: person
recordTypes:
  person:
    label: Person
    valueTypes: [name]
valueTypes:
  name: {label: Name}
conditions:
  any: "true"
  isName: 'text == "Name"'
states:
  INITIAL:
    transitions: [{isName: nameLabel}]
  nameLabel:
    include: false
    transitions: [{any: name}]
  name:
    startRecord: true
    transitions: [{isName: nameLabel}]
`

func line(page int, y float64, x float64, content string) text.Text {
	return text.Text{Page: page, ULX: x, ULY: y, LRX: x + 30, LRY: y + 8, Content: content}
}

// newTestServer serves a directory holding people.csv, rows.csv and their
// configs.
func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()

	people := []text.Text{line(1, 0, 10, "Name"), line(1, 10, 10, "Fred"), line(1, 20, 10, "Name"), line(1, 30, 10, "Sally")}
	rows := []text.Text{line(1, 0, 5, "Jon"), line(1, 0, 55, "Boston"), line(1, 10, 5, "Jane"), line(1, 10, 55, "Denver")}
	for name, texts := range map[string][]text.Text{"people.csv": people, "rows.csv": rows} {
		f, err := os.Create(filepath.Join(dir, name))
		require.NoError(t, err)
		require.NoError(t, extractor.WriteCSV(f, slices.Values(texts)))
		require.NoError(t, f.Close())
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "people.yml"), []byte(peopleConfig), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rows.yml"), []byte("cols: {name: 0, city: 50}\nmaxRowDistance: 2\n"), 0o644))

	cfg := config.DefaultConfig()
	cfg.Command = config.CommandServe
	cfg.Directory = dir
	cfg.ServerName = "test-server"
	svc, err := service.NewService(service.WithDirectory(dir), service.WithMaxFileSize(cfg.MaxFileSize))
	require.NoError(t, err)
	s, err := NewServer(cfg, svc, nil)
	require.NoError(t, err)
	return s, dir
}

func call(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

// Helper function to extract text from a CallToolResult
func extractTextFromResult(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			return textContent.Text
		}
		if textContentPtr, ok := content.(*mcp.TextContent); ok {
			return textContentPtr.Text
		}
	}
	return ""
}

func TestNewServer(t *testing.T) {
	svc, err := service.NewService()
	require.NoError(t, err)
	cfg := config.DefaultConfig()

	s, err := NewServer(cfg, svc, nil)
	require.NoError(t, err)
	assert.Same(t, cfg, s.config)
	assert.Same(t, svc, s.service)
	assert.NotNil(t, s.mcpServer)
	assert.NotNil(t, s.logger)

	_, err = NewServer(nil, svc, nil)
	assert.Error(t, err)
	_, err = NewServer(cfg, nil, nil)
	assert.Error(t, err)
}

func TestHandleTextExtract(t *testing.T) {
	s, dir := newTestServer(t)

	result, err := s.handleTextExtract(context.Background(), call(map[string]any{
		"path":   "people.csv",
		"format": "json",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))

	got := extractTextFromResult(result)
	assert.Contains(t, got, "Extracted text from: "+filepath.Join(dir, "people.csv"))
	assert.Contains(t, got, "Text fragments: 4")
	assert.Contains(t, got, `"content":"Sally"`)

	result, err = s.handleTextExtract(context.Background(), call(map[string]any{
		"path":             "rows.csv",
		"max_row_distance": float64(2),
	}))
	require.NoError(t, err)
	got = extractTextFromResult(result)
	assert.Contains(t, got, "page,ulx,uly")
	assert.Less(t, strings.Index(got, "Jon"), strings.Index(got, "Boston"))
}

func TestHandleFormParse(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleFormParse(context.Background(), call(map[string]any{
		"path":   "people.csv",
		"config": "people.yml",
		"format": "csv",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))

	got := extractTextFromResult(result)
	assert.Contains(t, got, "Records: 2")
	assert.Contains(t, got, "page,Name\n1,Fred\n1,Sally\n")
}

func TestHandleTableParse(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleTableParse(context.Background(), call(map[string]any{
		"path":   "rows.csv",
		"config": "rows.yml",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))

	got := extractTextFromResult(result)
	assert.Contains(t, got, "Records: 2")
	assert.Contains(t, got, "Format: json")
	assert.Contains(t, got, `"city"`)
	assert.Contains(t, got, `"Denver"`)
}

func TestHandlerErrors(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args    map[string]any
		wantErr string
	}{
		{"text without path", s.handleTextExtract, map[string]any{}, "path"},
		{"text outside directory", s.handleTextExtract, map[string]any{"path": "../x.csv"}, "outside"},
		{"text bad format", s.handleTextExtract, map[string]any{"path": "people.csv", "format": "xml"}, "unsupported"},
		{"form without config", s.handleFormParse, map[string]any{"path": "people.csv"}, "config"},
		{"form config outside directory", s.handleFormParse, map[string]any{"path": "people.csv", "config": "/etc/passwd"}, "outside"},
		{"form missing config", s.handleFormParse, map[string]any{"path": "people.csv", "config": "nope.yml"}, "nope.yml"},
		{"form binary format", s.handleFormParse, map[string]any{"path": "people.csv", "config": "people.yml", "format": "xlsx"}, "unsupported format"},
		{"table with form config", s.handleTableParse, map[string]any{"path": "rows.csv", "config": "people.yml"}, "does not match schema"},
		{"form dead end", s.handleFormParse, map[string]any{"path": "rows.csv", "config": "people.yml"}, "no valid transition"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.handler(ctx, call(tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, extractTextFromResult(result), tt.wantErr)
		})
	}
}

func TestHandleServerInfo(t *testing.T) {
	s, dir := newTestServer(t)

	result, err := s.handleServerInfo(context.Background(), call(nil))
	require.NoError(t, err)
	got := extractTextFromResult(result)
	for _, want := range []string{"test-server", "Directory: " + dir, "Max File Size: 100 MB", ToolTextExtract, ToolFormParse, ToolTableParse, "pdf.ledongthuc", "json-flat"} {
		assert.Contains(t, got, want)
	}
}

func TestRunStdio(t *testing.T) {
	s, _ := newTestServer(t)
	in, feed := io.Pipe()
	defer feed.Close()
	var out syncBuffer
	s.stdin, s.stdout = in, &out
	go feed.Write([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return strings.Contains(out.String(), `"id":1`) }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-errCh:
	case <-time.After(time.Second):
		t.Error("Run() did not return after context cancellation")
	}
}

func TestRunServerModeStopsOnCancel(t *testing.T) {
	s, _ := newTestServer(t)
	s.config.Mode = config.ModeServer
	s.config.Host = "127.0.0.1"
	s.config.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			assert.ErrorIs(t, err, context.Canceled)
		}
	case <-time.After(2 * time.Second):
		t.Error("Run() did not return after context cancellation")
	}
}
