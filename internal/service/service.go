// Package service runs the extraction pipelines over files: positioned text
// extraction, form parsing and table parsing. The CLI and the MCP server
// both go through it.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/a3tai/textricator/internal/extractor"
	"github.com/a3tai/textricator/internal/form"
	"github.com/a3tai/textricator/internal/output"
	"github.com/a3tai/textricator/internal/record"
	"github.com/a3tai/textricator/internal/table"
	"github.com/a3tai/textricator/internal/text"
)

// DefaultDirPerm is used for batch output directories.
const DefaultDirPerm = 0o750

// Service opens documents and runs them through the parsers.
type Service struct {
	dir         string
	guard       *pathGuard
	maxFileSize int64
	logger      *slog.Logger
	listener    form.Listener
}

// Option configures a Service.
type Option func(*Service)

// WithDirectory confines every input and output path to dir. Relative paths
// are resolved against it.
func WithDirectory(dir string) Option {
	return func(s *Service) { s.dir = dir }
}

// WithMaxFileSize rejects inputs larger than n bytes. Zero means no limit.
func WithMaxFileSize(n int64) Option {
	return func(s *Service) { s.maxFileSize = n }
}

// WithLogger sets the logger passed to the parsers.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithListener receives form parser events instead of the default log
// listener.
func WithListener(l form.Listener) Option {
	return func(s *Service) { s.listener = l }
}

// NewService creates a service.
func NewService(opts ...Option) (*Service, error) {
	s := &Service{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.maxFileSize < 0 {
		return nil, errors.New("maximum file size cannot be negative")
	}
	guard, err := newPathGuard(s.dir)
	if err != nil {
		return nil, err
	}
	s.guard = guard
	return s, nil
}

// Directory returns the directory paths are confined to, or "".
func (s *Service) Directory() string { return s.guard.dir }

// MaxFileSize returns the input size limit in bytes.
func (s *Service) MaxFileSize() int64 { return s.maxFileSize }

// Resolve returns the absolute form of path, checked against the configured
// directory.
func (s *Service) Resolve(path string) (string, error) {
	return s.guard.resolve(path)
}

// open resolves and checks path, then opens it with the extractor for
// format.
func (s *Service) open(path, format string) (string, extractor.Extractor, error) {
	abs, err := s.guard.resolve(path)
	if err != nil {
		return "", nil, fmt.Errorf("security validation failed: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", nil, fmt.Errorf("cannot access %s: %w", path, err)
	}
	if info.IsDir() {
		return "", nil, fmt.Errorf("%s is a directory", path)
	}
	if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
		return "", nil, fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), s.maxFileSize)
	}
	ex, err := extractor.Open(abs, format)
	if err != nil {
		return "", nil, err
	}
	s.logger.Debug("opened document", "path", abs, "format", format, "pages", ex.PageCount())
	return abs, ex, nil
}

// inputFormat picks the extractor: an explicit request wins, then the file
// extension. A configured extractor only chooses between PDF backends.
func inputFormat(path, requested, configured string) string {
	if requested != "" {
		return requested
	}
	format := extractor.FormatOf(path)
	if format == extractor.FormatPDF && configured != "" {
		return configured
	}
	return format
}

func pageFilter(spec string) (text.PageFilter, error) {
	if spec == "" {
		return text.AllPages, nil
	}
	return text.ParsePages(spec)
}

func (s *Service) formOptions() []form.Option {
	opts := []form.Option{form.WithLogger(s.logger)}
	if s.listener != nil {
		opts = append(opts, form.WithListener(s.listener))
	}
	return opts
}

// ExtractText writes the positioned text of a document to w as CSV or JSON.
// Pages counts the pages that had text.
func (s *Service) ExtractText(ctx context.Context, req TextRequest, w io.Writer) (*TextResult, error) {
	pages, err := pageFilter(req.Pages)
	if err != nil {
		return nil, err
	}
	format := strings.ToLower(req.OutputFormat)
	if format == "" {
		format = TextCSV
	}
	if format != TextCSV && format != TextJSON {
		return nil, fmt.Errorf("unsupported text output format %q, expected %s or %s", req.OutputFormat, TextCSV, TextJSON)
	}

	abs, ex, err := s.open(req.Input, inputFormat(req.Input, req.InputFormat, ""))
	if err != nil {
		return nil, err
	}
	defer ex.Close()

	src := extractor.NewSource(ex, pages).WithContext(ctx)
	result := &TextResult{Input: abs}
	texts := text.GroupRows(countTexts(src.Texts(), result), req.MaxRowDistance)
	if format == TextJSON {
		err = extractor.WriteJSON(w, texts)
	} else {
		err = extractor.WriteCSV(w, texts)
	}
	if err == nil {
		err = src.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", abs, err)
	}
	return result, nil
}

func countTexts(seq iter.Seq[text.Text], r *TextResult) iter.Seq[text.Text] {
	return func(yield func(text.Text) bool) {
		last := 0
		for t := range seq {
			r.Texts++
			if t.Page != last {
				r.Pages++
				last = t.Page
			}
			if !yield(t) {
				return
			}
		}
	}
}

// ParseForm runs a document through the form parser and record builder and
// writes the filtered records to out.
func (s *Service) ParseForm(ctx context.Context, req FormRequest, out output.Writer) (*ParseResult, error) {
	cfg := req.Config
	if cfg == nil {
		return nil, errors.New("form config is required")
	}
	pages, err := pageFilter(cfg.Pages)
	if err != nil {
		return nil, fmt.Errorf("form config: %w", err)
	}
	fsm, err := form.NewFSMParser(cfg, s.formOptions()...)
	if err != nil {
		return nil, err
	}
	builder, err := form.NewRecordBuilder(cfg, s.formOptions()...)
	if err != nil {
		return nil, err
	}
	filter, err := record.NewFilter(cfg)
	if err != nil {
		return nil, err
	}

	abs, ex, err := s.open(req.Input, inputFormat(req.Input, req.InputFormat, cfg.Extractor))
	if err != nil {
		return nil, err
	}
	defer ex.Close()

	src := extractor.NewSource(ex, pages).WithContext(ctx)
	records := filter.Filter(builder.Build(fsm.Parse(text.GroupRows(src.Texts(), cfg.MaxRowDistance))))
	return s.write(abs, withSource(records, src), out)
}

// ParseTable runs a document through the table parser and writes the
// filtered rows to out.
func (s *Service) ParseTable(ctx context.Context, req TableRequest, out output.Writer) (*ParseResult, error) {
	cfg := req.Config
	if cfg == nil {
		return nil, errors.New("table config is required")
	}
	parser, err := table.NewParser(cfg, table.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	pages, err := pageFilter(cfg.Pages)
	if err != nil {
		return nil, fmt.Errorf("table config: %w", err)
	}
	filter, err := record.NewFilter(cfg)
	if err != nil {
		return nil, err
	}

	abs, ex, err := s.open(req.Input, inputFormat(req.Input, req.InputFormat, cfg.Extractor))
	if err != nil {
		return nil, err
	}
	defer ex.Close()

	src := extractor.NewSource(ex, pages).WithContext(ctx)
	records := filter.Filter(parser.Parse(text.GroupRowsPaged(src.Pages(), cfg.MaxRowDistance)))
	return s.write(abs, withSource(records, src), out)
}

func (s *Service) write(input string, records iter.Seq2[*record.Record, error], out output.Writer) (*ParseResult, error) {
	result := &ParseResult{Input: input}
	if err := out.Write(output.Count(records, &result.Records)); err != nil {
		return result, fmt.Errorf("parse %s: %w", input, err)
	}
	s.logger.Info("parsed document", "path", input, "records", result.Records)
	return result, nil
}

// withSource appends the source's extraction error, if any, once records
// run out.
func withSource(records iter.Seq2[*record.Record, error], src *extractor.Source) iter.Seq2[*record.Record, error] {
	return func(yield func(*record.Record, error) bool) {
		for rec, err := range records {
			if !yield(rec, err) || err != nil {
				return
			}
		}
		if err := src.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// ParseForms parses every document in a directory. A failing document is
// logged and counted; the rest are still parsed.
func (s *Service) ParseForms(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if req.Config == nil {
		return nil, errors.New("form config is required")
	}
	dir, err := s.guard.resolve(req.InputDir)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	outDir := dir
	if req.OutputDir != "" {
		if outDir, err = s.guard.resolve(req.OutputDir); err != nil {
			return nil, fmt.Errorf("security validation failed: %w", err)
		}
	}
	ext := output.Extension(req.OutputFormat)
	if ext != "" {
		if err := os.MkdirAll(outDir, DefaultDirPerm); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	format := req.InputFormat
	if format == "" {
		format = extractor.FormatPDF
	}
	want, _, _ := strings.Cut(strings.ToLower(format), ".")

	result := &BatchResult{}
	for _, entry := range entries {
		if entry.IsDir() || extractor.FormatOf(entry.Name()) != want {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		in := filepath.Join(dir, entry.Name())
		var outPath string
		if ext != "" {
			outPath = filepath.Join(outDir, strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))+"."+ext)
		}
		res := s.parseOne(ctx, in, format, outPath, req)
		if res.Error != "" {
			result.Failed++
			s.logger.Error("parse failed", "path", in, "error", res.Error)
		}
		result.Files = append(result.Files, res)
	}
	return result, nil
}

func (s *Service) parseOne(ctx context.Context, in, format, outPath string, req BatchRequest) ParseResult {
	fail := func(err error) ParseResult {
		return ParseResult{Input: in, Output: outPath, Error: err.Error()}
	}
	if outPath == in {
		return fail(errors.New("output would overwrite the input"))
	}

	var out output.Writer = output.Null{}
	if outPath != "" {
		w, err := output.Create(req.OutputFormat, outPath, req.Config)
		if err != nil {
			return fail(err)
		}
		out = w
	}
	res, err := s.ParseForm(ctx, FormRequest{Input: in, InputFormat: format, Config: req.Config}, out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fail(err)
	}
	res.Output = outPath
	return *res
}
