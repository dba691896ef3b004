package service

import (
	"github.com/a3tai/textricator/internal/form"
	"github.com/a3tai/textricator/internal/table"
)

// Text output formats.
const (
	TextCSV  = "csv"
	TextJSON = "json"
)

// TextRequest asks for the positioned text of a document.
type TextRequest struct {
	Input       string `json:"input"`
	InputFormat string `json:"input_format,omitempty"`
	Pages       string `json:"pages,omitempty"`
	// MaxRowDistance groups text into rows before writing; nil writes text
	// in extraction order.
	MaxRowDistance *float64 `json:"max_row_distance,omitempty"`
	OutputFormat   string   `json:"output_format,omitempty"`
}

// TextResult summarizes a text extraction.
type TextResult struct {
	Input string `json:"input"`
	Pages int    `json:"pages"`
	Texts int    `json:"texts"`
}

// FormRequest parses a document with a form config.
type FormRequest struct {
	Input       string       `json:"input"`
	InputFormat string       `json:"input_format,omitempty"`
	Config      *form.Config `json:"-"`
}

// TableRequest parses a document with a table config.
type TableRequest struct {
	Input       string        `json:"input"`
	InputFormat string        `json:"input_format,omitempty"`
	Config      *table.Config `json:"-"`
}

// ParseResult summarizes a form or table parse.
type ParseResult struct {
	Input   string `json:"input"`
	Output  string `json:"output,omitempty"`
	Records int    `json:"records"`
	Error   string `json:"error,omitempty"`
}

// BatchRequest parses every document of one format in a directory with the
// same form config, writing one output file per document.
type BatchRequest struct {
	InputDir     string
	InputFormat  string
	Config       *form.Config
	OutputDir    string
	OutputFormat string
}

// BatchResult lists the outcome for each document.
type BatchResult struct {
	Files  []ParseResult `json:"files"`
	Failed int           `json:"failed"`
}
