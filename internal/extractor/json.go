package extractor

import (
	"encoding/json"
	"io"
	"iter"
	"os"

	"github.com/a3tai/textricator/internal/text"
)

// WriteJSON writes texts as a JSON array of text objects.
func WriteJSON(w io.Writer, texts iter.Seq[text.Text]) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return err
	}
	first := true
	for t := range texts {
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		sep := ",\n"
		if first {
			sep, first = "\n", false
		}
		if _, err := io.WriteString(w, sep); err != nil {
			return err
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n]\n")
	return err
}

// ReadJSON parses a JSON array of text objects.
func ReadJSON(r io.Reader) ([]text.Text, error) {
	var texts []text.Text
	if err := json.NewDecoder(r).Decode(&texts); err != nil {
		return nil, err
	}
	return texts, nil
}

// OpenJSON loads a JSON text file.
func OpenJSON(path string) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Format: FormatJSON, Op: "open", Err: err}
	}
	defer f.Close()

	texts, err := ReadJSON(f)
	if err != nil {
		return nil, &Error{Format: FormatJSON, Op: "read", Err: err}
	}
	return NewMemory(texts), nil
}
