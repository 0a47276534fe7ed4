package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"realestate/internal/tools"
)

// exportFile is the document written for --out: the tool result stamped
// with its generation time.
type exportFile struct {
	GeneratedAt string       `json:"generated_at"`
	Result      tools.Result `json:"result"`
}

type exportMeta struct {
	GeneratedAt string   `json:"generated_at"`
	Tool        string   `json:"tool"`
	Files       []string `json:"files"`
	Failed      []string `json:"failed,omitempty"`
}

func (c *CLI) generatedAt() string {
	return c.opts.Now().UTC().Format(time.RFC3339)
}

// emit prints result to the command output, or writes it to path.
func (c *CLI) emit(w io.Writer, path string, result tools.Result) error {
	doc := exportFile{GeneratedAt: c.generatedAt(), Result: result}
	if path == "" {
		return encodeJSON(w, doc)
	}
	if err := writeJSON(path, doc); err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote %s\n", path)
	return nil
}

func writeJSON(path string, value any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return encodeJSON(file, value)
}

func encodeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(value)
}
