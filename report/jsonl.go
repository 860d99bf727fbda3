package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aluiziolira/go-ebook-batch/models"
)

// JSONWriter writes one JSON object per line.
type JSONWriter struct {
	*sink
	enc *json.Encoder
}

// NewJSONWriter creates filename.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	s, err := openSink(filename)
	if err != nil {
		return nil, err
	}
	return &JSONWriter{sink: s, enc: json.NewEncoder(s.buf)}, nil
}

// Write appends entries.
func (jw *JSONWriter) Write(entries []models.Entry) error {
	return jw.append(entries, func(entry models.Entry) error {
		return jw.enc.Encode(entry)
	}, jw.buf.Flush)
}

// Close flushes and closes the file.
func (jw *JSONWriter) Close() error {
	return jw.close(jw.buf.Flush)
}

// Validate re-reads the file and checks that every line decodes to an entry
// and that the line count matches.
func (jw *JSONWriter) Validate() error {
	f, err := os.Open(jw.path)
	if err != nil {
		return fmt.Errorf("validate json: %w", err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		lines++
		var entry models.Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return fmt.Errorf("%w: %s line %d: %v", ErrInvalidReport, jw.path, lines, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("validate json: %w", err)
	}
	return jw.check(lines)
}
