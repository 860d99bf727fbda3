package fulfillment

import (
	"archive/zip"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// archiveFile is one downloaded book headed for the package.
type archiveFile struct {
	Title  string
	Author string
	Year   string
	Data   []byte
}

// Name returns "author - year - title.epub" with unsafe characters replaced.
func (f archiveFile) Name(ext string) string {
	if ext == "" {
		ext = "epub"
	}
	return fmt.Sprintf("%s - %s - %s.%s",
		sanitizeFilename(f.Author),
		sanitizeFilename(f.Year),
		sanitizeFilename(f.Title),
		ext,
	)
}

// writeArchive writes files into a deflate zip at path. A file that cannot be
// added is counted as failed; failing to create or finalize the archive is
// returned as an error.
func writeArchive(path, ext string, files []archiveFile) (written, failed int, err error) {
	if err := ensureDir(path); err != nil {
		return 0, 0, err
	}
	out, err := os.Create(path)
	if err != nil {
		return 0, 0, fmt.Errorf("create zip file: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	used := make(map[string]int, len(files))
	for _, file := range files {
		name := uniqueName(file.Name(ext), used)
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: time.Now(),
		})
		if err != nil {
			failed++
			slog.Error("create zip entry", slog.String("title", file.Title), slog.Any("error", err))
			continue
		}
		if _, err := w.Write(file.Data); err != nil {
			failed++
			slog.Error("write zip entry", slog.String("title", file.Title), slog.Any("error", err))
			continue
		}
		written++
		slog.Debug("added to archive", slog.String("name", name))
	}

	if err := zw.Close(); err != nil {
		return written, failed, fmt.Errorf("finalize zip file: %w", err)
	}
	if err := out.Close(); err != nil {
		return written, failed, fmt.Errorf("close zip file: %w", err)
	}
	return written, failed, nil
}

func uniqueName(name string, used map[string]int) string {
	used[name]++
	n := used[name]
	if n == 1 {
		return name
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), n, ext)
}

func sanitizeFilename(input string) string {
	mapped := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		if unicode.IsControl(r) {
			return '-'
		}
		return r
	}, input)
	return strings.TrimSpace(mapped)
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
