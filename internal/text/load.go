package text

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"unicode/utf8"
)

// ErrNotText reports input that does not look like plain text.
var ErrNotText = errors.New("not a text file")

// sniffLen matches the amount of data http.DetectContentType considers.
const sniffLen = 512

// LoadFile reads a plain text file from path.
func LoadFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only source.
			_ = cerr
		}
	}()
	content, err := Read(file)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return content, nil
}

// Read consumes r and returns its content if it is plain text.
func Read(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if err := CheckText(data); err != nil {
		return "", err
	}
	return string(data), nil
}

// CheckText returns ErrNotText when data is binary or not valid UTF-8.
func CheckText(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "text/") {
		return fmt.Errorf("%w: detected %s", ErrNotText, contentType)
	}
	if !utf8.Valid(data) {
		return fmt.Errorf("%w: invalid UTF-8", ErrNotText)
	}
	return nil
}
