package download

import (
	"fmt"
	"strings"

	"github.com/desertthunder/mixdeck/internal/shared"
)

// ToolMissingError is returned when the extraction executable cannot be found.
type ToolMissingError struct {
	Tool string
	Err  error
}

func (e *ToolMissingError) Error() string {
	return fmt.Sprintf("%s not found: install it or set its path in the source settings", e.Tool)
}

func (e *ToolMissingError) Unwrap() []error {
	if e.Err == nil {
		return []error{shared.ErrToolMissing}
	}
	return []error{shared.ErrToolMissing, e.Err}
}

// ExtractionError is returned when the extraction tool fails or produces no output.
type ExtractionError struct {
	ExitCode int
	Stderr   string
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("extraction failed with exit code %d", e.ExitCode)
	if s := lastLine(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *ExtractionError) Unwrap() error { return shared.ErrDownloadFailed }

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
