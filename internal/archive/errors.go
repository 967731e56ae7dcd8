package archive

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedPlatform = errors.New("no extraction tool known for this platform")
	ErrDirectoryNotFound   = errors.New("directory not found")
	ErrSearchFailed        = errors.New("search failed")
	ErrIO                  = errors.New("io error")
	ErrTool                = errors.New("extraction tool failed")
)

// ToolError reports a non-zero exit of the extraction tool for one archive.
type ToolError struct {
	Archive string
	Stderr  string
	Err     error
}

func (e *ToolError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("extract %s: %s", e.Archive, msg)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Is makes every ToolError match ErrTool.
func (e *ToolError) Is(target error) bool { return target == ErrTool }

func newIOError(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrIO, op, path, err)
}
