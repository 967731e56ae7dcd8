package archive

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"time"

	fileutil "zipdive/internal/file"
)

// Extractor unpacks a single archive into outputDir. An empty password means
// none was supplied for the run.
type Extractor interface {
	Extract(ctx context.Context, archivePath, outputDir, password string) error
}

// toolWaitDelay bounds how long a killed tool may hold its stderr pipe open.
const toolWaitDelay = 2 * time.Second

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, archivePath, outputDir, password string) error

func (f ExtractorFunc) Extract(ctx context.Context, archivePath, outputDir, password string) error {
	return f(ctx, archivePath, outputDir, password)
}

// DefaultToolPath returns the 7-Zip binary name for the current platform.
func DefaultToolPath() (string, error) {
	switch runtime.GOOS {
	case "linux", "darwin", "freebsd", "netbsd", "openbsd":
		return "7z", nil
	case "windows":
		return "7z.exe", nil
	default:
		return "", ErrUnsupportedPlatform
	}
}

// SevenZip runs a 7-Zip compatible binary as a subprocess per archive.
// Success is exit status zero; anything else is a *ToolError carrying stderr.
//
// A password-protected archive extracted without its password may make the
// tool wait forever. Set Timeout to bound each invocation.
type SevenZip struct {
	Binary  string
	Timeout time.Duration
}

// NewSevenZip resolves binary, falling back to DefaultToolPath when empty.
func NewSevenZip(binary string, timeout time.Duration) (*SevenZip, error) {
	if binary == "" {
		defaultBinary, err := DefaultToolPath()
		if err != nil {
			return nil, err
		}
		binary = defaultBinary
	}
	return &SevenZip{Binary: binary, Timeout: timeout}, nil
}

// Args builds the command line: x <archive> -o<dir> -y [-p<password>].
func (z *SevenZip) Args(archivePath, outputDir, password string) []string {
	args := []string{"x", archivePath, "-o" + outputDir, "-y"}
	if password != "" {
		args = append(args, "-p"+password)
	}
	return args
}

func (z *SevenZip) Extract(ctx context.Context, archivePath, outputDir, password string) error {
	if z.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, z.Timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	command := exec.CommandContext(ctx, z.Binary, z.Args(archivePath, outputDir, password)...) //nolint:gosec // binary comes from deployment config
	command.Stderr = &stderr
	command.WaitDelay = toolWaitDelay

	if err := command.Run(); err != nil {
		return &ToolError{Archive: archivePath, Stderr: stderr.String(), Err: err}
	}
	return nil
}

// Worker extracts one archive into its destination directory, creating the
// directory first.
type Worker struct {
	extractor Extractor
}

func NewWorker(extractor Extractor) *Worker {
	return &Worker{extractor: extractor}
}

// Extract returns an ErrIO error when outputDir cannot be created, otherwise
// whatever the extractor reports.
func (w *Worker) Extract(ctx context.Context, archivePath, outputDir, password string) error {
	if err := fileutil.EnsureDir(outputDir); err != nil {
		return newIOError("create", outputDir, err)
	}
	return w.extractor.Extract(ctx, archivePath, outputDir, password)
}
