package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// ErrToolNotFound indicates an external binary is not on PATH.
var ErrToolNotFound = errors.New("external tool not found")

// CommandRunner executes an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args. On failure the returned error carries stderr.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("%s: %w\n%s", name, ErrToolNotFound, InstallInstructions(name))
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, goerr.Wrap(err, name+" failed",
			goerr.V("args", strings.Join(args, " ")),
			goerr.V("stderr", strings.TrimSpace(stderr.String())))
	}
	return stdout.Bytes(), nil
}

// CheckAvailable reports whether a tool is on PATH.
func CheckAvailable(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s: %w", name, ErrToolNotFound)
	}
	return nil
}

// InstallInstructions returns an install hint for a tool.
func InstallInstructions(name string) string {
	switch name {
	case "tesseract":
		return `tesseract is required for OCR of page images.
  macOS:  brew install tesseract
  Debian: apt install tesseract-ocr`
	default:
		return name + ` is part of poppler.
  macOS:  brew install poppler
  Debian: apt install poppler-utils`
	}
}
