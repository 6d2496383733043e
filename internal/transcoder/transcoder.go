package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"video-vault/internal/logging"
	"video-vault/internal/metrics"
)

// DefaultTimeout bounds a single transcode invocation when the caller
// does not configure one.
const DefaultTimeout = 10 * time.Minute

// stderrTailLen limits how much ffmpeg stderr is carried in errors.
const stderrTailLen = 2048

// Error is a failed transcoder invocation. ExitCode is -1 when the
// process did not run or was killed (including by timeout).
type Error struct {
	ExitCode int
	Stderr   string
	cause    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transcode failed (exit %d): %v", e.ExitCode, e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Invoker runs the external FFmpeg binary.
type Invoker struct {
	bin     string
	timeout time.Duration
}

// New creates an Invoker for the given ffmpeg binary path. A timeout of
// zero falls back to DefaultTimeout.
func New(bin string, timeout time.Duration) *Invoker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Invoker{bin: bin, timeout: timeout}
}

// Transcode converts src into dst (container chosen by dst's extension),
// blocking until the child process exits or the timeout fires. Success
// requires a zero exit status and a non-empty output file; anything else
// yields an *Error and removes whatever partial output was written.
func (t *Invoker) Transcode(ctx context.Context, src, dst string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	// Fixed argument shape: input path, overwrite flag, output path
	cmd := exec.CommandContext(ctx, t.bin, "-i", src, "-y", dst)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logging.Debug("Transcoding %s -> %s", src, dst)
	err := cmd.Run()
	metrics.TranscodeDuration.Observe(time.Since(start).Seconds())

	if err == nil {
		if verifyErr := verifyOutput(dst); verifyErr != nil {
			err = verifyErr
		}
	}

	if err != nil {
		metrics.TranscodesTotal.WithLabelValues("failure").Inc()
		removePartial(dst)

		if ctx.Err() != nil {
			err = fmt.Errorf("%w after %v", ctx.Err(), t.timeout)
		}
		return &Error{
			ExitCode: exitCode(err),
			Stderr:   tail(stderr.String()),
			cause:    err,
		}
	}

	metrics.TranscodesTotal.WithLabelValues("success").Inc()
	logging.Debug("Transcode complete: %s (%v)", dst, time.Since(start))
	return nil
}

// ExtractPoster grabs a single frame from src into dst for thumbnail
// generation. Callers treat failures as non-fatal.
func (t *Invoker) ExtractPoster(ctx context.Context, src, dst string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.bin,
		"-i", src,
		"-ss", "00:00:01",
		"-vframes", "1",
		"-y", dst,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		removePartial(dst)
		return &Error{
			ExitCode: exitCode(err),
			Stderr:   tail(stderr.String()),
			cause:    err,
		}
	}

	if err := verifyOutput(dst); err != nil {
		removePartial(dst)
		return &Error{ExitCode: 0, cause: err}
	}
	return nil
}

// verifyOutput checks that the child actually produced a usable file: a
// zero exit with a missing or empty output still counts as failure.
func verifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("output file missing: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("output file is empty")
	}
	return nil
}

func removePartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove partial transcode output %s: %v", path, err)
	}
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func tail(s string) string {
	if len(s) > stderrTailLen {
		return s[len(s)-stderrTailLen:]
	}
	return s
}
