// Copyright 2025 Joseph Cumines
//
// Package powershell runs PowerShell scripts on the host and collects their output.
//
// Scripts are passed with -EncodedCommand (UTF-16LE, base64), which avoids every
// quoting problem of -Command. Output is forced to UTF-8 so it decodes cleanly.

package powershell

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// DefaultTimeout bounds a single script run when the caller's context has no deadline.
const DefaultTimeout = 60 * time.Second

// utf8Prelude is prepended to every script so the console writes UTF-8.
const utf8Prelude = "[Console]::OutputEncoding = [System.Text.Encoding]::UTF8\n$ProgressPreference = 'SilentlyContinue'\n"

// ErrTimeout is returned when a script exceeds its deadline and was killed.
var ErrTimeout = errors.New("powershell: script timed out")

// Result is the outcome of a script run.
type Result struct {
	Output   string
	ExitCode int
}

// Runner executes PowerShell scripts.
type Runner interface {
	Run(ctx context.Context, script string) (*Result, error)
}

// Exec is a Runner backed by a local powershell executable.
type Exec struct {
	// Path is the executable name or path. Default: "powershell".
	Path string
	// Timeout applies when ctx has no deadline. Default: DefaultTimeout.
	Timeout time.Duration
}

// New returns an Exec using powershell from PATH.
func New() *Exec {
	return &Exec{Path: "powershell", Timeout: DefaultTimeout}
}

// Run executes script and returns its combined output and exit code.
// A non-zero exit code is not an error; failing to start the process or
// exceeding the deadline is.
func (e *Exec) Run(ctx context.Context, script string) (*Result, error) {
	path := e.Path
	if path == "" {
		path = "powershell"
	}
	if _, ok := ctx.Deadline(); !ok {
		timeout := e.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	encoded, err := EncodeCommand(utf8Prelude + script)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, path,
		"-NoProfile",
		"-NonInteractive",
		"-ExecutionPolicy", "Bypass",
		"-EncodedCommand", encoded,
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err = cmd.Run()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
	result := &Result{Output: strings.TrimRight(out.String(), "\r\n")}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("failed to start %s: %w", path, err)
	}
	return result, nil
}

// EncodeCommand encodes script the way -EncodedCommand expects: UTF-16LE then base64.
func EncodeCommand(script string) (string, error) {
	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().String(script)
	if err != nil {
		return "", fmt.Errorf("failed to encode script: %w", err)
	}
	return base64.StdEncoding.EncodeToString([]byte(encoded)), nil
}

// Quote returns s as a single-quoted PowerShell string literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
