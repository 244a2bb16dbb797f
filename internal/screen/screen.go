// Copyright 2025 Joseph Cumines
//
// Package screen captures, scales and annotates desktop screenshots.

package screen

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/joeycumines/windows-mcp/internal/powershell"
)

// Screenshots are scaled to fit within MaxWidth x MaxHeight.
const (
	MaxWidth  = 1920
	MaxHeight = 1080
)

// ErrCapture is returned when the capture script fails.
var ErrCapture = errors.New("screen: capture failed")

const captureScript = `Add-Type -AssemblyName System.Windows.Forms
Add-Type -AssemblyName System.Drawing
$b = [System.Windows.Forms.Screen]::PrimaryScreen.Bounds
$bmp = New-Object System.Drawing.Bitmap $b.Width, $b.Height
$g = [System.Drawing.Graphics]::FromImage($bmp)
$g.CopyFromScreen($b.Location, [System.Drawing.Point]::Empty, $b.Size)
$ms = New-Object System.IO.MemoryStream
$bmp.Save($ms, [System.Drawing.Imaging.ImageFormat]::Png)
$g.Dispose()
$bmp.Dispose()
[Convert]::ToBase64String($ms.ToArray())
`

// Capturer produces a screenshot of the primary display.
type Capturer interface {
	Capture(ctx context.Context) (image.Image, error)
}

// PowerShellCapturer captures via System.Drawing.
type PowerShellCapturer struct {
	runner powershell.Runner
}

// NewCapturer returns a capturer running scripts through runner.
func NewCapturer(runner powershell.Runner) *PowerShellCapturer {
	return &PowerShellCapturer{runner: runner}
}

// Capture implements Capturer.
func (c *PowerShellCapturer) Capture(ctx context.Context) (image.Image, error) {
	res, err := c.runner.Run(ctx, captureScript)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("%w: exit code %d: %s", ErrCapture, res.ExitCode, strings.TrimSpace(res.Output))
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(res.Output))
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %w", ErrCapture, err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode png: %w", ErrCapture, err)
	}
	return img, nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("screen: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
