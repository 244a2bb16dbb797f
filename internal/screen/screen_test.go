// Copyright 2025 Joseph Cumines

package screen

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/windows-mcp/internal/powershell"
)

type fakeRunner struct {
	res *powershell.Result
	err error
}

func (f *fakeRunner) Run(context.Context, string) (*powershell.Result, error) {
	return f.res, f.err
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestFitScale(t *testing.T) {
	for _, tc := range []struct {
		name string
		w, h int
		want float64
	}{
		{"fits", 1280, 720, 1},
		{"exact", 1920, 1080, 1},
		{"4k", 3840, 2160, 0.5},
		{"tall", 1920, 2160, 0.5},
		{"wide", 3840, 1080, 0.5},
		{"ultrawide", 5120, 1440, 0.375},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, FitScale(tc.w, tc.h), 1e-9)
		})
	}
}

func TestScale(t *testing.T) {
	img := solid(40, 20, color.Black)
	assert.Same(t, img, Scale(img, 1))
	assert.Same(t, img, Scale(img, 0.001))

	out := Scale(img, 0.5)
	assert.Equal(t, image.Rect(0, 0, 20, 10), out.Bounds())

	big := image.NewRGBA(image.Rect(0, 0, 3840, 2160))
	assert.Equal(t, image.Rect(0, 0, 1920, 1080), Fit(big).Bounds())
}

func TestAnnotate(t *testing.T) {
	red := color.RGBA{R: 0xff, A: 0xff}
	img := solid(100, 80, red)
	out := Annotate(img, []Label{{Text: "0", Box: image.Rect(10, 30, 60, 70)}}, DefaultPadding)

	assert.Equal(t, image.Rect(0, 0, 110, 90), out.Bounds())
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, out.RGBAAt(0, 0), "padding is white")
	assert.Equal(t, red, out.RGBAAt(50, 50), "content preserved")
	assert.Equal(t, palette[0], out.RGBAAt(15, 50), "left edge drawn, shifted by padding")
}

func TestAnnotate_SkipsOutOfBounds(t *testing.T) {
	img := solid(10, 10, color.Black)
	out := Annotate(img, []Label{{Text: "1", Box: image.Rect(500, 500, 600, 600)}}, 0)
	assert.Equal(t, color.RGBA{A: 0xff}, out.RGBAAt(5, 5))
}

func TestCapture(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(4, 3, color.White)))
	r := &fakeRunner{res: &powershell.Result{Output: base64.StdEncoding.EncodeToString(buf.Bytes()) + "\r\n"}}

	img, err := NewCapturer(r).Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
}

func TestCapture_Errors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		runner *fakeRunner
	}{
		{"runner", &fakeRunner{err: errors.New("boom")}},
		{"exit code", &fakeRunner{res: &powershell.Result{Output: "denied", ExitCode: 1}}},
		{"base64", &fakeRunner{res: &powershell.Result{Output: "%%%"}}},
		{"png", &fakeRunner{res: &powershell.Result{Output: base64.StdEncoding.EncodeToString([]byte("nope"))}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCapturer(tc.runner).Capture(context.Background())
			assert.ErrorIs(t, err, ErrCapture)
		})
	}
}

func TestEncodePNG(t *testing.T) {
	data, err := EncodePNG(solid(2, 2, color.Black))
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data[:4])
}
