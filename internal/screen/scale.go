// Copyright 2025 Joseph Cumines

package screen

import (
	"image"

	"golang.org/x/image/draw"
)

// FitScale returns the factor (at most 1) needed for a width x height image
// to fit within MaxWidth x MaxHeight.
func FitScale(width, height int) float64 {
	scale := 1.0
	if width > MaxWidth {
		scale = float64(MaxWidth) / float64(width)
	}
	if height > MaxHeight {
		scale = min(scale, float64(MaxHeight)/float64(height))
	}
	return scale
}

// Scale resizes img by factor. Factors at or above 1, or that would produce
// an empty image, return img unchanged.
func Scale(img image.Image, factor float64) image.Image {
	b := img.Bounds()
	w := int(float64(b.Dx()) * factor)
	h := int(float64(b.Dy()) * factor)
	if factor >= 1 || w <= 0 || h <= 0 {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// Fit scales img to fit within MaxWidth x MaxHeight.
func Fit(img image.Image) image.Image {
	b := img.Bounds()
	return Scale(img, FitScale(b.Dx(), b.Dy()))
}
