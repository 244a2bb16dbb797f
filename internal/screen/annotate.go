// Copyright 2025 Joseph Cumines

package screen

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultPadding pads the screenshot around annotated boxes.
const DefaultPadding = 5

// Label is a numbered box drawn over a screenshot.
type Label struct {
	Text string
	Box  image.Rectangle
}

var palette = []color.RGBA{
	{R: 0xe6, G: 0x19, B: 0x4b, A: 0xff},
	{R: 0x3c, G: 0xb4, B: 0x4b, A: 0xff},
	{R: 0x43, G: 0x63, B: 0xd8, A: 0xff},
	{R: 0xf5, G: 0x82, B: 0x31, A: 0xff},
	{R: 0x91, G: 0x1e, B: 0xb4, A: 0xff},
	{R: 0x46, G: 0x99, B: 0x90, A: 0xff},
	{R: 0x9a, G: 0x63, B: 0x24, A: 0xff},
	{R: 0x80, G: 0x00, B: 0x00, A: 0xff},
}

// Annotate draws labels over a copy of img surrounded by a padding border,
// so box coordinates shift by padding.
func Annotate(img image.Image, labels []Label, padding int) *image.RGBA {
	padding = max(padding, 0)
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()+2*padding, b.Dy()+2*padding))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(padding, padding, padding+b.Dx(), padding+b.Dy()), img, b.Min, draw.Src)

	face := basicfont.Face7x13
	offset := image.Pt(padding-b.Min.X, padding-b.Min.Y)
	for i, l := range labels {
		c := palette[i%len(palette)]
		box := l.Box.Add(offset).Intersect(dst.Bounds())
		if box.Empty() {
			continue
		}
		outline(dst, box, c)

		textW := font.MeasureString(face, l.Text).Ceil()
		textH := face.Metrics().Height.Ceil()
		tag := image.Rect(box.Max.X-textW-4, box.Min.Y-textH-2, box.Max.X, box.Min.Y)
		if tag.Min.Y < 0 {
			tag = tag.Add(image.Pt(0, textH+2))
		}
		if tag.Min.X < 0 {
			tag = tag.Add(image.Pt(-tag.Min.X, 0))
		}
		draw.Draw(dst, tag, image.NewUniform(c), image.Point{}, draw.Src)
		d := font.Drawer{
			Dst:  dst,
			Src:  image.White,
			Face: face,
			Dot:  fixed.P(tag.Min.X+2, tag.Min.Y+face.Metrics().Ascent.Ceil()+1),
		}
		d.DrawString(l.Text)
	}
	return dst
}

func outline(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	const width = 2
	u := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), u, image.Point{}, draw.Src)
	}
}
