// Placeholder artefact shown in place of a page that could not be rendered.
package binder

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	placeholderWidth  = 120
	placeholderHeight = 160
	placeholderText   = "no preview"
)

var placeholder = sync.OnceValue(func() []byte {
	img := image.NewRGBA(image.Rect(0, 0, placeholderWidth, placeholderHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	border := color.Gray{Y: 0xbb}
	for x := 0; x < placeholderWidth; x++ {
		img.Set(x, 0, border)
		img.Set(x, placeholderHeight-1, border)
	}
	for y := 0; y < placeholderHeight; y++ {
		img.Set(0, y, border)
		img.Set(placeholderWidth-1, y, border)
	}

	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Gray{Y: 0x66}),
		Face: face,
	}
	width := d.MeasureString(placeholderText).Ceil()
	d.Dot = fixed.P((placeholderWidth-width)/2, (placeholderHeight+face.Ascent)/2)
	d.DrawString(placeholderText)

	var buf bytes.Buffer
	// Encoding an in-memory RGBA into a bytes.Buffer cannot fail.
	_ = png.Encode(&buf, img)
	return buf.Bytes()
})

// Placeholder returns the placeholder image as a PNG.
func Placeholder() []byte {
	return placeholder()
}

// PlaceholderURL returns the placeholder image as a data URL.
func PlaceholderURL() string {
	return dataURL(placeholder())
}
