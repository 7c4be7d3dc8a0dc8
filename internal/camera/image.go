package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Frame geometry served to clients and passed to the recognizer.
const (
	FrameWidth  = 640
	FrameHeight = 480
)

var (
	knownColor   = color.RGBA{0, 200, 0, 255}
	unknownColor = color.RGBA{220, 0, 0, 255}
	labelText    = color.RGBA{255, 255, 255, 255}
)

// Label is one face box drawn on a frame.
type Label struct {
	Rect  image.Rectangle
	Text  string
	Known bool
}

// Normalize decodes a JPEG and scales it to w x h.
func Normalize(data []byte, w, h int) (*image.RGBA, error) {
	src, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if src.Bounds().Dx() == w && src.Bounds().Dy() == h {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
		return dst, nil
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// Encode writes img as JPEG.
func Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// Annotate draws a box and caption for every label.
func Annotate(dst *image.RGBA, labels []Label) {
	face := basicfont.Face7x13
	for _, l := range labels {
		c := unknownColor
		if l.Known {
			c = knownColor
		}
		r := l.Rect.Intersect(dst.Bounds())
		if r.Empty() {
			continue
		}
		strokeRect(dst, r, 2, c)
		if l.Text == "" {
			continue
		}

		width := font.MeasureString(face, l.Text).Ceil() + 6
		height := face.Metrics().Height.Ceil() + 4
		top := r.Min.Y - height
		if top < 0 {
			top = r.Max.Y
		}
		bg := image.Rect(r.Min.X, top, r.Min.X+width, top+height).Intersect(dst.Bounds())
		draw.Draw(dst, bg, image.NewUniform(c), image.Point{}, draw.Src)

		d := font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(labelText),
			Face: face,
			Dot:  fixed.P(bg.Min.X+3, bg.Min.Y+face.Metrics().Ascent.Ceil()+2),
		}
		d.DrawString(l.Text)
	}
}

func strokeRect(dst *image.RGBA, r image.Rectangle, thickness int, c color.Color) {
	u := image.NewUniform(c)
	sides := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, s := range sides {
		draw.Draw(dst, s.Intersect(r), u, image.Point{}, draw.Src)
	}
}
