package face

import (
	"context"
	"errors"
	"image"
)

// ErrNoFace is returned when an image contains no detectable face.
var ErrNoFace = errors.New("no face detected")

// Face is one detected face with its encoding.
type Face struct {
	Rect       image.Rectangle
	Descriptor Descriptor
}

// Recognizer detects faces in a JPEG image and encodes each of them.
type Recognizer interface {
	Detect(ctx context.Context, jpeg []byte) ([]Face, error)
}

// Encode returns the descriptor of the largest face in the image.
func Encode(ctx context.Context, rec Recognizer, jpeg []byte) (Descriptor, error) {
	faces, err := rec.Detect(ctx, jpeg)
	if err != nil {
		return Descriptor{}, err
	}
	if len(faces) == 0 {
		return Descriptor{}, ErrNoFace
	}
	best := faces[0]
	for _, f := range faces[1:] {
		if area(f.Rect) > area(best.Rect) {
			best = f
		}
	}
	return best.Descriptor, nil
}

func area(r image.Rectangle) int {
	s := r.Canon().Size()
	return s.X * s.Y
}
