//go:build !dlib

package dlibface

import (
	"context"
	"errors"

	"faceattend/internal/face"
)

// Available reports whether the binary was built with dlib support.
const Available = false

// ErrUnavailable is returned when the binary was built without the dlib tag.
var ErrUnavailable = errors.New("dlib face backend not compiled in; rebuild with -tags dlib")

// Recognizer is a placeholder in builds without dlib.
type Recognizer struct{}

// New always fails without the dlib build tag.
func New(string, bool) (*Recognizer, error) {
	return nil, ErrUnavailable
}

// Detect always fails without the dlib build tag.
func (*Recognizer) Detect(context.Context, []byte) ([]face.Face, error) {
	return nil, ErrUnavailable
}

// Close is a no-op.
func (*Recognizer) Close() error { return nil }
