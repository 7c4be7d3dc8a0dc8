package testsupport

import (
	"context"
	"image"
	"sync"

	"faceattend/internal/face"
)

// Recognizer is a scripted face.Recognizer.
type Recognizer struct {
	mu    sync.Mutex
	Faces []face.Face
	Err   error
	Calls int
}

// Detect returns the configured faces.
func (r *Recognizer) Detect(context.Context, []byte) ([]face.Face, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls++
	return r.Faces, r.Err
}

// Set replaces the scripted result.
func (r *Recognizer) Set(faces []face.Face, err error) {
	r.mu.Lock()
	r.Faces, r.Err = faces, err
	r.mu.Unlock()
}

// Descriptor returns a descriptor with every component set to v.
func Descriptor(v float32) face.Descriptor {
	var d face.Descriptor
	for i := range d {
		d[i] = v
	}
	return d
}

// FaceOf builds a detected face with a fixed box.
func FaceOf(v float32) face.Face {
	return face.Face{Rect: image.Rect(10, 10, 60, 60), Descriptor: Descriptor(v)}
}
