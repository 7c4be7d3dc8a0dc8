//go:build dlib

package dlibface

import (
	"context"
	"fmt"
	"sync"

	goface "github.com/Kagami/go-face"

	"faceattend/internal/face"
)

// Available reports whether the binary was built with dlib support.
const Available = true

// Recognizer runs dlib face detection and encoding in process.
type Recognizer struct {
	mu  sync.Mutex
	rec *goface.Recognizer
	cnn bool
}

// New loads the dlib models from modelsDir. cnn selects the slower, more
// accurate detector.
func New(modelsDir string, cnn bool) (*Recognizer, error) {
	rec, err := goface.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("load dlib models from %s: %w", modelsDir, err)
	}
	return &Recognizer{rec: rec, cnn: cnn}, nil
}

// Detect returns every face in a JPEG image.
func (r *Recognizer) Detect(ctx context.Context, jpeg []byte) ([]face.Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		found []goface.Face
		err   error
	)
	if r.cnn {
		found, err = r.rec.RecognizeCNN(jpeg)
	} else {
		found, err = r.rec.Recognize(jpeg)
	}
	if err != nil {
		return nil, err
	}
	out := make([]face.Face, len(found))
	for i, f := range found {
		out[i] = face.Face{Rect: f.Rectangle, Descriptor: face.Descriptor(f.Descriptor)}
	}
	return out, nil
}

// Close frees the native recognizer.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec.Close()
	return nil
}
