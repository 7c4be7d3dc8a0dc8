package main

import (
	"context"

	"faceattend/internal/config"
	"faceattend/internal/dlibface"
	"faceattend/internal/face"
	"faceattend/internal/faceclient"
)

// newRecognizer builds the configured face backend. health is nil for
// in-process backends.
func newRecognizer(cfg config.App) (rec face.Recognizer, health func(context.Context) error, closeFn func() error, err error) {
	switch cfg.FaceBackend {
	case "dlib":
		r, err := dlibface.New(cfg.DlibModelsDir, cfg.DlibCNN)
		if err != nil {
			return nil, nil, nil, err
		}
		return r, nil, r.Close, nil
	default:
		c := faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip)
		return c, c.Health, func() error { return nil }, nil
	}
}
