package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Static cycles through a fixed list of frames.
type Static struct {
	mu     sync.Mutex
	frames [][]byte
	next   int
	closed bool
}

// NewStatic serves the given frames in order, forever.
func NewStatic(frames ...[]byte) *Static {
	return &Static{frames: frames}
}

// LoadStatic reads every .jpg/.jpeg file in dir, sorted by name.
func LoadStatic(dir string) (*Static, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".jpg" || ext == ".jpeg") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no jpeg files in %s", dir)
	}
	sort.Strings(names)
	frames := make([][]byte, 0, len(names))
	for _, n := range names {
		b, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			return nil, err
		}
		frames = append(frames, b)
	}
	return NewStatic(frames...), nil
}

// Frame returns the next frame in the cycle.
func (s *Static) Frame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if len(s.frames) == 0 {
		return nil, fmt.Errorf("static source has no frames")
	}
	f := s.frames[s.next%len(s.frames)]
	s.next++
	return f, nil
}

// Close stops the source.
func (s *Static) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
