//go:build !dlib

package dlibface

import (
	"errors"
	"testing"
)

func TestNewWithoutDlib(t *testing.T) {
	if Available {
		t.Fatal("Available should be false without the dlib tag")
	}
	if _, err := New("models", false); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}
