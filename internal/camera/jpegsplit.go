package camera

import (
	"bufio"
	"bytes"
	"io"
)

const maxFrameSize = 8 << 20

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// splitJPEG is a bufio.SplitFunc yielding complete JPEG images from a
// concatenated MJPEG byte stream.
func splitJPEG(data []byte, atEOF bool) (int, []byte, error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if atEOF || len(data) == 0 {
			return len(data), nil, nil
		}
		// keep a trailing 0xFF that may begin the next marker
		return len(data) - 1, nil, nil
	}
	if start > 0 {
		return start, nil, nil
	}
	end := bytes.Index(data[len(jpegSOI):], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	n := len(jpegSOI) + end + len(jpegEOI)
	return n, data[:n], nil
}

// readFrames publishes every JPEG found in r until it fails or ends.
func readFrames(r io.Reader, h *hub) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 256<<10), maxFrameSize)
	sc.Split(splitJPEG)
	for sc.Scan() {
		frame := make([]byte, len(sc.Bytes()))
		copy(frame, sc.Bytes())
		h.publish(frame, nil)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}
