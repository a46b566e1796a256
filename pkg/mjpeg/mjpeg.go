// Package mjpeg turns a live frame source into a stream of JPEG images and
// formats them as parts of a multipart/x-mixed-replace body.
package mjpeg

import (
	"errors"
	"io"
)

// Boundary is the multipart boundary used between frames.
const Boundary = "frame"

// ContentType is the HTTP content type of a stream written by Writer.
const ContentType = "multipart/x-mixed-replace; boundary=" + Boundary

var (
	// ErrEncodeFailed is returned when a frame cannot be encoded.
	ErrEncodeFailed = errors.New("mjpeg: encode failed")

	// ErrEncoderUnavailable is returned for encoders not compiled in.
	ErrEncoderUnavailable = errors.New("mjpeg: encoder unavailable")
)

var (
	partHeader  = []byte("--" + Boundary + "\r\nContent-Type: image/jpeg\r\n\r\n")
	partTrailer = []byte("\r\n")
)

// Chunk wraps one JPEG image in the multipart part format:
//
//	--frame\r\nContent-Type: image/jpeg\r\n\r\n<jpeg>\r\n
func Chunk(jpeg []byte) []byte {
	out := make([]byte, 0, len(partHeader)+len(jpeg)+len(partTrailer))
	out = append(out, partHeader...)
	out = append(out, jpeg...)
	out = append(out, partTrailer...)
	return out
}

// Writer writes JPEG frames to w as multipart chunks.
type Writer struct {
	w io.Writer
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame writes one chunk.
func (w *Writer) WriteFrame(jpeg []byte) error {
	_, err := w.w.Write(Chunk(jpeg))
	return err
}
