//go:build !gocv

package mjpeg

import "fmt"

// newCVEncoder returns an error when built without the gocv tag.
func newCVEncoder() (Encoder, error) {
	return nil, fmt.Errorf("%w: gocv (rebuild with -tags gocv)", ErrEncoderUnavailable)
}
