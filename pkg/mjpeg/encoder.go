package mjpeg

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// Encoder names accepted by NewEncoder.
const (
	EncoderStd  = "std"
	EncoderGoCV = "gocv"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 80

// Encoder compresses a frame to JPEG bytes.
type Encoder interface {
	Encode(img image.Image, quality int) ([]byte, error)
}

// NewEncoder returns the encoder registered under name.
func NewEncoder(name string) (Encoder, error) {
	switch name {
	case "", EncoderStd:
		return StdEncoder{}, nil
	case EncoderGoCV:
		return newCVEncoder()
	default:
		return nil, fmt.Errorf("unknown encoder: %s", name)
	}
}

// StdEncoder encodes with the pure-Go image/jpeg package.
type StdEncoder struct{}

// Encode implements Encoder.
func (StdEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: clampQuality(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func clampQuality(q int) int {
	if q <= 0 {
		return DefaultQuality
	}
	if q > 100 {
		return 100
	}
	return q
}
