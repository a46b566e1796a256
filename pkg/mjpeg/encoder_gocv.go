//go:build gocv

package mjpeg

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// CVEncoder encodes with OpenCV's imencode.
type CVEncoder struct{}

func newCVEncoder() (Encoder, error) {
	return CVEncoder{}, nil
}

// Encode implements Encoder.
func (CVEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, clampQuality(quality)})
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
