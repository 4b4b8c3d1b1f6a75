package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ReadImage loads a color raster from disk as a 3-channel BGR Mat.
// The returned Mat is only valid when err is nil; the caller closes it.
func ReadImage(path string) (gocv.Mat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return gocv.Mat{}, &ImageReadError{Source: path, Err: err}
	}
	return decodeColor(data, path)
}

// DecodeImage decodes an in-memory raster as a 3-channel BGR Mat.
func DecodeImage(buf []byte) (gocv.Mat, error) {
	return decodeColor(buf, "<buffer>")
}

func decodeColor(buf []byte, source string) (gocv.Mat, error) {
	if len(buf) == 0 {
		return gocv.Mat{}, &ImageReadError{Source: source, Err: ErrEmptyImage}
	}

	mat, err := gocv.IMDecode(buf, gocv.IMReadColor)
	if err == nil && !mat.Empty() {
		return mat, nil
	}
	mat.Close()

	// OpenCV builds without some codecs; fall back to the Go decoders.
	img, _, derr := image.Decode(bytes.NewReader(buf))
	if derr != nil {
		return gocv.Mat{}, &ImageReadError{Source: source, Err: derr}
	}
	mat, err = gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, &ImageReadError{Source: source, Err: fmt.Errorf("convert image: %w", err)}
	}
	return mat, nil
}

// decodeUnchanged keeps an alpha channel when the raster has one.
func decodeUnchanged(buf []byte, source string) (gocv.Mat, error) {
	if len(buf) == 0 {
		return gocv.Mat{}, &ImageReadError{Source: source, Err: ErrEmptyImage}
	}

	mat, err := gocv.IMDecode(buf, gocv.IMReadUnchanged)
	if err == nil && !mat.Empty() {
		return mat, nil
	}
	mat.Close()

	img, _, derr := image.Decode(bytes.NewReader(buf))
	if derr != nil {
		return gocv.Mat{}, &ImageReadError{Source: source, Err: derr}
	}
	mat, err = gocv.ImageToMatRGBA(img)
	if err != nil {
		return gocv.Mat{}, &ImageReadError{Source: source, Err: fmt.Errorf("convert image: %w", err)}
	}
	return mat, nil
}

// toBGR returns a new continuous 3-channel copy of src.
func toBGR(src gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	switch src.Channels() {
	case 1:
		gocv.CvtColor(src, &dst, gocv.ColorGrayToBGR)
	case 4:
		gocv.CvtColor(src, &dst, gocv.ColorBGRAToBGR)
	default:
		src.CopyTo(&dst)
	}
	return dst
}

// to8Bit returns an 8-bit copy of src, rescaling 16-bit and floating point
// rasters (the latter assumed in [0, 1]). Other depths are rejected.
func to8Bit(src gocv.Mat) (gocv.Mat, error) {
	channels := src.Channels()
	depth := gocv.MatType(int(src.Type()) & 7)

	var scale float32
	switch depth {
	case gocv.MatTypeCV8U:
		return src.Clone(), nil
	case gocv.MatTypeCV16U:
		scale = 1.0 / 257
	case gocv.MatTypeCV32F, gocv.MatTypeCV64F:
		scale = 255
	default:
		return gocv.Mat{}, fmt.Errorf("unsupported pixel depth %d", depth)
	}
	if channels < 1 || channels > 4 {
		return gocv.Mat{}, fmt.Errorf("unsupported channel count %d", channels)
	}

	dst := gocv.NewMat()
	src.ConvertToWithParams(&dst, gocv.MatType(int(gocv.MatTypeCV8U)+(channels-1)*8), scale, 0)
	return dst, nil
}

// pixels copies the raster into a row-major, channel-interleaved slice.
func pixels(m gocv.Mat) []byte {
	c := m.Clone()
	defer c.Close()
	return c.ToBytes()
}

func isEmpty(m gocv.Mat) bool {
	return m.Empty() || m.Rows() == 0 || m.Cols() == 0
}
