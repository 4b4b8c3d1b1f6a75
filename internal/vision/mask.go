package vision

import (
	"image"

	"gocv.io/x/gocv"
)

// blackMask marks near-black pixels of a BGR image with 255. A pixel is
// black-ish when its HSV value is at most maxValue, whatever its hue and
// saturation.
func blackMask(img gocv.Mat, maxValue int) gocv.Mat {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(img, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	gocv.InRangeWithScalar(hsv,
		gocv.NewScalar(0, 0, 0, 0),
		gocv.NewScalar(180, 255, float64(maxValue), 0),
		&mask)
	return mask
}

// nonZeroBounds returns the bounding box of all non-zero pixels of a
// single-channel mask.
func nonZeroBounds(mask gocv.Mat) (image.Rectangle, bool) {
	rows, cols := mask.Rows(), mask.Cols()
	data := pixels(mask)

	minX, minY := cols, rows
	maxX, maxY := -1, -1
	for y := 0; y < rows; y++ {
		line := data[y*cols : (y+1)*cols]
		for x, v := range line {
			if v == 0 {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if maxX < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// expandClamp grows r by margin on every side and clips it to bounds.
func expandClamp(r image.Rectangle, margin int, bounds image.Rectangle) image.Rectangle {
	return r.Inset(-margin).Intersect(bounds)
}

func matBounds(m gocv.Mat) image.Rectangle {
	return image.Rect(0, 0, m.Cols(), m.Rows())
}
