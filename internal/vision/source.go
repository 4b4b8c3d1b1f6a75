package vision

import (
	"errors"
	"fmt"
	"image"
	"strconv"

	"github.com/kbinani/screenshot"
	"gocv.io/x/gocv"
)

// FrameSource produces raw photos for the locator.
type FrameSource interface {
	ReadFrame() (gocv.Mat, error)
	Name() string
	Close() error
}

// FileSource reads a single image file.
type FileSource struct {
	path string
}

// NewFileSource creates a source reading path on every ReadFrame.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (fs *FileSource) ReadFrame() (gocv.Mat, error) {
	return ReadImage(fs.path)
}

func (fs *FileSource) Name() string { return fs.path }

func (fs *FileSource) Close() error { return nil }

// CameraSource grabs snapshots from a camera device or a video file.
type CameraSource struct {
	device  string
	video   *gocv.VideoCapture
	warmup  int
	started bool
}

// NewCameraSource opens a capture device. A numeric device is treated as a
// camera index, anything else as a file or stream URL. The first warmup
// frames are discarded while the sensor settles exposure.
func NewCameraSource(device string, warmup int) (*CameraSource, error) {
	var target interface{} = device
	if id, err := strconv.Atoi(device); err == nil {
		target = id
	}

	video, err := gocv.OpenVideoCapture(target)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture device %s: %w", device, err)
	}
	if !video.IsOpened() {
		video.Close()
		return nil, fmt.Errorf("capture device %s not opened", device)
	}

	return &CameraSource{device: device, video: video, warmup: warmup}, nil
}

// ReadFrame reads the next frame
func (cs *CameraSource) ReadFrame() (gocv.Mat, error) {
	if cs.video == nil {
		return gocv.Mat{}, errors.New("camera source closed")
	}

	mat := gocv.NewMat()
	if !cs.started {
		for i := 0; i < cs.warmup; i++ {
			if !cs.video.Read(&mat) {
				break
			}
		}
		cs.started = true
	}

	if !cs.video.Read(&mat) || mat.Empty() {
		mat.Close()
		return gocv.Mat{}, &ImageReadError{Source: cs.device, Err: errors.New("failed to read frame")}
	}
	return mat, nil
}

func (cs *CameraSource) Name() string { return cs.device }

// Close releases the capture device
func (cs *CameraSource) Close() error {
	if cs.video != nil {
		err := cs.video.Close()
		cs.video = nil
		return err
	}
	return nil
}

// ScreenSource captures a screen region, e.g. a board shown in a photo viewer.
type ScreenSource struct {
	region image.Rectangle
}

// NewScreenSource creates a source capturing the given screen region.
func NewScreenSource(x, y, width, height int) (*ScreenSource, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid capture region %dx%d", width, height)
	}
	return &ScreenSource{region: image.Rect(x, y, x+width, y+height)}, nil
}

func (ss *ScreenSource) ReadFrame() (gocv.Mat, error) {
	img, err := screenshot.CaptureRect(ss.region)
	if err != nil {
		return gocv.Mat{}, &ImageReadError{Source: ss.Name(), Err: fmt.Errorf("failed to capture screen: %w", err)}
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, &ImageReadError{Source: ss.Name(), Err: err}
	}
	return mat, nil
}

func (ss *ScreenSource) Name() string {
	return fmt.Sprintf("screen:%d,%d,%dx%d", ss.region.Min.X, ss.region.Min.Y, ss.region.Dx(), ss.region.Dy())
}

func (ss *ScreenSource) Close() error { return nil }
