package elements

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// VideoMediaType is the caps media type of raw video produced by TestSource.
const VideoMediaType = "video/x-raw"

// VideoCaps describes a raw video stream. Zero fields in a caps filter's
// requirement act as wildcards during negotiation.
type VideoCaps struct {
	Format       string
	Width        int
	Height       int
	FramerateNum int
	FramerateDen int
}

func (c VideoCaps) MediaType() string {
	return VideoMediaType
}

// FrameDuration returns the duration of a single frame at the caps framerate.
func (c VideoCaps) FrameDuration() time.Duration {
	if c.FramerateNum <= 0 || c.FramerateDen <= 0 {
		return 0
	}

	return time.Duration(int64(time.Second) * int64(c.FramerateDen) / int64(c.FramerateNum))
}

// FrameSize returns the byte size of a single packed frame.
func (c VideoCaps) FrameSize() (int, error) {
	var bpp int
	switch c.Format {
	case "RGB", "BGR":
		bpp = 3
	case "RGBA", "BGRA":
		bpp = 4
	case "GRAY8":
		bpp = 1
	default:
		return 0, errors.Errorf("unsupported video format: %s", c.Format)
	}

	return bpp * c.Width * c.Height, nil
}

// Satisfies reports whether these caps meet a requirement, treating the
// requirement's zero fields as wildcards.
func (c VideoCaps) Satisfies(require VideoCaps) bool {
	if require.Format != "" && require.Format != c.Format {
		return false
	}
	if require.Width != 0 && require.Width != c.Width {
		return false
	}
	if require.Height != 0 && require.Height != c.Height {
		return false
	}
	if require.FramerateNum != 0 && require.FramerateNum != c.FramerateNum {
		return false
	}
	if require.FramerateDen != 0 && require.FramerateDen != c.FramerateDen {
		return false
	}

	return true
}

func (c VideoCaps) String() string {
	return fmt.Sprintf("%s, format=%s, width=%d, height=%d, framerate=%d/%d",
		VideoMediaType, c.Format, c.Width, c.Height, c.FramerateNum, c.FramerateDen)
}
