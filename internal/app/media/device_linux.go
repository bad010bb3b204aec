package media

import "github.com/dkeye/rtcworker/internal/domain"

func platformDevice(kind domain.Kind) (device, bool) {
	switch kind {
	case domain.KindAudio:
		return device{value: "hw:0", format: "alsa", options: map[string]any{}}, true
	case domain.KindVideo:
		return device{
			value:   "/dev/video0",
			format:  "v4l2",
			options: map[string]any{"framerate": "30", "video_size": "640x480"},
		}, true
	}
	return device{}, false
}
