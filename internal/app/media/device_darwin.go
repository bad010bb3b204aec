package media

import "github.com/dkeye/rtcworker/internal/domain"

func platformDevice(kind domain.Kind) (device, bool) {
	switch kind {
	case domain.KindAudio:
		return device{value: "none:0", format: "avfoundation", options: map[string]any{}}, true
	case domain.KindVideo:
		return device{
			value:   "default:none",
			format:  "avfoundation",
			options: map[string]any{"framerate": "30", "video_size": "640x480"},
		}, true
	}
	return device{}, false
}
