//go:build !linux && !darwin

package media

import "github.com/dkeye/rtcworker/internal/domain"

func platformDevice(domain.Kind) (device, bool) { return device{}, false }
