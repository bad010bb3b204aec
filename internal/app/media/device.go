package media

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/dkeye/rtcworker/internal/domain"
)

var errClosed = errors.New("media registry closed")

type device struct {
	value   string
	format  string
	options map[string]any
}

// deviceSource applies the platform defaults for req.Kind. Explicit
// request values win over defaults.
func deviceSource(req Request) (Source, error) {
	def, ok := platformDevice(req.Kind)
	if !ok && (req.Value == "" || req.Format == "") {
		return Source{}, fmt.Errorf("%w: no default %s device on %s", domain.ErrValidation, req.Kind, runtime.GOOS)
	}
	src := Source{
		Type:    domain.SourceDevice,
		Kind:    req.Kind,
		Value:   def.value,
		Format:  def.format,
		Options: def.options,
	}
	if req.Value != "" {
		src.Value = req.Value
	}
	if req.Format != "" {
		src.Format = req.Format
	}
	if req.Options != nil {
		src.Options = req.Options
	}
	return src, nil
}
