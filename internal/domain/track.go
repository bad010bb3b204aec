// Package domain contains wire messages and value types, without logic.
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

func (k Kind) Valid() bool { return k == KindAudio || k == KindVideo }

type SourceType string

const (
	SourceDevice SourceType = "device"
	SourceFile   SourceType = "file"
	SourceURL    SourceType = "url"
)

func (s SourceType) Valid() bool {
	return s == SourceDevice || s == SourceFile || s == SourceURL
}

// NewTrackID returns a fresh, globally unique track id.
func NewTrackID(kind Kind) string {
	return fmt.Sprintf("%s-%s", kind, uuid.NewString())
}
