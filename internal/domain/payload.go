package domain

// AddTrackData is the payload of addTrack.
type AddTrackData struct {
	Kind        Kind           `json:"kind" validate:"required,oneof=audio video"`
	SourceType  SourceType     `json:"sourceType" validate:"required,oneof=device file url"`
	SourceValue string         `json:"sourceValue"`
	Format      string         `json:"format"`
	Options     map[string]any `json:"options"`
}

// TrackRef names a track; it is both the addTrack result and the
// removeTrack / getMid payload.
type TrackRef struct {
	TrackID string `json:"trackId" validate:"required"`
}

type MidRef struct {
	Mid string `json:"mid" validate:"required"`
}

// DataChannelParams is the payload of createDataChannel. Channels are
// negotiated out-of-band, so the stream id is mandatory.
type DataChannelParams struct {
	ID                *uint16 `json:"id" validate:"required"`
	Ordered           *bool   `json:"ordered"`
	MaxPacketLifeTime *uint16 `json:"maxPacketLifeTime"`
	MaxRetransmits    *uint16 `json:"maxRetransmits"`
	Label             string  `json:"label"`
	Protocol          string  `json:"protocol"`
}
