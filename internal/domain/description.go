package domain

// SessionDescription is the wire form of an SDP blob.
type SessionDescription struct {
	Type string `json:"type" validate:"required,oneof=offer answer pranswer rollback"`
	SDP  string `json:"sdp"`
}

// DataChannelSnapshot describes a data channel right after creation.
type DataChannelSnapshot struct {
	StreamID                   *uint16 `json:"streamId"`
	Ordered                    bool    `json:"ordered"`
	MaxPacketLifeTime          *uint16 `json:"maxPacketLifeTime"`
	MaxRetransmits             *uint16 `json:"maxRetransmits"`
	Label                      string  `json:"label"`
	Protocol                   string  `json:"protocol"`
	ReadyState                 string  `json:"readyState"`
	BufferedAmount             uint64  `json:"bufferedAmount"`
	BufferedAmountLowThreshold uint64  `json:"bufferedAmountLowThreshold"`
}
