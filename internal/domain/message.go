package domain

import (
	"encoding/json"
	"fmt"
)

// Method names a request the host may issue.
type Method string

const (
	MethodGetRtpCapabilities   Method = "getRtpCapabilities"
	MethodGetLocalDescription  Method = "getLocalDescription"
	MethodAddTrack             Method = "addTrack"
	MethodRemoveTrack          Method = "removeTrack"
	MethodSetLocalDescription  Method = "setLocalDescription"
	MethodSetRemoteDescription Method = "setRemoteDescription"
	MethodCreateOffer          Method = "createOffer"
	MethodCreateAnswer         Method = "createAnswer"
	MethodGetMid               Method = "getMid"
	MethodGetTransportStats    Method = "getTransportStats"
	MethodGetSenderStats       Method = "getSenderStats"
	MethodGetReceiverStats     Method = "getReceiverStats"
	MethodCreateDataChannel    Method = "createDataChannel"
)

// Event names a notification, in either direction.
type Event string

// Inbound events (host -> worker).
const (
	EventEnableTrack                     Event = "enableTrack"
	EventDisableTrack                    Event = "disableTrack"
	EventDataChannelSend                 Event = "datachannel.send"
	EventDataChannelSendBinary           Event = "datachannel.sendBinary"
	EventDataChannelClose                Event = "datachannel.close"
	EventDataChannelSetBufferedAmountLow Event = "datachannel.setBufferedAmountLowThreshold"
)

// Outbound events (worker -> host).
const (
	EventRunning                  Event = "running"
	EventICEConnectionStateChange Event = "iceconnectionstatechange"
	EventICEGatheringStateChange  Event = "icegatheringstatechange"
	EventSignalingStateChange     Event = "signalingstatechange"
	EventOpen                     Event = "open"
	EventClosing                  Event = "closing"
	EventClose                    Event = "close"
	EventMessage                  Event = "message"
	EventBinary                   Event = "binary"
	EventBufferedAmountLow        Event = "bufferedamountlow"
	EventBufferedAmount           Event = "bufferedamount"
)

// Envelope is an inbound frame before it is classified.
type Envelope struct {
	ID       *int            `json:"id,omitempty"`
	Method   Method          `json:"method,omitempty"`
	Event    Event           `json:"event,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Internal Internal        `json:"internal"`
}

// DecodeEnvelope decodes the top-level keys of a frame one by one, id first.
// A malformed key after a well-formed id still yields that id alongside the
// error, so the request can be answered.
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(frame, &fields); err != nil {
		return env, err
	}
	if raw, ok := fields["id"]; ok {
		if err := json.Unmarshal(raw, &env.ID); err != nil {
			return Envelope{}, fmt.Errorf("%w: invalid id: %v", ErrValidation, err)
		}
	}
	if raw, ok := fields["method"]; ok {
		if err := json.Unmarshal(raw, &env.Method); err != nil {
			return env, fmt.Errorf("%w: invalid method: %v", ErrValidation, err)
		}
	}
	if raw, ok := fields["event"]; ok {
		if err := json.Unmarshal(raw, &env.Event); err != nil {
			return env, fmt.Errorf("%w: invalid event: %v", ErrValidation, err)
		}
	}
	env.Data = fields["data"]
	if raw, ok := fields["internal"]; ok {
		if err := json.Unmarshal(raw, &env.Internal); err != nil {
			return env, fmt.Errorf("%w: invalid internal: %v", ErrValidation, err)
		}
	}
	return env, nil
}

// Internal carries routing metadata the host attaches to a message.
type Internal struct {
	ChannelRef    string `json:"channelRef,omitempty"`
	DataChannelID string `json:"dataChannelId,omitempty"`
}

// Ref returns the data channel reference, accepting the legacy key.
func (i Internal) Ref() string {
	if i.ChannelRef != "" {
		return i.ChannelRef
	}
	return i.DataChannelID
}

type Request struct {
	ID       int
	Method   Method
	Data     json.RawMessage
	Internal Internal
}

type Notification struct {
	Event    Event
	Data     json.RawMessage
	Internal Internal
}

// Reply answers exactly one Request.
type Reply struct {
	ID     int    `json:"id"`
	OK     bool   `json:"ok"`
	Data   any    `json:"data,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Outbound is a notification sent to the host.
type Outbound struct {
	Target any   `json:"target"`
	Event  Event `json:"event"`
	Data   any   `json:"data,omitempty"`
}
