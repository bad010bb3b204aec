package rtc

import (
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// packetCounter accounts inbound RTP for a remote track.
type packetCounter struct {
	packets uint64
	bytes   uint64
	lost    uint64
	lastSeq uint16
	started bool
}

func (c *packetCounter) observe(pkt *rtp.Packet) {
	if c.started {
		if gap := pkt.SequenceNumber - c.lastSeq; gap > 1 && gap < 1<<15 {
			c.lost += uint64(gap - 1)
		}
	}
	c.started = true
	c.lastSeq = pkt.SequenceNumber
	c.packets++
	c.bytes += uint64(len(pkt.Payload))
}

// drainRemote reads a remote track until it ends. Nothing consumes the media;
// reading keeps the receive interceptors running.
func drainRemote(track *webrtc.TrackRemote) {
	var c packetCounter
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Debug().
				Str("module", "rtc").
				Str("track_id", track.ID()).
				Uint64("packets", c.packets).
				Uint64("bytes", c.bytes).
				Uint64("lost", c.lost).
				Msg("remote track ended")
			return
		}
		c.observe(pkt)
	}
}
