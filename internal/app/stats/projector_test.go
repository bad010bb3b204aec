package stats

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keysOf(t *testing.T, v any) []string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestProjectInboundFieldSet(t *testing.T) {
	rec := ProjectInbound(webrtc.InboundRTPStreamStats{
		Timestamp:       1_700_000_000_500,
		Type:            webrtc.StatsTypeInboundRTP,
		ID:              "in-1",
		SSRC:            1234,
		Kind:            "audio",
		TransportID:     "t-1",
		PacketsReceived: 10,
		PacketsLost:     2,
		Jitter:          0.25,
		BytesReceived:   999,
	})

	assert.Equal(t, []string{
		"id", "jitter", "kind", "packetsLost", "packetsReceived",
		"ssrc", "timestamp", "transportId", "type",
	}, keysOf(t, rec))
	assert.Equal(t, "inbound-rtp", rec.Type)
	assert.Equal(t, uint32(1234), rec.SSRC)
	assert.InDelta(t, 1_700_000_000.5, rec.Timestamp, 1e-6)
}

func TestProjectFieldSets(t *testing.T) {
	cases := []struct {
		name string
		rec  any
		want []string
	}{
		{
			name: "outbound-rtp",
			rec:  ProjectOutbound(webrtc.OutboundRTPStreamStats{Type: webrtc.StatsTypeOutboundRTP}),
			want: []string{"bytesSent", "id", "kind", "packetsSent", "ssrc", "timestamp", "trackId", "transportId", "type"},
		},
		{
			name: "remote-inbound-rtp",
			rec:  ProjectRemoteInbound(webrtc.RemoteInboundRTPStreamStats{Type: webrtc.StatsTypeRemoteInboundRTP}),
			want: []string{
				"fractionLost", "id", "jitter", "kind", "packetsLost", "packetsReceived",
				"roundTripTime", "ssrc", "timestamp", "transportId", "type",
			},
		},
		{
			name: "remote-outbound-rtp",
			rec:  ProjectRemoteOutbound(webrtc.RemoteOutboundRTPStreamStats{Type: webrtc.StatsTypeRemoteOutboundRTP}),
			want: []string{"bytesSent", "id", "kind", "packetsSent", "remoteTimestamp", "ssrc", "timestamp", "transportId", "type"},
		},
		{
			name: "transport",
			rec:  ProjectTransport(webrtc.TransportStats{Type: webrtc.StatsTypeTransport}),
			want: []string{"bytesReceived", "bytesSent", "dtlsState", "iceRole", "id", "packetsReceived", "packetsSent", "timestamp", "type"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, keysOf(t, tc.rec))
		})
	}
}

func TestProjectDropsUnknownKinds(t *testing.T) {
	report := webrtc.StatsReport{
		"in":   webrtc.InboundRTPStreamStats{ID: "in", Type: webrtc.StatsTypeInboundRTP},
		"pair": webrtc.ICECandidatePairStats{ID: "pair", Type: webrtc.StatsTypeCandidatePair},
		"tr":   webrtc.TransportStats{ID: "tr", Type: webrtc.StatsTypeTransport},
	}

	out := Project(report, TransportKinds)

	require.Len(t, out, 2)
	assert.IsType(t, InboundRTP{}, out["in"])
	assert.IsType(t, Transport{}, out["tr"])
	assert.NotContains(t, out, "pair")
}

func TestProjectRestrictsToKinds(t *testing.T) {
	report := webrtc.StatsReport{
		"in":  webrtc.InboundRTPStreamStats{ID: "in", Type: webrtc.StatsTypeInboundRTP},
		"out": webrtc.OutboundRTPStreamStats{ID: "out", Type: webrtc.StatsTypeOutboundRTP},
		"ri":  webrtc.RemoteInboundRTPStreamStats{ID: "ri", Type: webrtc.StatsTypeRemoteInboundRTP},
		"ro":  webrtc.RemoteOutboundRTPStreamStats{ID: "ro", Type: webrtc.StatsTypeRemoteOutboundRTP},
		"tr":  webrtc.TransportStats{ID: "tr", Type: webrtc.StatsTypeTransport},
	}

	sender := Project(report, SenderKinds)
	assert.Len(t, sender, 3)
	assert.Contains(t, sender, "out")
	assert.Contains(t, sender, "ri")
	assert.Contains(t, sender, "tr")

	receiver := Project(report, ReceiverKinds)
	assert.Len(t, receiver, 3)
	assert.Contains(t, receiver, "in")
	assert.Contains(t, receiver, "ro")
	assert.Contains(t, receiver, "tr")

	assert.Len(t, Project(report, TransportKinds), 5)
}
