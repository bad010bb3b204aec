package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/dkeye/rtcworker/internal/core"
	"github.com/dkeye/rtcworker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memChannel serves queued inbound frames, then readErr.
type memChannel struct {
	mu      sync.Mutex
	inbound []core.Frame
	readErr error
	sent    []core.Frame
	closed  int
	journal *[]string
}

func (c *memChannel) Receive(ctx context.Context) (core.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(c.inbound) == 0 {
		return nil, c.readErr
	}
	f := c.inbound[0]
	c.inbound = c.inbound[1:]
	return f, nil
}

func (c *memChannel) Send(_ context.Context, f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, f)
	return nil
}

func (c *memChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	if c.journal != nil {
		*c.journal = append(*c.journal, "channel.close")
	}
	return nil
}

func (c *memChannel) replies(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.sent))
	for _, f := range c.sent {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

type fakeHandler struct {
	requests      []domain.Request
	notifications []domain.Notification
	onRequest     func(domain.Request) (any, error)
	onNotify      func(domain.Notification) error
	closed        int
	journal       *[]string
}

func (h *fakeHandler) HandleRequest(_ context.Context, req domain.Request) (any, error) {
	h.requests = append(h.requests, req)
	if h.onRequest != nil {
		return h.onRequest(req)
	}
	return nil, nil
}

func (h *fakeHandler) HandleNotification(_ context.Context, n domain.Notification) error {
	h.notifications = append(h.notifications, n)
	if h.onNotify != nil {
		return h.onNotify(n)
	}
	return nil
}

func (h *fakeHandler) Close() {
	h.closed++
	if h.journal != nil {
		*h.journal = append(*h.journal, "session.close")
	}
}

func frames(lines ...string) []core.Frame {
	out := make([]core.Frame, 0, len(lines))
	for _, l := range lines {
		out = append(out, core.Frame(l))
	}
	return out
}

func run(t *testing.T, ch *memChannel, h *fakeHandler) error {
	t.Helper()
	if ch.readErr == nil {
		ch.readErr = io.EOF
	}
	return NewDispatcher(ch, h).Run(context.Background())
}

func TestRepliesInArrivalOrder(t *testing.T) {
	const n = 50
	lines := make([]string, 0, n)
	for i := range n {
		lines = append(lines, fmt.Sprintf(`{"id":%d,"method":"getMid","data":{"trackId":"t%d"}}`, i, i))
	}
	ch := &memChannel{inbound: frames(lines...)}
	h := &fakeHandler{onRequest: func(req domain.Request) (any, error) {
		if req.ID%2 == 1 {
			return nil, fmt.Errorf("%w: track", domain.ErrNotFound)
		}
		return req.ID, nil
	}}

	require.NoError(t, run(t, ch, h))

	replies := ch.replies(t)
	require.Len(t, replies, n)
	for i, r := range replies {
		assert.EqualValues(t, i, r["id"])
		assert.Equal(t, i%2 == 0, r["ok"])
	}
}

func TestAddTrackReply(t *testing.T) {
	ch := &memChannel{inbound: frames(`{"id":1,"method":"addTrack","data":{"kind":"audio","sourceType":"file","sourceValue":"/a.wav"}}`)}
	h := &fakeHandler{onRequest: func(req domain.Request) (any, error) {
		return domain.TrackRef{TrackID: "audio-1"}, nil
	}}

	require.NoError(t, run(t, ch, h))

	require.Len(t, ch.sent, 1)
	assert.JSONEq(t, `{"id":1,"ok":true,"data":{"trackId":"audio-1"}}`, string(ch.sent[0]))
	require.Len(t, h.requests, 1)
	assert.Equal(t, domain.MethodAddTrack, h.requests[0].Method)
	assert.JSONEq(t, `{"kind":"audio","sourceType":"file","sourceValue":"/a.wav"}`, string(h.requests[0].Data))
}

func TestFailedReplyCarriesReason(t *testing.T) {
	ch := &memChannel{inbound: frames(`{"id":3,"method":"removeTrack","data":{"trackId":"unknown"}}`)}
	h := &fakeHandler{onRequest: func(domain.Request) (any, error) {
		return nil, fmt.Errorf("%w: track \"unknown\"", domain.ErrNotFound)
	}}

	require.NoError(t, run(t, ch, h))

	require.Len(t, ch.sent, 1)
	assert.JSONEq(t, `{"id":3,"ok":false,"reason":"not found: track \"unknown\""}`, string(ch.sent[0]))
}

func TestEngineFailureReasonIsEngineMessage(t *testing.T) {
	ch := &memChannel{inbound: frames(`{"id":7,"method":"createAnswer"}`)}
	h := &fakeHandler{onRequest: func(domain.Request) (any, error) {
		return nil, domain.EngineFailure(errors.New("no remote description"))
	}}

	require.NoError(t, run(t, ch, h))

	replies := ch.replies(t)
	require.Len(t, replies, 1)
	assert.Equal(t, "no remote description", replies[0]["reason"])
}

func TestMalformedFramesDoNotStopTheLoop(t *testing.T) {
	ch := &memChannel{inbound: frames(
		``,
		`not json`,
		`{"id":5}`,
		`{"data":{}}`,
		`{"method":"createOffer"}`,
		`{"id":6,"method":"createOffer"}`,
	)}
	h := &fakeHandler{}

	require.NoError(t, run(t, ch, h))

	replies := ch.replies(t)
	require.Len(t, replies, 2)
	assert.EqualValues(t, 5, replies[0]["id"])
	assert.Equal(t, false, replies[0]["ok"])
	assert.Contains(t, replies[0]["reason"], "neither method nor event")
	assert.EqualValues(t, 6, replies[1]["id"])
	assert.Equal(t, true, replies[1]["ok"])
	assert.Len(t, h.requests, 1)
}

func TestMistypedFieldsStillGetAReply(t *testing.T) {
	ch := &memChannel{inbound: frames(
		`{"id":7,"method":"createDataChannel","data":{"id":1},"internal":{"dataChannelId":42}}`,
		`{"id":8,"method":"getMid","data":{"trackId":"t"},"internal":"oops"}`,
		`{"id":9,"method":12}`,
		`{"id":"ten","method":"createOffer"}`,
		`{"event":"datachannel.send","internal":"oops"}`,
		`{"id":11,"method":"createOffer"}`,
	)}
	h := &fakeHandler{}

	require.NoError(t, run(t, ch, h))

	replies := ch.replies(t)
	require.Len(t, replies, 4)
	for i, id := range []int{7, 8, 9} {
		assert.EqualValues(t, id, replies[i]["id"])
		assert.Equal(t, false, replies[i]["ok"])
		assert.Contains(t, replies[i]["reason"], "invalid request")
	}
	assert.Contains(t, replies[0]["reason"], "invalid internal")
	assert.Contains(t, replies[2]["reason"], "invalid method")
	assert.EqualValues(t, 11, replies[3]["id"])
	assert.Equal(t, true, replies[3]["ok"])
	assert.Len(t, h.requests, 1)
	assert.Empty(t, h.notifications)
}

func TestNotificationsAreNeverReplied(t *testing.T) {
	ch := &memChannel{inbound: frames(
		`{"event":"datachannel.send","data":"hi","internal":{"channelRef":"dc"}}`,
		`{"event":"bogus"}`,
		`{"id":1,"method":"createOffer"}`,
	)}
	h := &fakeHandler{onNotify: func(n domain.Notification) error {
		if n.Event == "bogus" {
			return fmt.Errorf("unknown event: %w", domain.ErrUnknownOperation)
		}
		return nil
	}}

	require.NoError(t, run(t, ch, h))

	require.Len(t, h.notifications, 2)
	assert.Equal(t, "dc", h.notifications[0].Internal.Ref())
	assert.JSONEq(t, `"hi"`, string(h.notifications[0].Data))
	replies := ch.replies(t)
	require.Len(t, replies, 1)
	assert.EqualValues(t, 1, replies[0]["id"])
}

func TestPanickingHandlerGetsFailedReply(t *testing.T) {
	ch := &memChannel{inbound: frames(`{"id":2,"method":"createOffer"}`, `{"event":"enableTrack"}`)}
	h := &fakeHandler{
		onRequest: func(domain.Request) (any, error) { panic("boom") },
		onNotify:  func(domain.Notification) error { panic("boom") },
	}

	require.NoError(t, run(t, ch, h))

	replies := ch.replies(t)
	require.Len(t, replies, 1)
	assert.Equal(t, false, replies[0]["ok"])
	assert.Contains(t, replies[0]["reason"], "boom")
}

func TestTransportFailureShutsDownInOrder(t *testing.T) {
	var journal []string
	ch := &memChannel{
		inbound: frames(`{"id":1,"method":"createOffer"}`),
		readErr: errors.New("broken pipe"),
		journal: &journal,
	}
	h := &fakeHandler{journal: &journal}

	err := run(t, ch, h)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, []string{"session.close", "channel.close"}, journal)
	assert.Len(t, ch.replies(t), 1)
}

func TestCancelledContextStopsCleanly(t *testing.T) {
	ch := &memChannel{inbound: frames(`{"id":1,"method":"createOffer"}`)}
	h := &fakeHandler{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewDispatcher(ch, h).Run(ctx)

	assert.NoError(t, err)
	assert.Empty(t, h.requests)
	assert.Equal(t, 1, h.closed)
	assert.Equal(t, 1, ch.closed)
}

func TestNotifier(t *testing.T) {
	ch := &memChannel{}
	n := NewNotifier(ch)

	n.Notify(4242, domain.EventRunning, nil)
	n.Notify("dc-1", domain.EventBufferedAmount, uint64(10))

	require.Len(t, ch.sent, 2)
	assert.JSONEq(t, `{"target":4242,"event":"running"}`, string(ch.sent[0]))
	assert.JSONEq(t, `{"target":"dc-1","event":"bufferedamount","data":10}`, string(ch.sent[1]))
}

func TestNotifierIgnoresUnencodableData(t *testing.T) {
	ch := &memChannel{}
	NewNotifier(ch).Notify("dc", domain.EventMessage, make(chan int))

	assert.Empty(t, ch.sent)
}
