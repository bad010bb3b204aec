package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/rtcworker/internal/core"
	"github.com/dkeye/rtcworker/internal/domain"
	"github.com/rs/zerolog/log"
)

// Notifier sends fire-and-forget notifications over a channel.
type Notifier struct {
	ch core.Channel
}

func NewNotifier(ch core.Channel) *Notifier {
	return &Notifier{ch: ch}
}

func (n *Notifier) Notify(target any, event domain.Event, data any) {
	b, err := json.Marshal(domain.Outbound{Target: target, Event: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("event", string(event)).Msg("notification marshal")
		return
	}
	if err := n.ch.Send(context.Background(), b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("event", string(event)).Msg("notification send")
	}
}
