// Package signal runs the request/notification loop between the host
// channel and the session.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dkeye/rtcworker/internal/core"
	"github.com/dkeye/rtcworker/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Handler is the session surface driven by the dispatcher.
type Handler interface {
	HandleRequest(ctx context.Context, req domain.Request) (any, error)
	HandleNotification(ctx context.Context, n domain.Notification) error
	Close()
}

type Dispatcher struct {
	ch      core.Channel
	handler Handler
}

func NewDispatcher(ch core.Channel, handler Handler) *Dispatcher {
	return &Dispatcher{ch: ch, handler: handler}
}

// Run handles frames one at a time until the channel fails, then closes the
// handler and the channel. EOF and ctx cancellation are a clean stop; any
// other read error is returned as domain.ErrTransport.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.shutdown()

	for {
		frame, err := d.ch.Receive(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				log.Info().Str("module", "signal").Err(err).Msg("channel closed, shutting down")
				return nil
			}
			log.Error().Err(err).Str("module", "signal").Msg("channel read failure, shutting down")
			return fmt.Errorf("%w: %w", domain.ErrTransport, err)
		}
		if len(frame) == 0 {
			continue
		}
		d.handleFrame(ctx, frame)
	}
}

func (d *Dispatcher) shutdown() {
	d.handler.Close()
	if err := d.ch.Close(); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("channel close error")
	}
	log.Info().Str("module", "signal").Msg("dispatcher stopped")
}

func (d *Dispatcher) handleFrame(ctx context.Context, frame core.Frame) {
	env, err := domain.DecodeEnvelope(frame)
	if err != nil {
		if env.ID == nil {
			log.Warn().Err(err).Str("module", "signal").Int("size", len(frame)).Msg("bad message, frame dropped")
			return
		}
		// Anything carrying an id is answered, even when it cannot be run.
		logFailure(err).Int("id", *env.ID).Str("method", string(env.Method)).Msg("malformed request")
		d.reply(ctx, domain.Reply{ID: *env.ID, Reason: err.Error()})
		return
	}

	switch {
	case env.Method != "":
		if env.ID == nil {
			log.Warn().Str("module", "signal").Str("method", string(env.Method)).Msg("request without id, dropped")
			return
		}
		d.handleRequest(ctx, domain.Request{
			ID:       *env.ID,
			Method:   env.Method,
			Data:     env.Data,
			Internal: env.Internal,
		})
	case env.Event != "":
		d.handleNotification(ctx, domain.Notification{
			Event:    env.Event,
			Data:     env.Data,
			Internal: env.Internal,
		})
	case env.ID != nil:
		err := fmt.Errorf("%w: message has neither method nor event", domain.ErrValidation)
		logFailure(err).Int("id", *env.ID).Msg("malformed request")
		d.reply(ctx, domain.Reply{ID: *env.ID, Reason: err.Error()})
	default:
		log.Warn().Str("module", "signal").Msg("message has neither method nor event, dropped")
	}
}

func (d *Dispatcher) handleRequest(ctx context.Context, req domain.Request) {
	data, err := d.invoke(ctx, req)
	if err != nil {
		logFailure(err).Int("id", req.ID).Str("method", string(req.Method)).Msg("request failed")
		d.reply(ctx, domain.Reply{ID: req.ID, Reason: err.Error()})
		return
	}
	log.Debug().Str("module", "signal").Int("id", req.ID).Str("method", string(req.Method)).Msg("request done")
	d.reply(ctx, domain.Reply{ID: req.ID, OK: true, Data: data})
}

// invoke keeps a panicking handler from taking the loop down.
func (d *Dispatcher) invoke(ctx context.Context, req domain.Request) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.EngineFailure(fmt.Errorf("%s: panic: %v", req.Method, r))
		}
	}()
	return d.handler.HandleRequest(ctx, req)
}

func (d *Dispatcher) handleNotification(ctx context.Context, n domain.Notification) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = domain.EngineFailure(fmt.Errorf("%s: panic: %v", n.Event, r))
			}
		}()
		return d.handler.HandleNotification(ctx, n)
	}()
	if err != nil {
		logFailure(err).Str("event", string(n.Event)).Str("channel_ref", n.Internal.Ref()).Msg("notification failed")
	}
}

func (d *Dispatcher) reply(ctx context.Context, r domain.Reply) {
	b, err := json.Marshal(r)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Int("id", r.ID).Msg("reply marshal")
		b, _ = json.Marshal(domain.Reply{ID: r.ID, Reason: err.Error()})
	}
	if err := d.ch.Send(ctx, b); err != nil {
		log.Error().Err(err).Str("module", "signal").Int("id", r.ID).Msg("reply send")
	}
}

// logFailure picks the level for a per-message failure. Engine failures
// carry a stack.
func logFailure(err error) *zerolog.Event {
	if errors.Is(err, domain.ErrEngine) {
		return log.Error().Stack().Err(err).Str("module", "signal")
	}
	return log.Warn().Err(err).Str("module", "signal")
}
