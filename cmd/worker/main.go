package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/rtcworker/internal/adapters/channel"
	router "github.com/dkeye/rtcworker/internal/adapters/http"
	"github.com/dkeye/rtcworker/internal/adapters/rtc"
	signaling "github.com/dkeye/rtcworker/internal/adapters/signal"
	"github.com/dkeye/rtcworker/internal/app"
	"github.com/dkeye/rtcworker/internal/app/media"
	"github.com/dkeye/rtcworker/internal/config"
	"github.com/dkeye/rtcworker/internal/core"
	"github.com/dkeye/rtcworker/internal/domain"
)

// exitInvalidConfig is the status the host expects for a rejected configuration.
const exitInvalidConfig = 42

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Logs go to stderr only; the channel may own stdout-adjacent fds.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Error().Err(err).Str("module", "worker").Msg("failed to load config")
		os.Exit(exitInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Str("module", "worker").Msg("invalid configuration")
		os.Exit(exitInvalidConfig)
	}
	level, _ := cfg.Level()
	zerolog.SetGlobalLevel(level)

	rtcCfg, _ := cfg.WebRTC()
	api, err := rtc.NewAPI(rtc.NewLoggerFactory(log.Logger))
	if err != nil {
		log.Error().Err(err).Str("module", "worker").Msg("failed to build engine API")
		os.Exit(exitInvalidConfig)
	}
	factory := rtc.NewFactory(api, rtcCfg)
	engine, err := factory()
	if err != nil {
		log.Error().Err(err).Str("module", "worker").Msg("invalid RTCConfiguration")
		os.Exit(exitInvalidConfig)
	}

	if err := run(ctx, cfg, engine, factory); err != nil {
		log.Error().Err(err).Str("module", "worker").Msg("worker failed")
		os.Exit(1)
	}
	log.Info().Str("module", "worker").Msg("worker exited gracefully")
}

func run(ctx context.Context, cfg *config.Config, engine core.Engine, factory core.EngineFactory) error {
	ch, err := openChannel(ctx, cfg)
	if err != nil {
		_ = engine.Close()
		return err
	}

	notifier := signaling.NewNotifier(ch)
	sources := media.NewRegistry(media.NewPipelines(cfg.Media.FFmpegPath, cfg.Media.FFprobePath))
	session := app.NewSession(engine, factory, sources, notifier, app.Options{
		PID:             os.Getpid(),
		MonitorInterval: cfg.Monitor.Interval,
	})
	dispatcher := signaling.NewDispatcher(ch, session)

	notifier.Notify(os.Getpid(), domain.EventRunning, nil)
	log.Info().Str("module", "worker").Int("pid", os.Getpid()).Str("channel", cfg.Channel.Mode).Msg("worker running")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := dispatcher.Run(gctx)
		if err != nil {
			return err
		}
		// A clean channel EOF ends the worker, HTTP surface included.
		return errChannelClosed
	})

	if cfg.HTTP.Addr != "" {
		srv := &http.Server{
			Addr:    cfg.HTTP.Addr,
			Handler: router.SetupRouter(session, cfg.LogLevel == "debug"),
		}
		g.Go(func() error {
			log.Info().Str("module", "worker").Str("addr", cfg.HTTP.Addr).Msg("debug http started")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Str("module", "worker").Msg("debug http forced to shutdown")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, errChannelClosed) {
		return err
	}
	return nil
}

var errChannelClosed = errors.New("channel closed")

func openChannel(ctx context.Context, cfg *config.Config) (core.Channel, error) {
	switch cfg.Channel.Mode {
	case config.ModeWebSocket:
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		ws, err := channel.DialWebSocket(dialCtx, cfg.Channel.URL, int64(cfg.Channel.MaxMessageSize))
		if err != nil {
			return nil, err
		}
		return ws, nil
	default:
		p, err := channel.OpenPipe(cfg.Channel.ReadFD, cfg.Channel.WriteFD, cfg.Channel.MaxMessageSize)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}
