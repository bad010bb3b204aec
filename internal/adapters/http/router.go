package http

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/rtcworker/internal/app"
)

// Inspector is the read-only view of a session served by the debug surface.
type Inspector interface {
	Transceivers() []app.TransceiverView
	DataChannels() []app.DataChannelView
	TransportStats() map[string]any
}

func genRequestID() string {
	return uuid.NewString()
}

// RequestIDMiddleware tags every request so its log lines can be correlated.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = genRequestID()
		}
		c.Set("request_id", id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

func SetupRouter(session Inspector, debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if debug {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	api.GET("/session", func(c *gin.Context) {
		transceivers := session.Transceivers()
		sort.Slice(transceivers, func(i, j int) bool { return transceivers[i].TrackID < transceivers[j].TrackID })
		channels := session.DataChannels()
		sort.Slice(channels, func(i, j int) bool { return channels[i].Ref < channels[j].Ref })

		log.Debug().
			Str("module", "adapters.http").
			Str("request_id", c.GetString("request_id")).
			Int("transceivers", len(transceivers)).
			Int("channels", len(channels)).
			Msg("session snapshot")
		c.JSON(http.StatusOK, gin.H{
			"transceivers": transceivers,
			"dataChannels": channels,
		})
	})

	api.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, session.TransportStats())
	})

	log.Info().Str("module", "adapters.http").Bool("debug", debug).Msg("router setup")
	return r
}
