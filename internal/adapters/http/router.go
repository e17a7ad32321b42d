package http

import (
	"context"
	"net/http"

	"github.com/dkeye/Relay/internal/adapters/signal"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/config"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/observability"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const sessionName = "RelaySessions"

// IdentityStore is what the router needs from the external store.
type IdentityStore interface {
	IdentityExists(ctx context.Context, code domain.IdentityCode) (bool, error)
	Ping(ctx context.Context) error
}

type Deps struct {
	Orch    *orch.Orchestrator
	Store   IdentityStore
	Signal  *signal.SignalWSController
	Metrics *observability.Metrics
}

type handlers struct {
	Deps
	iceServers []webrtc.ICEServer
}

// SetupRouter builds the gin engine. ctx outlives every websocket the router
// accepts; request contexts end when the upgrade handler returns.
func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))

	h := &handlers{Deps: deps}
	if len(cfg.ICEServers) > 0 {
		h.iceServers = []webrtc.ICEServer{{URLs: cfg.ICEServers}}
	}

	r.GET("/health", h.health)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := r.Group("/api")
	// Only the auth service, holding the internal token, may bind an identity.
	if cfg.InternalToken != "" {
		api.POST("/session", InternalTokenMiddleware(cfg.InternalToken), h.bindSession)
	}

	authed := api.Group("", IdentityMiddleware(cfg.TrustIdentityHeader))
	authed.DELETE("/session", h.clearSession)
	authed.GET("/ws", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("user", c.GetString(signal.IdentityKey)).Msg("ws endpoint hit")
		deps.Signal.HandleSignal(ctx, c)
	})

	callsAPI := authed.Group("/calls")
	callsAPI.POST("/start", h.startCall)
	callsAPI.POST("/offer", h.recordOffer)
	callsAPI.POST("/answer", h.recordAnswer)
	callsAPI.POST("/end", h.endCall)
	callsAPI.GET("/session", h.getSession)
	callsAPI.GET("/ice-servers", h.listICEServers)

	authed.POST("/messages", h.sendMessage)
	authed.GET("/messages", h.listMessages)
	authed.GET("/rooms", h.listRooms)

	if cfg.InternalToken != "" {
		internal := r.Group("/internal/events", InternalTokenMiddleware(cfg.InternalToken))
		internal.POST("/friends-updated", h.friendsUpdated)
		internal.POST("/group-member-joined", h.groupMemberJoined)
	} else {
		log.Info().Str("module", "adapters.http").Msg("internal token not set, session binding and integration routes disabled")
	}

	log.Info().Str("module", "adapters.http").Bool("trust_identity_header", cfg.TrustIdentityHeader).Msg("router setup")
	return r
}
