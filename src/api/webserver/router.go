package webserver

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stake-plus/landvote/src/api/config"
	"github.com/stake-plus/landvote/src/governance"
)

func attachRoutes(r *gin.Engine, cfg config.Config, deps Deps) {
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	secret := []byte(cfg.JWTSecret)
	limiter := NewRateLimiter(cfg.RateLimit, time.Minute)

	authH := NewAuth(deps.Nonces, secret)
	propH := NewProposals(deps.Controller)
	voteH := NewVotes(deps.Controller, deps.Rejections)
	parcelH := NewParcels(deps.Controller)
	adminH := NewAdmin(deps.Controller, deps.Registry)
	validator := RequireRole(deps.Registry, governance.RoleValidator)

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	v1 := r.Group("/v1")
	{
		auth := v1.Group("/auth", RateLimitMiddleware(limiter))
		auth.POST("/challenge", authH.Challenge)
		auth.POST("/verify", authH.Verify)

		v1.GET("/catalog", propH.Catalog)
		v1.GET("/proposals", propH.List)
		v1.GET("/proposals/:id", propH.Get)
		v1.GET("/proposals/:id/tally", propH.Tally)
		v1.GET("/proposals/:id/parcels", propH.ParcelMap)
		v1.GET("/regions/:region/parcels", parcelH.InRegion)
		if deps.Hub != nil {
			v1.GET("/events", deps.Hub.Serve)
		}

		secured := v1.Group("", JWTMiddleware(secret), RateLimitMiddleware(limiter))
		secured.POST("/proposals", propH.Create)
		secured.POST("/proposals/:id/submit", propH.Submit)
		secured.POST("/proposals/:id/approve", validator, propH.Approve)
		secured.POST("/proposals/:id/advance", validator, propH.Advance)
		secured.DELETE("/proposals/:id", propH.Discard)
		secured.GET("/proposals/:id/eligibility", voteH.Eligibility)
		secured.POST("/proposals/:id/votes", voteH.Cast)
		secured.GET("/proposals/:id/votes/mine", voteH.Mine)
		secured.GET("/parcels/mine", parcelH.Mine)

		admin := secured.Group("/admin", validator)
		admin.POST("/parcels", adminH.Ingest)
	}
}

func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cc.AllowAllOrigins = true
		cc.AllowCredentials = false
		return cc
	}
	cc.AllowOrigins = origins
	return cc
}
