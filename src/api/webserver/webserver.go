package webserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stake-plus/landvote/src/api/config"
	"github.com/stake-plus/landvote/src/api/data"
	"github.com/stake-plus/landvote/src/governance"
)

// Registry is the identity registry as the API sees it: role lookups for
// route guards plus ingestion of landowner records.
type Registry interface {
	governance.Registry
	UpsertLandowner(ctx context.Context, l data.Landowner) error
}

// RejectionObserver is told about every vote the engine refuses.
type RejectionObserver interface {
	ObserveRejection(reason governance.Reason)
}

type Deps struct {
	Controller *governance.Controller
	Registry   Registry
	Nonces     NonceStore
	Hub        *Hub
	Rejections RejectionObserver
	Metrics    http.Handler
}

func New(cfg config.Config, deps Deps) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())
	attachRoutes(g, cfg, deps)
	return g
}
