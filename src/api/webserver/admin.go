package webserver

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stake-plus/landvote/src/api/data"
	"github.com/stake-plus/landvote/src/governance"
)

// Admin accepts registry feed batches from validators.
type Admin struct {
	ctl      *governance.Controller
	registry Registry
}

func NewAdmin(ctl *governance.Controller, registry Registry) Admin {
	return Admin{ctl: ctl, registry: registry}
}

// Ingest upserts landowners first, then parcels. Records are applied one by
// one; the first invalid record stops the batch and is reported with its index.
func (a Admin) Ingest(c *gin.Context) {
	var req struct {
		Landowners []data.Landowner     `json:"landowners"`
		Parcels    []governance.Parcel `json:"parcels"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	ctx := c.Request.Context()
	for i, l := range req.Landowners {
		if err := a.registry.UpsertLandowner(ctx, l); err != nil {
			status, body := errorResponse(err)
			body["landowner"] = i
			c.JSON(status, body)
			return
		}
	}
	for i, p := range req.Parcels {
		if _, err := a.ctl.IngestParcel(ctx, p); err != nil {
			status, body := errorResponse(err)
			body["parcel"] = i
			c.JSON(status, body)
			return
		}
	}

	log.Printf("admin: %s ingested %d landowners, %d parcels",
		c.GetString("addr"), len(req.Landowners), len(req.Parcels))
	c.JSON(http.StatusOK, gin.H{"landowners": len(req.Landowners), "parcels": len(req.Parcels)})
}
