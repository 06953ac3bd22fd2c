package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stake-plus/landvote/src/governance"
)

type Parcels struct{ ctl *governance.Controller }

func NewParcels(ctl *governance.Controller) Parcels { return Parcels{ctl: ctl} }

func (p Parcels) Mine(c *gin.Context) {
	parcels, err := p.ctl.ParcelsOwnedBy(c.Request.Context(), c.GetString("addr"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"parcels": parcels})
}

func (p Parcels) InRegion(c *gin.Context) {
	parcels, err := p.ctl.ParcelsInRegion(c.Request.Context(), c.Param("region"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"parcels": parcels})
}
