package webserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stake-plus/landvote/src/governance"
)

type Votes struct {
	ctl        *governance.Controller
	rejections RejectionObserver
}

func NewVotes(ctl *governance.Controller, rejections RejectionObserver) Votes {
	return Votes{ctl: ctl, rejections: rejections}
}

func (v Votes) Cast(c *gin.Context) {
	var req struct {
		Choice string `json:"choice" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	vote, err := v.ctl.CastVote(c.Request.Context(), c.GetString("addr"), c.Param("id"), governance.Choice(req.Choice))
	if err != nil {
		var ie *governance.IneligibleError
		if v.rejections != nil && errors.As(err, &ie) {
			v.rejections.ObserveRejection(ie.Reason)
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, vote)
}

func (v Votes) Mine(c *gin.Context) {
	vote, err := v.ctl.VoteOf(c.Request.Context(), c.GetString("addr"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vote)
}

func (v Votes) Eligibility(c *gin.Context) {
	el, err := v.ctl.Eligibility(c.Request.Context(), c.GetString("addr"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, el)
}
