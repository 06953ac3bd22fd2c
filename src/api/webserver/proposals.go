package webserver

import (
	"html"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/stake-plus/landvote/src/governance"
)

type Proposals struct {
	ctl      *governance.Controller
	plain    *bluemonday.Policy
	markdown *bluemonday.Policy
}

func NewProposals(ctl *governance.Controller) Proposals {
	markdown := bluemonday.StrictPolicy()
	markdown.AllowElements("p", "br", "strong", "em", "code", "pre", "blockquote")
	markdown.AllowElements("ul", "ol", "li")
	markdown.AllowElements("h1", "h2", "h3", "h4", "h5", "h6")
	markdown.AllowAttrs("href").OnElements("a")
	markdown.RequireParseableURLs(true)
	markdown.AddTargetBlankToFullyQualifiedLinks(true)
	markdown.RequireNoFollowOnLinks(true)

	return Proposals{ctl: ctl, plain: bluemonday.StrictPolicy(), markdown: markdown}
}

func (p Proposals) Catalog(c *gin.Context) {
	c.JSON(http.StatusOK, p.ctl.Catalog())
}

func (p Proposals) List(c *gin.Context) {
	list, err := p.ctl.ListProposals(c.Request.Context(), governance.Filter{
		Status: governance.Status(c.Query("status")),
		Region: c.Query("region"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": list})
}

func (p Proposals) Get(c *gin.Context) {
	prop, err := p.ctl.GetProposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prop)
}

func (p Proposals) Tally(c *gin.Context) {
	snap, err := p.ctl.Tally(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (p Proposals) ParcelMap(c *gin.Context) {
	parcels, err := p.ctl.ParcelMap(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"parcels": parcels})
}

func (p Proposals) Create(c *gin.Context) {
	var req struct {
		Title       string    `json:"title"`
		Description string    `json:"description"`
		Category    string    `json:"category"`
		Region      string    `json:"region"`
		Deadline    time.Time `json:"deadline"`
		RoleGate    string    `json:"roleGate"`
		Quorum      int       `json:"quorum"`
		Submit      bool      `json:"submit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	ctx := c.Request.Context()
	actor := c.GetString("addr")
	prop, err := p.ctl.CreateProposal(ctx, actor, governance.Draft{
		Title:       plainText(p.plain, req.Title),
		Description: strings.TrimSpace(p.markdown.Sanitize(req.Description)),
		Category:    req.Category,
		Region:      req.Region,
		Deadline:    req.Deadline,
		RoleGate:    governance.Role(strings.ToLower(strings.TrimSpace(req.RoleGate))),
		Quorum:      req.Quorum,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if !req.Submit {
		c.JSON(http.StatusCreated, prop)
		return
	}
	submitted, err := p.ctl.SubmitProposal(ctx, actor, prop.ID)
	if err != nil {
		// The draft is stored either way; report the failed submit alongside it.
		status, body := errorResponse(err)
		if status == http.StatusInternalServerError {
			log.Printf("api: submit %s after create: %v", prop.ID, err)
		}
		body["status"] = status
		c.JSON(http.StatusCreated, createdProposal{Proposal: prop, SubmitError: body})
		return
	}
	c.JSON(http.StatusCreated, createdProposal{Proposal: submitted})
}

type createdProposal struct {
	governance.Proposal
	SubmitError gin.H `json:"submitError,omitempty"`
}

// plainText strips all markup and returns unescaped text. Stripping repeats
// until entity-encoded tags no longer decode into new markup.
func plainText(policy *bluemonday.Policy, s string) string {
	out := html.UnescapeString(policy.Sanitize(s))
	for i := 0; i < 3 && strings.ContainsAny(out, "<>"); i++ {
		next := html.UnescapeString(policy.Sanitize(out))
		if next == out {
			break
		}
		out = next
	}
	return strings.TrimSpace(out)
}

func (p Proposals) Submit(c *gin.Context) {
	prop, err := p.ctl.SubmitProposal(c.Request.Context(), c.GetString("addr"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prop)
}

func (p Proposals) Approve(c *gin.Context) {
	prop, err := p.ctl.ApproveProposal(c.Request.Context(), c.GetString("addr"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prop)
}

func (p Proposals) Advance(c *gin.Context) {
	prop, err := p.ctl.AdvanceProposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prop)
}

func (p Proposals) Discard(c *gin.Context) {
	if err := p.ctl.DiscardProposal(c.Request.Context(), c.GetString("addr"), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
