package webserver

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stake-plus/landvote/src/governance"
)

func respondError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	if status == http.StatusInternalServerError {
		log.Printf("api: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, body)
}

func errorResponse(err error) (int, gin.H) {
	var (
		ve *governance.ValidationError
		ie *governance.IneligibleError
	)
	switch {
	case errors.As(err, &ve):
		body := gin.H{"err": err.Error()}
		if ve.Field != "" {
			body["field"] = ve.Field
		}
		return http.StatusBadRequest, body
	case errors.Is(err, governance.ErrValidation):
		return http.StatusBadRequest, gin.H{"err": err.Error()}
	case errors.As(err, &ie):
		return http.StatusConflict, gin.H{"err": err.Error(), "reason": string(ie.Reason)}
	case errors.Is(err, governance.ErrIllegalTransition):
		return http.StatusConflict, gin.H{"err": err.Error(), "reason": "IllegalTransition"}
	case errors.Is(err, governance.ErrForbidden):
		return http.StatusForbidden, gin.H{"err": err.Error()}
	case errors.Is(err, governance.ErrNotFound):
		return http.StatusNotFound, gin.H{"err": err.Error()}
	default:
		return http.StatusInternalServerError, gin.H{"err": "internal error"}
	}
}
