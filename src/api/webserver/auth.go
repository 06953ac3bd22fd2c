package webserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stake-plus/landvote/src/api/data"
)

// NonceStore holds one outstanding login challenge per address.
type NonceStore interface {
	Set(ctx context.Context, addr, nonce string) error
	// Take returns and removes the nonce; a missing or expired nonce is an error.
	Take(ctx context.Context, addr string) (string, error)
}

type RedisNonces struct{ rdb *redis.Client }

func NewRedisNonces(rdb *redis.Client) RedisNonces { return RedisNonces{rdb: rdb} }

func (n RedisNonces) Set(ctx context.Context, addr, nonce string) error {
	return data.SetNonce(ctx, n.rdb, addr, nonce)
}

func (n RedisNonces) Take(ctx context.Context, addr string) (string, error) {
	return data.GetAndDelNonce(ctx, n.rdb, addr)
}

type Auth struct {
	nonces    NonceStore
	jwtSecret []byte
}

func NewAuth(nonces NonceStore, secret []byte) Auth {
	return Auth{nonces: nonces, jwtSecret: secret}
}

func (a Auth) Challenge(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if _, err := decodeSS58(req.Address); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	nonce := uuid.NewString()
	if err := a.nonces.Set(c.Request.Context(), req.Address, nonce); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

func (a Auth) Verify(c *gin.Context) {
	var req struct {
		Address   string `json:"address"   binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	nonce, err := a.nonces.Take(c.Request.Context(), req.Address)
	if err != nil || nonce == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "challenge expired"})
		return
	}
	if err := verifySignature(req.Address, req.Signature, nonce); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "bad signature"})
		return
	}
	token, err := issueJWT(req.Address, a.jwtSecret)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
