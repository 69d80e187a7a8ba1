package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/marginalia/internal/auth"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// TokenTTL is the lifetime of tokens issued by the relay.
const TokenTTL = 24 * time.Hour

// AuthHandler issues development access tokens. It is the only public
// endpoint besides the health check; callers prove they may mint tokens
// with the relay passphrase.
type AuthHandler struct {
	passphraseHash []byte
	jwtSecret      string
	logger         *zap.Logger
}

// NewAuthHandler returns a handler that checks passphrases against the
// bcrypt hash passphraseHash. An empty hash disables token issuing.
func NewAuthHandler(passphraseHash, jwtSecret string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		passphraseHash: []byte(passphraseHash),
		jwtSecret:      jwtSecret,
		logger:         logger,
	}
}

type tokenRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	Passphrase string `json:"passphrase" binding:"required"`
}

// authResponse is sent back by Token. Clients pass the token as
// "Authorization: Bearer <token>" or in the access_token query parameter.
type authResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Token handles POST /v1/auth/token
func (h *AuthHandler) Token(c *gin.Context) {
	if len(h.passphraseHash) == 0 {
		c.JSON(http.StatusForbidden, gin.H{"error": "token issuing is disabled"})
		return
	}

	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := bcrypt.CompareHashAndPassword(h.passphraseHash, []byte(req.Passphrase)); err != nil {
		h.logger.Warn("rejected token request", zap.String("user_id", req.UserID))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid passphrase"})
		return
	}

	token, err := auth.GenerateToken(req.UserID, h.jwtSecret, TokenTTL)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}

	c.JSON(http.StatusCreated, authResponse{Token: token, ExpiresAt: time.Now().Add(TokenTTL)})
}

// HashPassphrase returns the bcrypt hash of passphrase for use as the
// relay's RELAY_PASSPHRASE_HASH.
func HashPassphrase(passphrase string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
