package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/idan157001/TestShuffleFinal/internal/middleware"
)

type AuthHandler struct {
	cookieSecure bool
}

func NewAuthHandler(cookieSecure bool) *AuthHandler {
	return &AuthHandler{cookieSecure: cookieSecure}
}

// Me returns the identity carried by the session token.
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id": middleware.GetUserID(c),
		"email":   middleware.GetUserEmail(c),
		"name":    middleware.GetUserName(c),
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", h.cookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
