package middleware

import "github.com/gin-gonic/gin"

const (
	userIDKey = "user_id"
	emailKey  = "email"
	nameKey   = "name"
)

// GetUserID extracts the authenticated user ID from the context
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// GetUserEmail extracts the authenticated user email from the context
func GetUserEmail(c *gin.Context) string {
	return c.GetString(emailKey)
}

func GetUserName(c *gin.Context) string {
	return c.GetString(nameKey)
}
