package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/idan157001/TestShuffleFinal/internal/middleware"
	"github.com/idan157001/TestShuffleFinal/internal/routes"
)

// NewServer builds the gin engine. maxUploadBytes bounds the multipart
// memory used per request.
func NewServer(handlers routes.Handlers, authMiddleware *middleware.AuthMiddleware, logger *zap.Logger, maxUploadBytes int64) *gin.Engine {
	g := gin.New()
	g.Use(gin.Recovery(), middleware.RequestLogger(logger))
	g.MaxMultipartMemory = maxUploadBytes + 1<<20

	routes.RegisterRoutes(&g.RouterGroup, handlers, authMiddleware)

	return g
}
