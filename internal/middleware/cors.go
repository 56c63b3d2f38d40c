package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/temcen/shelfrank/internal/config"
)

func CORS(cfg *config.Config) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowOrigins: cfg.Security.CORS.AllowedOrigins,
		AllowMethods: cfg.Security.CORS.AllowedMethods,
		AllowHeaders: cfg.Security.CORS.AllowedHeaders,
	}

	return cors.New(corsConfig)
}
