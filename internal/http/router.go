package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nurpe/freight-quotes/internal/auth"
	"github.com/nurpe/freight-quotes/internal/config"
	"github.com/nurpe/freight-quotes/internal/http/middleware"
)

func NewRouter(handler *Handler, authMiddleware gin.HandlerFunc, cfg config.HTTPConfig, environment string, log zerolog.Logger) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logging(log))
	router.Use(cors.New(corsConfig(cfg.CORSAllowOrigins)))
	if cfg.RateLimitRPS > 0 {
		router.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}

	handler.Register(router, authMiddleware)
	return router
}

func corsConfig(origins []string) cors.Config {
	conf := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Authorization",
			auth.HeaderUsername,
			auth.HeaderName,
			auth.HeaderIsAdmin,
			auth.HeaderSessionToken,
		},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		conf.AllowAllOrigins = true
	} else {
		conf.AllowOrigins = origins
	}
	return conf
}
