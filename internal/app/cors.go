package app

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/averich/dav-bridge/internal/config"
)

// corsMiddleware builds the CORS layer from configuration. DAV extension
// verbs must be listed explicitly; browsers reject them otherwise.
func corsMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:     cfg.HTTP.CORS.AllowedOrigins,
		AllowedMethods:     cfg.HTTP.CORS.AllowedMethods,
		AllowedHeaders:     cfg.HTTP.CORS.AllowedHeaders,
		ExposedHeaders:     cfg.HTTP.CORS.ExposedHeaders,
		AllowCredentials:   cfg.HTTP.CORS.AllowCredentials,
		OptionsPassthrough: cfg.HTTP.CORS.OptionsPassthrough,
		Debug:              cfg.HTTP.CORS.Debug,
	})
	return c.Handler
}
