package httpapi

import (
	"net/http"

	"github.com/rs/cors"

	"airsense-server/internal/config"
)

func NewServer(cfg config.Config, mux *http.ServeMux) *http.Server {
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})
	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: requestLogger(c.Handler(mux)),
	}
}
