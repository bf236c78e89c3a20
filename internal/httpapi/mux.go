package httpapi

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"airsense-server/internal/ws"
)

func NewMux(db *sql.DB, hub *ws.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws", hub.ServeWS)
	return mux
}
