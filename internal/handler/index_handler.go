package handler

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"time"
)

type IndexHandler struct {
	tmpl *template.Template
	log  *slog.Logger
}

func NewIndexHandler(tmpl *template.Template, log *slog.Logger) *IndexHandler {
	return &IndexHandler{tmpl: tmpl, log: log}
}

func (h *IndexHandler) Index(w http.ResponseWriter, r *http.Request) {
	render(w, h.log, h.tmpl, "index.html", page(r, "Home"))
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports whether the database answers. db may be nil when
// the portal runs on in-memory stores.
func HealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
