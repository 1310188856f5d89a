package ws

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/JvstinNgvyen/space-scrap/internal/game/session"
)

// NewRouter builds the HTTP surface: the websocket endpoint, a health
// check, and a read-only room lookup clients use to validate a session
// token's room before attempting a reconnect.
func NewRouter(h *Handler, coord *session.Coordinator, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/api/rooms/{roomID}", func(w http.ResponseWriter, r *http.Request) {
		info, err := coord.RoomInfo(chi.URLParam(r, "roomID"))
		if err != nil {
			if errors.Is(err, session.ErrRoomNotFound) {
				http.Error(w, "room not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(info)
	})

	r.Get("/ws", h.ServeHTTP)

	return r
}
