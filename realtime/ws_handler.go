package realtime

import (
	"net/http"
	"strings"

	"github.com/carelink/dispatchd/core/logger"
)

// Handler returns the websocket endpoint. Clients pick their room with the
// room query parameter: coordinators, driver:<driver_id> or
// family:<elder_id>.
func Handler(hub *Hub, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		room := r.URL.Query().Get("room")
		if !validRoom(room) {
			http.Error(w, "unknown room", http.StatusBadRequest)
			return
		}
		if _, err := Upgrade(hub, log, w, r, room); err != nil {
			log.Warnf("websocket upgrade failed: %v", err)
		}
	})
}

func validRoom(room string) bool {
	if room == RoomCoordinators {
		return true
	}
	for _, prefix := range []string{"driver:", "family:"} {
		if strings.HasPrefix(room, prefix) && len(room) > len(prefix) {
			return true
		}
	}
	return false
}
