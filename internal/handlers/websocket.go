package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mossy-p/whiteboard-signaling/internal/middleware"
	"github.com/mossy-p/whiteboard-signaling/internal/relay"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// HandleSignaling upgrades the request and hands the connection to the hub.
// The connection joins a room with a join-room event, not through the URL.
// With requireAuth set, upgrades without a verified identity are refused.
func HandleSignaling(hub *relay.Hub, requireAuth bool, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := middleware.IdentityFrom(c)
		if requireAuth && !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Msg("failed to upgrade connection")
			return
		}

		client, err := hub.Serve(conn, identity)
		if err != nil {
			log.Warn().Err(err).Msg("connection refused")
			return
		}

		ev := log.Debug().Str("conn", client.ID())
		if identity != nil {
			ev = ev.Str("user", identity.UserID)
		}
		ev.Msg("websocket attached")
	}
}

// ICEServer mirrors the RTCIceServer dictionary browsers expect.
type ICEServer struct {
	URLs []string `json:"urls"`
}

// ICEConfig serves the ICE servers peers should use. Only STUN is offered.
func ICEConfig(stunServer string) gin.HandlerFunc {
	servers := []ICEServer{}
	if stunServer != "" {
		servers = append(servers, ICEServer{URLs: []string{stunServer}})
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": servers})
	}
}
