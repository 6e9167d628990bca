package ws

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Serve upgrades the request and runs the session until the connection
// closes. Identity comes from the surrounding auth middleware; an anonymous
// connection is still upgraded and then rejected by the state machine.
func Serve(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		docID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil || docID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
			return
		}

		var userID uint64
		var username string
		if v, ok := c.Get("user_id"); ok {
			userID = v.(uint64)
		}
		if v, ok := c.Get("user_name"); ok {
			username = v.(string)
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		engine.NewSession(conn, docID, userID, username).Run()
	}
}
