package lib

import (
	"fmt"
	"log"
	"os"
	"tqs/src/types"

	"github.com/golang-jwt/jwt/v4"
	"github.com/zishang520/socket.io/v2/socket"
)

var socketServer *socket.Server
var socketJwtKey = []byte(os.Getenv("JWT_SECRET"))

// GetSocketServer returns the shared socket.io server. Clients authenticate
// with a bearer token in the handshake auth payload and are placed in a
// room keyed by their user id; all pushes target that room.
func GetSocketServer() *socket.Server {
	if socketServer != nil {
		return socketServer
	}
	wss := socket.NewServer(nil, nil)
	wss.Of("/", nil).On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		auth, ok := client.Handshake().Auth.(map[string]any)
		if !ok {
			log.Printf("[socket] client %s sent no auth payload\n", string(client.Id()))
			client.Disconnect(true)
			return
		}
		rawToken, _ := auth["token"].(string)
		claims := &types.Claims{}
		tkn, err := jwt.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (any, error) {
			return socketJwtKey, nil
		})
		if err != nil || !tkn.Valid {
			log.Printf("[socket] rejecting client %s: invalid token\n", string(client.Id()))
			client.Disconnect(true)
			return
		}
		room := UserRoom(claims.Subject)
		client.Join(socket.Room(room))
		log.Printf("[socket] client %s joined room %s\n", string(client.Id()), room)
	})
	socketServer = wss
	return wss
}

// NewSocketServer Replace socket server instance with custom implementation
func NewSocketServer(s *socket.Server) *socket.Server {
	socketServer = s
	return socketServer
}

func UserRoom(userId string) string {
	return fmt.Sprintf("user:%s", userId)
}

// NotifyUser pushes an event to every connection in the user's room. Fire
// and forget; delivery is a hint, the queue/me endpoint is authoritative.
func NotifyUser(userId string, event string, payload any) {
	wss := GetSocketServer()
	if wss == nil {
		return
	}
	wss.To(socket.Room(UserRoom(userId))).Emit(event, payload)
}
