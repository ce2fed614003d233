package websocket

import (
	"log"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/askelund/dagsplan/internal/auth"
)

// Handler returns an HTTP handler that upgrades the connection and runs it
// as a hub client scoped to the caller's family. It accepts both parent
// sessions and child device sessions; the appropriate auth middleware must
// run first.
func Handler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var familyID int64
		if pc, ok := auth.ParentFromContext(r.Context()); ok {
			familyID = pc.UserID
		} else if cc, ok := auth.ChildFromContext(r.Context()); ok {
			familyID = cc.ParentID
		} else {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // Tablets connect from the home LAN under varying hostnames
		})
		if err != nil {
			log.Printf("websocket: accept: %v", err)
			return
		}

		client := NewClient(hub, conn, familyID)
		client.Run(r.Context())
	}
}
