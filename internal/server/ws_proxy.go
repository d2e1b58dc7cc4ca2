package server

import (
	"fmt"

	"github.com/gorilla/websocket"
)

// dialDevtools connects to the tab's DevTools endpoint and pumps everything
// Chrome sends back to the requester. The caller pumps the other direction.
func dialDevtools(cdpPort, id string, requester messageWriter) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://127.0.0.1:%s/devtools/page/%s", cdpPort, id), nil)
	if err != nil {
		return nil, err
	}
	go func() {
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if err = requester.WriteMessage(messageType, message); err != nil {
				break
			}
		}
		_ = conn.Close()
	}()
	return conn, nil
}

// messageWriter is the slice of the websocket connection the pump needs;
// both gorilla and fiber connections satisfy it.
type messageWriter interface {
	WriteMessage(messageType int, data []byte) error
}
