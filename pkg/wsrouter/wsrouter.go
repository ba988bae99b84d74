package wsrouter

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
)

// Message is the wire envelope. Id is optional; when a client sets it the
// handler is expected to answer with an ack frame carrying the same id.
type Message struct {
	Type    string          `json:"type"`
	Id      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type HandlerFunc func(ctx context.Context, conn *websocket.Conn, msg *Message) error

type WSRouter struct {
	routes         map[string]HandlerFunc
	unknownHandler HandlerFunc
}

func New() *WSRouter {
	return &WSRouter{routes: make(map[string]HandlerFunc)}
}

func (r *WSRouter) Handle(messageType string, handler HandlerFunc) {
	r.routes[messageType] = handler
}

// HandleUnknown sets the handler invoked for message types with no route.
func (r *WSRouter) HandleUnknown(handler HandlerFunc) {
	r.unknownHandler = handler
}

// ServeConn reads frames until the connection fails. Handler errors do not
// terminate the loop; reporting them to the peer is the handler's job.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		handler, exists := r.routes[msg.Type]
		if !exists {
			if r.unknownHandler != nil {
				r.unknownHandler(ctx, conn, &msg)
			}
			continue
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, msg.Type)
		handler(msgCtx, conn, &msg)
	}
}
