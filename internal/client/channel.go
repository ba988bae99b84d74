package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/cinemasync/server/internal/domain"
	"github.com/cinemasync/server/pkg/wsrouter"
)

// Channel is one persistent bidirectional connection to the coordinator.
// The channel returned by Recv is closed when the connection drops, whether
// by peer teardown or transport failure.
type Channel interface {
	Send(ctx context.Context, msg *wsrouter.Message) error
	Recv() <-chan wsrouter.Message
	Close() error
}

// Dialer establishes a fresh Channel. The session dials once on Start and
// again on every reconnect attempt.
type Dialer interface {
	Dial(ctx context.Context) (Channel, error)
}

// WSDialer dials the coordinator's websocket endpoint, passing the identity
// token as a query parameter the way browser clients do.
type WSDialer struct {
	BaseURL string
	RoomID  string
	Tokens  TokenProvider
}

func (d *WSDialer) Dial(ctx context.Context) (Channel, error) {
	token, err := d.Tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get identity token: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/ws/room/%s?token=%s",
		d.BaseURL, url.PathEscape(domain.CanonicalID(d.RoomID)), url.QueryEscape(token))

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, domain.NewError(domain.KindAuthentication, "identity token rejected")
		}
		return nil, fmt.Errorf("failed to dial room channel: %w", err)
	}

	return newWSChannel(conn), nil
}

type wsChannel struct {
	conn    *websocket.Conn
	recv    chan wsrouter.Message
	writeMu sync.Mutex
}

func newWSChannel(conn *websocket.Conn) *wsChannel {
	ch := &wsChannel{
		conn: conn,
		recv: make(chan wsrouter.Message, 16),
	}
	go ch.readLoop()
	return ch
}

func (ch *wsChannel) readLoop() {
	defer close(ch.recv)

	for {
		var msg wsrouter.Message
		if err := ch.conn.ReadJSON(&msg); err != nil {
			return
		}
		ch.recv <- msg
	}
}

// Send serializes writes; a gorilla connection supports one writer at a time.
func (ch *wsChannel) Send(_ context.Context, msg *wsrouter.Message) error {
	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()

	return ch.conn.WriteJSON(msg)
}

func (ch *wsChannel) Recv() <-chan wsrouter.Message {
	return ch.recv
}

func (ch *wsChannel) Close() error {
	return ch.conn.Close()
}

// RESTDirectory looks rooms up over the coordinator's HTTP directory.
type RESTDirectory struct {
	BaseURL string
	Client  *http.Client
	Tokens  TokenProvider
}

func (d *RESTDirectory) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	endpoint := fmt.Sprintf("%s/api/v1/rooms/%s", d.BaseURL, url.PathEscape(domain.CanonicalID(roomID)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Room{}, fmt.Errorf("failed to build room lookup request: %w", err)
	}

	if d.Tokens != nil {
		token, err := d.Tokens.Token(ctx)
		if err != nil {
			return domain.Room{}, fmt.Errorf("failed to get identity token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	httpClient := d.Client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return domain.Room{}, domain.NewError(domain.KindTransient, err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.Room{}, domain.NewError(domain.KindValidation, "room not found")
	case resp.StatusCode != http.StatusOK:
		return domain.Room{}, domain.NewError(domain.KindTransient, fmt.Sprintf("room lookup failed with status %d", resp.StatusCode))
	}

	var body struct {
		Room struct {
			domain.Room
			PasswordRequired bool `json:"password_required"`
		} `json:"room"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1_048_576)).Decode(&body); err != nil {
		return domain.Room{}, fmt.Errorf("failed to decode room lookup response: %w", err)
	}

	room := body.Room.Room
	room.IsPrivate = room.IsPrivate || body.Room.PasswordRequired
	return room, nil
}
