package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/angelmondragon/tourbook-backend/internal/availability"
)

// PushSource opens one websocket per subscription and joins a single tour room. It
// satisfies the watcher's push interface, so any failure here only degrades the
// watcher to polling.
type PushSource struct {
	client *Client
	dialer *websocket.Dialer
}

// PushSource returns the websocket transport for the availability watcher.
func (c *Client) PushSource() *PushSource {
	return &PushSource{client: c, dialer: websocket.DefaultDialer}
}

// WithDialer overrides the websocket dialer.
func (p *PushSource) WithDialer(dialer *websocket.Dialer) *PushSource {
	if dialer != nil {
		p.dialer = dialer
	}
	return p
}

func (p *PushSource) Subscribe(ctx context.Context, tourID uuid.UUID) (availability.PushStream, error) {
	endpoint, err := p.socketURL()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if token := p.client.bearer(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := p.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("dial availability socket: %w", err)
	}

	if err := conn.WriteJSON(availability.ClientMessage{Type: availability.MessageJoin, TourID: tourID}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("join tour room: %w", err)
	}
	return &pushStream{conn: conn, tourID: tourID}, nil
}

func (p *PushSource) socketURL() (string, error) {
	u, err := url.Parse(p.client.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + availabilitySocketPath
	return u.String(), nil
}

type pushStream struct {
	conn   *websocket.Conn
	tourID uuid.UUID

	closeOnce sync.Once
	closeErr  error
}

// Next blocks for the next availability push. Error replies from the hub end the stream.
func (s *pushStream) Next(ctx context.Context) (availability.Snapshot, error) {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	for {
		var msg availability.ServerMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return availability.Snapshot{}, ctxErr
			}
			return availability.Snapshot{}, err
		}
		switch msg.Type {
		case availability.MessageAvailability:
			if msg.Snapshot != nil {
				return *msg.Snapshot, nil
			}
		case availability.MessageError:
			return availability.Snapshot{}, errors.New("availability socket: " + msg.Message)
		}
	}
}

// Close leaves the room and closes the socket.
func (s *pushStream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.conn.WriteJSON(availability.ClientMessage{Type: availability.MessageLeave, TourID: s.tourID})
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// DialAvailability opens a push stream for one tour with the default dialer.
func (c *Client) DialAvailability(ctx context.Context, tourID uuid.UUID) (availability.PushStream, error) {
	return c.PushSource().Subscribe(ctx, tourID)
}
