package comfy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const channelCloseWait = time.Second

// ErrChannelClosed is returned by Receive once the worker ends the stream.
var ErrChannelClosed = errors.New("notification channel closed")

type MessageType int

const (
	TextMessage MessageType = iota + 1
	BinaryMessage
)

// Message is one frame received from the worker.
type Message struct {
	Type MessageType
	Data []byte
}

// Channel is a message-oriented push connection to the worker.
type Channel interface {
	// Receive blocks until the next message arrives, the channel fails or
	// ctx is done.
	Receive(ctx context.Context) (Message, error)
	Close() error
}

// Connect opens the worker's websocket notification stream for clientID.
func (c *Client) Connect(ctx context.Context, clientID string) (Channel, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("connect: client id is required")
	}
	u := *c.wsURL
	u.Path = c.wsURL.Path + "/ws"
	u.RawQuery = url.Values{"clientId": []string{clientID}}.Encode()

	var conn *websocket.Conn
	err := c.retry.do(ctx, "connect", func() error {
		ws, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
				return classify(&StatusError{Op: "connect", StatusCode: resp.StatusCode})
			}
			return fmt.Errorf("connect: %w", err)
		}
		conn = ws
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &wsChannel{conn: conn}, nil
}

type wsChannel struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

func (ch *wsChannel) Receive(ctx context.Context) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	// Unblock ReadMessage when ctx ends; the read deadline is not reset because
	// a timed out websocket cannot be read again anyway.
	stop := context.AfterFunc(ctx, func() {
		_ = ch.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		kind, data, err := ch.conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Message{}, ctxErr
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, io.EOF) {
				return Message{}, fmt.Errorf("%w: %v", ErrChannelClosed, err)
			}
			return Message{}, err
		}
		switch kind {
		case websocket.TextMessage:
			return Message{Type: TextMessage, Data: data}, nil
		case websocket.BinaryMessage:
			return Message{Type: BinaryMessage, Data: data}, nil
		}
	}
}

// Close sends a close frame and releases the connection. Repeated calls
// return the first result.
func (ch *wsChannel) Close() error {
	ch.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = ch.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(channelCloseWait))
		ch.closeErr = ch.conn.Close()
	})
	return ch.closeErr
}
