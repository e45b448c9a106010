package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"alankar-sync/internal/logging"
)

const (
	handshakeTimeout = 10 * time.Second
	longPollWait     = 25 * time.Second
)

// transport is one established connection to the realtime endpoint. receive
// blocks until the next server event or a connection-level error.
type transport interface {
	receive() (Event, error)
	ping() error
	close() error
	kind() string
}

// dialTransport negotiates the connection: websocket first, HTTP long-poll
// when the websocket handshake is rejected.
func dialTransport(ctx context.Context, wsURL, pollURL, token string, httpClient *http.Client, logger *logging.Logger) (transport, error) {
	ws, wsErr := dialWebSocket(ctx, wsURL, token)
	if wsErr == nil {
		return ws, nil
	}
	logger.Debug("websocket dial failed, trying long-poll fallback", logging.Field("error", wsErr))

	poll, pollErr := dialLongPoll(ctx, pollURL, token, httpClient, logger)
	if pollErr != nil {
		return nil, fmt.Errorf("websocket: %v; long-poll fallback: %w", wsErr, pollErr)
	}
	return poll, nil
}

type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// dialWebSocket carries the token both as a query parameter and as a bearer
// header; the server may inspect either during the upgrade.
func dialWebSocket(ctx context.Context, rawURL, token string) (*wsTransport, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	query := target.Query()
	query.Set("token", token)
	target.RawQuery = query.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, target.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake rejected (status %s): %w", resp.Status, err)
		}
		return nil, err
	}
	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) receive() (Event, error) {
	for {
		messageType, message, err := t.conn.ReadMessage()
		if err != nil {
			return Event{}, err
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		event := Event{}
		if unmarshalErr := json.Unmarshal(message, &event); unmarshalErr != nil {
			return Event{}, fmt.Errorf("invalid event envelope: %w", unmarshalErr)
		}
		if event.Name == "" {
			continue
		}
		return event, nil
	}
}

func (t *wsTransport) ping() error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(Event{Name: eventPing})
}

func (t *wsTransport) close() error {
	t.writeMu.Lock()
	_ = t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()
	return t.conn.Close()
}

func (t *wsTransport) kind() string { return "websocket" }

type pollBatch struct {
	Cursor string  `json:"cursor"`
	Events []Event `json:"events"`
}

type pollTransport struct {
	http   *http.Client
	url    string
	token  string
	logger *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	cursor string
	queue  []Event
}

// dialLongPoll performs one immediate poll to verify the endpoint accepts
// the token before the transport is considered established.
func dialLongPoll(ctx context.Context, rawURL, token string, httpClient *http.Client, logger *logging.Logger) (*pollTransport, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	// Long-poll requests outlive any whole-request timeout on the shared
	// client; the per-request wait bound is enforced server-side.
	streamHTTP := *httpClient
	streamHTTP.Timeout = 0

	transportCtx, cancel := context.WithCancel(ctx)
	t := &pollTransport{
		http:   &streamHTTP,
		url:    rawURL,
		token:  token,
		logger: logger,
		ctx:    transportCtx,
		cancel: cancel,
	}
	if err := t.poll(0); err != nil {
		cancel()
		return nil, err
	}
	return t, nil
}

func (t *pollTransport) receive() (Event, error) {
	for {
		if len(t.queue) > 0 {
			event := t.queue[0]
			t.queue = t.queue[1:]
			return event, nil
		}
		if err := t.poll(longPollWait); err != nil {
			return Event{}, err
		}
	}
}

func (t *pollTransport) poll(wait time.Duration) error {
	target, err := url.Parse(t.url)
	if err != nil {
		return err
	}
	query := target.Query()
	query.Set("token", t.token)
	query.Set("wait", fmt.Sprintf("%d", int(wait.Seconds())))
	if t.cursor != "" {
		query.Set("cursor", t.cursor)
	}
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(t.ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+t.token)

	resp, err := t.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("poll request failed: %s", resp.Status)
	}

	batch := pollBatch{}
	if unmarshalErr := json.Unmarshal(data, &batch); unmarshalErr != nil {
		return fmt.Errorf("invalid poll batch: %w", unmarshalErr)
	}
	if batch.Cursor != "" {
		t.cursor = batch.Cursor
	}
	t.queue = append(t.queue, batch.Events...)
	return nil
}

// ping is satisfied by the poll cycle itself; there is nothing to send.
func (t *pollTransport) ping() error { return nil }

func (t *pollTransport) close() error {
	t.cancel()
	return nil
}

func (t *pollTransport) kind() string { return "long-poll" }
