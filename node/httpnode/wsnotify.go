package httpnode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// TipNotifier is a best-effort supplementary channel: if the daemon
// exposes a websocket endpoint that pushes {height, hash} tip-change
// events, subscribing to it lets WalletSynchronizer's downloader wake
// immediately instead of waiting out its "caught up to tip" poll sleep.
// It is never a
// correctness dependency: Node.GetBlocks remains pollable on its own, and
// a TipNotifier that fails to connect or disconnects mid-stream simply
// leaves the synchronizer on its ordinary polling cadence.
type TipNotifier struct {
	url string

	mu       sync.Mutex
	conn     *websocket.Conn
	notifyCh chan struct{}
}

// NewTipNotifier derives the websocket URL from an HTTP(S) base URL
// (http -> ws, https -> wss) and a fixed path.
func NewTipNotifier(httpBaseURL string) (*TipNotifier, error) {
	u, err := url.Parse(httpBaseURL)
	if err != nil {
		return nil, fmt.Errorf("httpnode: parsing base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("httpnode: unsupported scheme %q for tip notifications", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/tip"
	return &TipNotifier{url: u.String(), notifyCh: make(chan struct{}, 1)}, nil
}

type tipEvent struct {
	Height uint64 `json:"height"`
	Hash   string `json:"hash"`
}

// Run connects and forwards a signal on Notifications() whenever the
// daemon reports a new tip, until ctx is cancelled. Connection failures
// are retried with a fixed backoff; Run never returns an error to the
// caller, since a missing notifier is degraded service, not a fault.
func (t *TipNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, nil)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		t.mu.Lock()
		t.conn = conn
		t.mu.Unlock()

		t.readLoop(ctx, conn)

		conn.Close()
		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (t *TipNotifier) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ev tipEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		select {
		case t.notifyCh <- struct{}{}:
		default:
		}
	}
}

// Notifications returns the channel the downloader should select on
// alongside its own sleep timer; a received value means "don't bother
// sleeping out the rest of the tip-reached interval, poll now".
func (t *TipNotifier) Notifications() <-chan struct{} {
	return t.notifyCh
}

// Close releases the active connection, if any.
func (t *TipNotifier) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
