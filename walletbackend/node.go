package walletbackend

import (
	"fmt"

	"github.com/kryptokrona/kryptokrona-sub002/node"
	"github.com/kryptokrona/kryptokrona-sub002/node/httpnode"
)

// DialNode builds the HTTP/JSON-RPC node client from the configured
// daemon address, plus a best-effort websocket tip notifier. The
// notifier may be nil: not every node supports the push channel, and
// polling alone is always sufficient.
func DialNode(cfg Config) (node.Node, *httpnode.TipNotifier) {
	base := fmt.Sprintf("http://%s:%d", cfg.DaemonHost, cfg.DaemonPort)
	client := httpnode.New(base, nil)
	notifier, err := httpnode.NewTipNotifier(base)
	if err != nil {
		return client, nil
	}
	return client, notifier
}
