package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/homegate/homegate/internal/guard"
	"github.com/homegate/homegate/internal/metrics"
	"github.com/homegate/homegate/internal/netutil"
	"github.com/homegate/homegate/internal/routing"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// upgradeRouter matches websocket handshakes to upstreams by Host header
// and relays frames in both directions. It runs ahead of the HTTP mux
// and shares only the admission guard with the normal pipeline; no
// service handler or auth middleware sees upgrade traffic.
type upgradeRouter struct {
	hosts map[string]string
	guard *guard.Guard
	log   *slog.Logger
}

func newUpgradeRouter(table *routing.Table, g *guard.Guard, logger *slog.Logger) *upgradeRouter {
	return &upgradeRouter{
		hosts: table.WebSocketHosts(),
		guard: g,
		log:   logger,
	}
}

func (u *upgradeRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The blocklist applies to upgrades exactly as to plain connections.
	if !u.guard.Admit(r.RemoteAddr) {
		destroyConnection(w)
		return
	}
	u.guard.Observe(r.RemoteAddr, r.URL.RequestURI(), r.Host)

	host := netutil.NormalizeHost(r.Host)
	upstream, ok := u.hosts[host]
	if !ok {
		// The connection is not a usable HTTP response context once the
		// client committed to an upgrade; answer with a bare status line.
		writeRawStatus(w, "HTTP/1.1 404 Not Found\r\n\r\n")
		return
	}

	target, err := websocketURL(upstream, r.URL)
	if err != nil {
		u.log.Error("bad websocket upstream", "host", host, "upstream", upstream, "err", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	// Dial the upstream before upgrading the client so dial failures can
	// still produce a regular HTTP error.
	header := upstreamHandshakeHeader(r)
	back, resp, err := websocket.DefaultDialer.DialContext(r.Context(), target, header)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		u.log.Error("websocket upstream dial failed", "host", host, "target", target, "err", err)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	if resp != nil {
		_ = resp.Body.Close()
	}

	front, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		_ = back.Close()
		u.log.Error("websocket upgrade failed", "host", host, "err", err)
		return
	}
	metrics.WSUpgrades.WithLabelValues(host).Inc()
	u.log.Debug("websocket relay established", "host", host, "target", target)

	errCh := make(chan error, 2)
	go relayWebSocket(front, back, errCh)
	go relayWebSocket(back, front, errCh)
	<-errCh
	_ = front.Close()
	_ = back.Close()
	<-errCh
}

// relayWebSocket copies messages from src to dst until either side
// fails, preserving message types. Frame-at-a-time copying propagates
// backpressure: a slow reader stalls the writer instead of buffering.
func relayWebSocket(src, dst *websocket.Conn, errCh chan<- error) {
	for {
		mt, msg, err := src.ReadMessage()
		if err != nil {
			if closeErr, ok := err.(*websocket.CloseError); ok {
				_ = dst.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(closeErr.Code, closeErr.Text))
			}
			errCh <- err
			return
		}
		if err := dst.WriteMessage(mt, msg); err != nil {
			errCh <- err
			return
		}
	}
}

// websocketURL rewrites an http(s) upstream URL to its ws(s) equivalent,
// carrying the request path and query through.
func websocketURL(upstream string, reqURL *url.URL) (string, error) {
	u, err := url.Parse(upstream)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported upstream scheme %q", u.Scheme)
	}
	u.Path = reqURL.Path
	u.RawQuery = reqURL.RawQuery
	return u.String(), nil
}

// upstreamHandshakeHeader forwards request headers relevant to the
// upstream, minus hop-by-hop fields and the handshake fields the dialer
// manages itself.
func upstreamHandshakeHeader(r *http.Request) http.Header {
	header := r.Header.Clone()
	netutil.RemoveHopByHopHeaders(header)
	for k := range header {
		if strings.HasPrefix(strings.ToLower(k), "sec-websocket-") {
			header.Del(k)
		}
	}
	host := netutil.NormalizePeerIP(r.RemoteAddr)
	if prior := header.Get("X-Forwarded-For"); prior != "" {
		host = prior + ", " + host
	}
	header.Set("X-Forwarded-For", host)
	return header
}

// destroyConnection terminates a rejected upgrade without writing any
// response bytes.
func destroyConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	_ = conn.Close()
}

// writeRawStatus hijacks the connection and writes a bare status line;
// used when no service matches and no HTTP response context exists.
func writeRawStatus(w http.ResponseWriter, line string) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	conn, buf, err := hj.Hijack()
	if err != nil {
		return
	}
	_, _ = buf.WriteString(line)
	_ = buf.Flush()
	_ = conn.Close()
}
