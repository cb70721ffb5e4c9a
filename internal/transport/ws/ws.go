// Package ws carries a map view over a websocket: client events in, frames
// and patches out.
package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"regionmap/internal/logger"
	"regionmap/internal/session"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 4096
)

// View is the part of a session view the transport drives.
type View interface {
	Updates() <-chan any
	Dispatch(ev session.Event) bool
}

// NewUpgrader accepts same-origin requests plus the listed origins. A "*"
// entry accepts any origin.
func NewUpgrader(origins []string) *websocket.Upgrader {
	up := &websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 8192}
	if len(origins) == 0 {
		return up
	}
	allowed := make(map[string]bool, len(origins))
	anyOrigin := false
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			anyOrigin = true
		}
		allowed[strings.ToLower(o)] = true
	}
	up.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || anyOrigin {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		return allowed[strings.ToLower(u.Scheme+"://"+u.Host)]
	}
	return up
}

// Pump runs the connection until the client leaves or the view's updates
// close, then closes conn. It does not unmount the view.
func Pump(conn *websocket.Conn, v View) error {
	log := logger.Component("ws").With("remote", conn.RemoteAddr().String())
	readDone := make(chan error, 1)
	go func() { readDone <- readLoop(conn, v, log) }()
	err := writeLoop(conn, v, readDone)
	_ = conn.Close()
	if err != nil && !isClosed(err) {
		log.Debug("ws_closed", "err", err)
		return err
	}
	return nil
}

func readLoop(conn *websocket.Conn, v View, log *slog.Logger) error {
	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var ev session.Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Type == "" {
			log.Debug("ws_bad_event", "bytes", len(data))
			continue
		}
		if !v.Dispatch(ev) {
			return errViewGone
		}
	}
}

var errViewGone = errors.New("ws: view unmounted")

func writeLoop(conn *websocket.Conn, v View, readDone <-chan error) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	updates := v.Updates()
	for {
		select {
		case msg, ok := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "view closed"))
				return nil
			}
			if err := conn.WriteJSON(msg); err != nil {
				return err
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case err := <-readDone:
			return err
		}
	}
}

func isClosed(err error) bool {
	return errors.Is(err, errViewGone) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}
