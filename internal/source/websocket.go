// ABOUTME: WebSocket stream source
// ABOUTME: Reads binary websocket messages as one continuous byte stream
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/Resonate-Protocol/streamplay/internal/version"
	"github.com/Resonate-Protocol/streamplay/pkg/audio/parse"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// DialWebSocket connects to rawURL. Binary messages are concatenated into
// the stream; text messages are logged and skipped. A normal close from the
// server ends the stream with io.EOF.
func DialWebSocket(ctx context.Context, rawURL string) (*Stream, error) {
	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	log.Printf("Connected to %s", rawURL)

	name := rawURL
	codec := ""
	if u, err := url.Parse(rawURL); err == nil {
		name = u.Host + u.Path
		codec = parse.CodecForName(u.Path)
	}

	return &Stream{ReadCloser: &wsReader{conn: conn}, Name: name, Codec: codec}, nil
}

type wsReader struct {
	conn *websocket.Conn
	cur  io.Reader

	closeOnce sync.Once
	closeErr  error
}

func (r *wsReader) Read(p []byte) (int, error) {
	for {
		if r.cur == nil {
			msgType, reader, err := r.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, fmt.Errorf("websocket read failed: %w", err)
			}
			if msgType != websocket.BinaryMessage {
				log.Debugf("Skipping websocket message type %d", msgType)
				continue
			}
			r.cur = reader
		}

		n, err := r.cur.Read(p)
		if err == io.EOF {
			r.cur = nil
			if n == 0 {
				continue
			}
			return n, nil
		}
		return n, err
	}
}

// Close sends a close frame and closes the connection
func (r *wsReader) Close() error {
	r.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = r.conn.WriteMessage(websocket.CloseMessage, msg)
		r.closeErr = r.conn.Close()
	})
	return r.closeErr
}
