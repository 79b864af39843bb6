// Package client triggers publishes from a package checkout: it reads the
// local manifest and streams the registry's progress over a session.
package client

import (
	"context"
	"encoding/json"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teranos/snpm/build"
	"github.com/teranos/snpm/errors"
	"github.com/teranos/snpm/publish"
	"github.com/teranos/snpm/server"
	"go.uber.org/zap"
)

// ErrRegistry marks failures reported by the registry itself
var ErrRegistry = errors.New("registry rejected publish")

const handshakeTimeout = 10 * time.Second

// Client publishes packages to one registry
type Client struct {
	wsURL  string
	dialer *websocket.Dialer
	logger *zap.SugaredLogger
}

// New creates a Client for the registry at addr (http://host:port)
func New(addr string, log *zap.SugaredLogger) (*Client, error) {
	wsURL, err := WebSocketURL(addr)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{
		wsURL:  wsURL,
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout, Proxy: websocket.DefaultDialer.Proxy},
		logger: log,
	}, nil
}

// WebSocketURL maps a registry address to its session endpoint
func WebSocketURL(addr string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(addr))
	if err != nil {
		return "", errors.Wrapf(err, "invalid registry address %q", addr)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", errors.Newf("invalid registry address %q: scheme must be http or https", addr)
	}
	if u.Host == "" {
		return "", errors.Newf("invalid registry address %q: missing host", addr)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

// RequestFromManifest builds a publish request from the repository URL and
// version declared in dir's manifest
func RequestFromManifest(dir, manifestFile string) (publish.Request, error) {
	if manifestFile == "" {
		manifestFile = "package.json"
	}
	path := filepath.Join(dir, manifestFile)
	m, err := build.ReadManifest(path)
	if err != nil {
		return publish.Request{}, errors.WithHintf(err, "cannot read %s", path)
	}
	if m.Repository.URL == "" {
		return publish.Request{}, errors.WithHint(
			errors.Newf("%s declares no repository url", path),
			`add "repository": {"type": "git", "url": "https://github.com/<owner>/<repo>.git"}`,
		)
	}
	if m.Version == "" {
		return publish.Request{}, errors.Newf("%s declares no version", path)
	}
	return publish.Request{URL: m.Repository.URL, Version: m.Version}, nil
}

// Publish sends req and calls onMessage for every progress message until the
// registry reports the result. A registry-side failure is marked ErrRegistry.
func (c *Client) Publish(ctx context.Context, req publish.Request, onMessage func(string)) error {
	conn, _, err := c.dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return errors.WithHintf(errors.Wrapf(err, "cannot reach registry at %s", c.wsURL),
			"is the registry running? start it with: snpm server")
	}
	defer conn.Close()

	// Unblock the read loop when the caller gives up
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	data, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "failed to encode publish request")
	}
	if err := conn.WriteJSON(server.Envelope{Event: server.EventPublish, Data: data}); err != nil {
		return errors.Wrap(err, "failed to send publish request")
	}
	c.logger.Debugw("Publish requested", "url", req.URL, "version", req.Version, "registry", c.wsURL)

	finished := false
	for {
		var env server.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if finished && websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return errors.Wrap(err, "registry closed the session without a result")
		}

		var text string
		if err := json.Unmarshal(env.Data, &text); err != nil {
			c.logger.Debugw("Ignoring non-text session frame", "event", env.Event)
			continue
		}

		switch env.Event {
		case server.EventMessage:
			if onMessage != nil {
				onMessage(text)
			}
			finished = text == publish.MessageFinished
		case server.EventError:
			return errors.Mark(errors.Newf("registry: %s", text), ErrRegistry)
		}
	}
}
