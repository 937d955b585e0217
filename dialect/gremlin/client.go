package gremlin

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/semaphore"

	"github.com/syssam/unigraph"
)

// mimeType selects GraphSON 3 for requests and responses.
const mimeType = "application/vnd.gremlin-v3.0+json"

// Request processors.
const (
	processorEval    = ""
	processorSession = "session"
)

type request struct {
	RequestID typed          `json:"requestId"`
	Op        string         `json:"op"`
	Processor string         `json:"processor"`
	Args      map[string]any `json:"args"`
}

type response struct {
	RequestID json.RawMessage `json:"requestId"`
	Status    struct {
		Code       int             `json:"code"`
		Message    string          `json:"message"`
		Attributes json.RawMessage `json:"attributes"`
	} `json:"status"`
	Result struct {
		Data json.RawMessage `json:"data"`
	} `json:"result"`
}

// id returns the request identifier of the response, typed or not.
func (r *response) id() string {
	var s string
	if json.Unmarshal(r.RequestID, &s) == nil {
		return s
	}
	var t struct {
		Value string `json:"@value"`
	}
	_ = json.Unmarshal(r.RequestID, &t)
	return t.Value
}

// err builds the ServerError of a failed response.
func (r *response) err() *ServerError {
	se := &ServerError{Code: r.Status.Code, Message: r.Status.Message}
	if len(r.Status.Attributes) == 0 {
		return se
	}
	attrs, err := decode(r.Status.Attributes)
	if err != nil {
		return se
	}
	m, _ := attrs.(gmap)
	if xs, ok := m.get("exceptions"); ok {
		list, _ := xs.([]any)
		for _, x := range list {
			if s, ok := x.(string); ok {
				se.Exceptions = append(se.Exceptions, s)
			}
		}
	}
	return se
}

type credentials struct {
	username string
	password string
}

// sasl returns the SASL PLAIN initial response.
func (c *credentials) sasl() string {
	return base64.StdEncoding.EncodeToString([]byte("\x00" + c.username + "\x00" + c.password))
}

// conn is one WebSocket connection to Gremlin Server. It carries one
// request at a time.
type conn struct {
	ws      *websocket.Conn
	creds   *credentials
	timeout time.Duration
	broken  bool
}

// submit sends one request and reads its responses until a final status.
// Partial content is accumulated; an authentication challenge is answered
// with SASL PLAIN. A failed read or write breaks the connection.
func (c *conn) submit(ctx context.Context, op, processor string, args map[string]any) ([]any, error) {
	id := uuid.New()
	stop := c.watch(ctx)
	defer stop()
	req := request{RequestID: typed{"g:UUID", id.String()}, Op: op, Processor: processor, Args: args}
	if err := c.write(req); err != nil {
		c.broken = true
		return nil, cause(ctx, err)
	}
	var out []any
	for {
		resp, err := c.read()
		if err != nil {
			c.broken = true
			return nil, cause(ctx, err)
		}
		if resp.id() != id.String() {
			continue
		}
		switch resp.Status.Code {
		case statusAuthenticate:
			if c.creds == nil {
				return nil, &ServerError{Code: statusUnauthorized, Message: "server requires credentials"}
			}
			auth := request{RequestID: req.RequestID, Op: "authentication", Processor: processor, Args: map[string]any{
				"sasl":          c.creds.sasl(),
				"saslMechanism": "PLAIN",
			}}
			if err := c.write(auth); err != nil {
				c.broken = true
				return nil, cause(ctx, err)
			}
		case statusSuccess, statusNoContent, statusPartialContent:
			items, err := results(resp.Result.Data)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
			if resp.Status.Code != statusPartialContent {
				return out, nil
			}
		default:
			return nil, resp.err()
		}
	}
}

// watch applies the deadline of ctx, or the connection timeout, to the
// socket and interrupts a blocked read when ctx is canceled.
func (c *conn) watch(ctx context.Context) func() bool {
	deadline, ok := ctx.Deadline()
	if !ok && c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	_ = c.ws.SetReadDeadline(deadline)
	_ = c.ws.SetWriteDeadline(deadline)
	return context.AfterFunc(ctx, func() {
		_ = c.ws.SetReadDeadline(time.Now())
	})
}

func (c *conn) write(req request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	msg := make([]byte, 0, 1+len(mimeType)+len(body))
	msg = append(msg, byte(len(mimeType)))
	msg = append(msg, mimeType...)
	msg = append(msg, body...)
	return c.ws.WriteMessage(websocket.BinaryMessage, msg)
}

func (c *conn) read() (*response, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, unigraph.WrapError(unigraph.KindInternal, fmt.Errorf("gremlin: decode response: %w", err))
	}
	return &resp, nil
}

func (c *conn) close() error {
	return c.ws.Close()
}

// cause prefers the context error over the socket error it provoked.
func cause(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// results decodes the data of one response into its items.
func results(raw json.RawMessage) ([]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	x, err := decode(raw)
	if err != nil {
		return nil, err
	}
	if xs, ok := x.([]any); ok {
		return xs, nil
	}
	return []any{x}, nil
}

// pool bounds the number of open connections and keeps idle ones.
type pool struct {
	dial func(ctx context.Context) (*conn, error)
	sem  *semaphore.Weighted

	mu     sync.Mutex
	idle   []*conn
	closed bool
}

func newPool(size int, dial func(ctx context.Context) (*conn, error)) *pool {
	return &pool{dial: dial, sem: semaphore.NewWeighted(int64(max(size, 1)))}
}

// get returns an idle connection or dials a new one, waiting while the
// pool is at capacity.
func (p *pool) get(ctx context.Context) (*conn, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.sem.Release(1)
		return nil, unigraph.Errorf(unigraph.KindConnectionFailed, "gremlin: driver is closed")
	}
	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()
	c, err := p.dial(ctx)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}
	return c, nil
}

// put returns c to the pool. Broken connections are closed.
func (p *pool) put(c *conn) {
	defer p.sem.Release(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if c.broken || p.closed {
		_ = c.close()
		return
	}
	p.idle = append(p.idle, c)
}

func (p *pool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for _, c := range p.idle {
		_ = c.close()
	}
	p.idle = nil
}

// dialer returns a function dialing the configured hosts in turn.
func dialer(cfg unigraph.Config, scheme, path string) func(ctx context.Context) (*conn, error) {
	d := websocket.Dialer{HandshakeTimeout: cfg.Timeout}
	var creds *credentials
	if cfg.Username != "" {
		creds = &credentials{username: cfg.Username, password: cfg.Password}
	}
	addrs := cfg.Addresses()
	var next atomic.Uint32
	return func(ctx context.Context) (*conn, error) {
		start := int(next.Add(1))
		var err error
		for i := range addrs {
			u := url.URL{Scheme: scheme, Host: addrs[(start+i)%len(addrs)], Path: path}
			var ws *websocket.Conn
			ws, _, err = d.DialContext(ctx, u.String(), nil)
			if err == nil {
				return &conn{ws: ws, creds: creds, timeout: cfg.Timeout}, nil
			}
		}
		return nil, err
	}
}
