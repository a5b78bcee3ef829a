package fastview

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 1 * time.Second
	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// The default rate at which ele-updates are sent to the client, so as not to overburden.
	defaultPubResolution = time.Millisecond * 100
	pingResolution       = time.Millisecond * 200
	// Encompasses the number of pings to tolerate losing before concluding the peer is gone.
	pongWait = pingResolution * 4
)

var upgrader = websocket.Upgrader{}

// A client synchronizes one web page with server-side views over a websocket. Ele-updates flow
// out to the page; messages the page sends back (user events) are passed to a handler.
type client struct {
	updates       <-chan []EleUpdate
	onMessage     MessageHandler
	pubResolution time.Duration
	ws            *websock
	rootCtx       context.Context
}

// ClientOption configures a client.
type ClientOption func(*client)

// WithPubResolution sets the minimum interval between two publications to the page.
func WithPubResolution(d time.Duration) ClientOption {
	return func(cli *client) {
		if d > 0 {
			cli.pubResolution = d
		}
	}
}

// NewClient upgrades the request to a websocket and returns a client publishing the passed
// updates. Updates must be idempotent: updates for the same element received faster than the
// publication rate are coalesced, and only the latest is sent. A nil handler discards inbound
// messages.
func NewClient(
	updates <-chan []EleUpdate,
	onMessage MessageHandler,
	w http.ResponseWriter,
	r *http.Request,
	opts ...ClientOption,
) (*client, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied to the request.
		return nil, err
	}
	ws.SetReadLimit(maxMessageSize)

	if onMessage == nil {
		onMessage = func([]byte) {}
	}
	cli := &client{
		updates:       updates,
		onMessage:     onMessage,
		pubResolution: defaultPubResolution,
		ws:            NewWebSocket(ws),
		rootCtx:       r.Context(),
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// Sync starts routines to publish incoming updates to the client, read its messages and check
// its liveness. Sync returns nil upon client disconnect or an error if an unexpected error
// occurred; either way the websocket is closed on return.
func (cli *client) Sync() error {
	// Any routine returning, with or without error, tears the others down.
	ctx, cancel := context.WithCancel(cli.rootCtx)
	defer cancel()
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer cancel()
		return cli.readMessages(groupCtx)
	})
	group.Go(func() error {
		defer cancel()
		return cli.pingPong(groupCtx)
	})
	group.Go(func() error {
		defer cancel()
		return cli.publish(groupCtx)
	})
	// Reads block until the connection fails, so teardown has to come from closing it.
	group.Go(func() error {
		<-groupCtx.Done()
		_ = cli.ws.Conn().WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		return cli.ws.Conn().Close()
	})

	err := group.Wait()
	if isClosure(err) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

var ErrPongDeadlineExceeded error = errors.New("client disconnect, pong deadline exceeded")

// Runs the ping-pong for the client liveness check.
// NOTE: This function requires that readMessages is running to ensure the pong handler is called.
func (cli *client) pingPong(ctx context.Context) error {
	pong := make(chan struct{}, 1)
	cli.ws.Conn().SetPongHandler(func(_ string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}

			if err := cli.ping(ctx); err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

func (cli *client) ping(ctx context.Context) error {
	return cli.ws.Write(
		ctx,
		func(ws *websocket.Conn) (err error) {
			if err = ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				if isError(err) {
					err = fmt.Errorf("ping failed: %T %v", err, err)
				}
			}
			return
		})
}

// readMessages passes each message from the client to the handler.
// Errors returned by websocket Read methods are permanent, hence any error
// must trigger full teardown.
func (cli *client) readMessages(ctx context.Context) error {
	for {
		var msg []byte
		err := cli.ws.Read(
			ctx,
			func(ws *websocket.Conn) (readErr error) {
				_, msg, readErr = ws.ReadMessage()
				return
			})
		if err != nil {
			if ctx.Err() != nil || isClosure(err) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		if msg != nil {
			cli.onMessage(msg)
		}
	}
}

// publish coalesces updates per element id and flushes them at most once per pubResolution.
func (cli *client) publish(ctx context.Context) error {
	pending := map[string]EleUpdate{}
	order := []string{}
	flusher := channerics.NewTicker(ctx.Done(), cli.pubResolution)

	for {
		select {
		case <-ctx.Done():
			return nil
		case updates, ok := <-cli.updates:
			// Graceful input channel closure
			if !ok {
				return nil
			}
			for _, update := range updates {
				if _, seen := pending[update.EleId]; !seen {
					order = append(order, update.EleId)
				}
				pending[update.EleId] = update
			}
		case <-flusher:
			if len(pending) == 0 {
				break
			}

			batch := make([]EleUpdate, 0, len(order))
			for _, id := range order {
				batch = append(batch, pending[id])
			}
			pending = map[string]EleUpdate{}
			order = order[:0]

			err := cli.ws.Write(
				ctx,
				func(ws *websocket.Conn) (writeErr error) {
					if writeErr = ws.SetWriteDeadline(time.Now().Add(writeWait)); writeErr != nil {
						writeErr = fmt.Errorf("failed to set deadline: %T %w", writeErr, writeErr)
						return
					}

					if writeErr = ws.WriteJSON(batch); writeErr != nil {
						if isError(writeErr) {
							writeErr = fmt.Errorf("publish failed: %T %v", writeErr, writeErr)
						}
					}
					return
				})
			if err != nil {
				return err
			}
		}
	}
}

func isError(err error) bool {
	return err != nil && websocket.IsUnexpectedCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

func isClosure(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

// ErrSockCongestion indicates there are too many waiters on the socket for a given op.
var ErrSockCongestion = errors.New("sock op failed due to congestion")

const (
	writeDeadline = time.Second
)

// websock merely serializes reads and writes to the websocket, whose requirements
// are that there may be only one concurrent read and writer at a time.
type websock struct {
	// These are merely mutexes, but channel semantics are cleaner.
	readSem  chan struct{}
	writeSem chan struct{}
	ws       *websocket.Conn
}

func NewWebSocket(ws *websocket.Conn) *websock {
	return &websock{
		readSem:  make(chan struct{}, 1),
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

// Returns the underlying websocket.
// This should only be used non-concurrently for setup, e.g. adding handlers, or to close it.
func (sock *websock) Conn() *websocket.Conn {
	return sock.ws
}

// Read serializes read operations on the internal web socket. There is a single reader, so the
// read blocks for as long as the read function does.
func (sock *websock) Read(
	ctx context.Context,
	readFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.readSem <- struct{}{}:
		defer func() { <-sock.readSem }()
		return readFn(sock.ws)
	}
}

// Write serializes write operations to the websocket.
func (sock *websock) Write(
	ctx context.Context,
	writeFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.writeSem <- struct{}{}:
		defer func() { <-sock.writeSem }()
		return writeFn(sock.ws)
	case <-time.After(writeDeadline):
		return ErrSockCongestion
	}
}
