package tcpclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrTimeout          = errors.New("operation timed out")
)

// TCPClient keeps up to poolSize connections to a framed request/response
// server. Connections are dialed on first use and reused while healthy.
type TCPClient struct {
	address      string
	timeout      time.Duration
	maxRetries   int
	maxFrameSize uint32
	slots        chan struct{}
	idle         chan net.Conn
	tlsConfig    *tls.Config
	logger       *zap.Logger
	mu           sync.Mutex
	closed       bool
}

type TCPClientOption func(*TCPClient)

func WithTLS(config *tls.Config) TCPClientOption {
	return func(c *TCPClient) {
		c.tlsConfig = config
	}
}

func WithLogger(logger *zap.Logger) TCPClientOption {
	return func(c *TCPClient) {
		c.logger = logger
	}
}

func WithMaxRetries(n int) TCPClientOption {
	return func(c *TCPClient) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

func WithMaxFrameSize(n uint32) TCPClientOption {
	return func(c *TCPClient) {
		c.maxFrameSize = n
	}
}

func NewTCPClient(address string, timeout time.Duration, poolSize int, opts ...TCPClientOption) (*TCPClient, error) {
	if poolSize <= 0 {
		return nil, fmt.Errorf("invalid pool size: %d", poolSize)
	}

	client := &TCPClient{
		address:      address,
		timeout:      timeout,
		maxRetries:   3,
		maxFrameSize: DefaultMaxFrameSize,
		slots:        make(chan struct{}, poolSize),
		idle:         make(chan net.Conn, poolSize),
		logger:       zap.NewNop(),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

func (c *TCPClient) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: c.timeout}
	if c.tlsConfig != nil {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: c.tlsConfig}
		return tlsDialer.DialContext(ctx, "tcp", c.address)
	}
	return dialer.DialContext(ctx, "tcp", c.address)
}

func (c *TCPClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *TCPClient) getConnection(ctx context.Context) (net.Conn, error) {
	if c.isClosed() {
		return nil, ErrConnectionClosed
	}

	select {
	case c.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case conn := <-c.idle:
		return conn, nil
	default:
	}

	conn, err := c.dial(ctx)
	if err != nil {
		<-c.slots
		return nil, fmt.Errorf("failed to dial %s: %w", c.address, err)
	}
	return conn, nil
}

// releaseConnection returns a connection to the pool. Broken connections are
// closed so the next caller dials a fresh one.
func (c *TCPClient) releaseConnection(conn net.Conn, healthy bool) {
	defer func() { <-c.slots }()

	if !healthy || c.isClosed() {
		conn.Close()
		return
	}

	select {
	case c.idle <- conn:
	default:
		conn.Close()
	}
}

// Exchange writes payload as one frame and waits for the reply frame on the
// same connection. The wait ends at the earlier of ctx and the client
// timeout.
func (c *TCPClient) Exchange(ctx context.Context, payload []byte) ([]byte, error) {
	var err error
	for i := 0; i < c.maxRetries; i++ {
		var response []byte
		if response, err = c.exchange(ctx, payload); err == nil {
			return response, nil
		}
		if ctx.Err() != nil || errors.Is(err, ErrConnectionClosed) || errors.Is(err, ErrFrameTooLarge) {
			return nil, err
		}
		c.logger.Warn("Failed to exchange frame, retrying", zap.Error(err), zap.Int("attempt", i+1))
	}
	return nil, fmt.Errorf("failed to exchange frame after %d attempts: %w", c.maxRetries, err)
}

func (c *TCPClient) exchange(ctx context.Context, payload []byte) ([]byte, error) {
	conn, err := c.getConnection(ctx)
	if err != nil {
		return nil, err
	}

	healthy := false
	defer func() { c.releaseConnection(conn, healthy) }()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := WriteFrame(conn, payload); err != nil {
		return nil, c.wrapIOError(ctx, "send", err)
	}

	response, err := ReadFrame(conn, c.maxFrameSize)
	if err != nil {
		return nil, c.wrapIOError(ctx, "receive", err)
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		return nil, err
	}

	healthy = true
	return response, nil
}

func (c *TCPClient) wrapIOError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("failed to %s data: %w", op, ErrTimeout)
	}
	return fmt.Errorf("failed to %s data: %w", op, err)
}

func (c *TCPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	for {
		select {
		case conn := <-c.idle:
			if err := conn.Close(); err != nil {
				c.logger.Error("Failed to close connection", zap.Error(err))
			}
		default:
			return nil
		}
	}
}
