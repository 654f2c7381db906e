package tcpclient

import (
	"bytes"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer replies to each frame with the frame upper-cased, after delay.
func echoServer(t *testing.T, delay time.Duration) (string, *atomic.Int32) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	var accepted atomic.Int32
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted.Add(1)
			go func(conn net.Conn) {
				defer conn.Close()
				for {
					payload, err := ReadFrame(conn, 0)
					if err != nil {
						return
					}
					time.Sleep(delay)
					if err := WriteFrame(conn, bytes.ToUpper(payload)); err != nil {
						return
					}
				}
			}(conn)
		}
	}()

	return ln.Addr().String(), &accepted
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("hello")))
	assert.Equal(t, []byte{0, 0, 0, 5}, buf.Bytes()[:4])

	payload, err := ReadFrame(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(payload))
}

func TestReadFrameRejectsOversized(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, make([]byte, 32)))

	_, err := ReadFrame(&buf, 16)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestExchangeReusesConnections(t *testing.T) {
	addr, accepted := echoServer(t, 0)

	client, err := NewTCPClient(addr, time.Second, 2)
	require.NoError(t, err)
	defer client.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Exchange(context.Background(), []byte("ping"))
			assert.NoError(t, err)
			assert.Equal(t, "PING", string(resp))
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, accepted.Load(), int32(2))
}

func TestExchangeHonoursContext(t *testing.T) {
	addr, _ := echoServer(t, 2*time.Second)

	client, err := NewTCPClient(addr, 5*time.Second, 1)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = client.Exchange(ctx, []byte("slow"))
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestExchangeAfterClose(t *testing.T) {
	addr, _ := echoServer(t, 0)

	client, err := NewTCPClient(addr, time.Second, 1)
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = client.Exchange(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestNewTCPClientRejectsEmptyPool(t *testing.T) {
	_, err := NewTCPClient("127.0.0.1:1", time.Second, 0)
	assert.Error(t, err)
}
