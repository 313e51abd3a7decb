package admission

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// respServer speaks enough of the Redis protocol to serve INCR, PTTL,
// PEXPIRE and PING. Expiries never run out on their own, expireAll ends
// every window that has one.
type respServer struct {
	ln net.Listener

	mu          sync.Mutex
	counts      map[string]int64
	expiring    map[string]bool
	failExpire  int
	expireCalls int
}

func newRESPServer(t *testing.T) *respServer {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := respServer{
		ln:       ln,
		counts:   make(map[string]int64),
		expiring: make(map[string]bool),
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.serve(conn)
		}
	}()

	t.Cleanup(func() { ln.Close() })

	return &srv
}

func (s *respServer) url() string {
	return "redis://" + s.ln.Addr().String() + "/0"
}

func (s *respServer) expireAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.expiring {
		delete(s.counts, key)
		delete(s.expiring, key)
	}
}

func (s *respServer) state(key string) (count int64, expiring bool, expireCalls int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counts[key], s.expiring[key], s.expireCalls
}

func (s *respServer) serve(conn net.Conn) {
	defer conn.Close()

	rd := bufio.NewReader(conn)
	for {
		args, err := readCommand(rd)
		if err != nil {
			return
		}

		if _, err := io.WriteString(conn, s.exec(args)); err != nil {
			return
		}
	}
}

func (s *respServer) exec(args []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch strings.ToUpper(args[0]) {
	case "PING":
		return "+PONG\r\n"

	case "INCR":
		s.counts[args[1]]++
		return fmt.Sprintf(":%d\r\n", s.counts[args[1]])

	case "PTTL":
		switch {
		case s.counts[args[1]] == 0:
			return ":-2\r\n"
		case !s.expiring[args[1]]:
			return ":-1\r\n"
		}
		return ":60000\r\n"

	case "PEXPIRE":
		s.expireCalls++
		if s.failExpire > 0 {
			s.failExpire--
			return "-ERR expire unavailable\r\n"
		}
		s.expiring[args[1]] = true
		return ":1\r\n"
	}

	return "-ERR unknown command\r\n"
}

func readCommand(rd *bufio.Reader) ([]string, error) {
	line, err := rd.ReadString('\n')
	if err != nil {
		return nil, err
	}

	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "*") {
		return nil, errors.New("expected an array")
	}

	n, err := strconv.Atoi(line[1:])
	if err != nil || n < 1 {
		return nil, errors.New("bad array length")
	}

	args := make([]string, n)
	for i := range args {
		line, err := rd.ReadString('\n')
		if err != nil {
			return nil, err
		}

		size, err := strconv.Atoi(strings.TrimSpace(line)[1:])
		if err != nil {
			return nil, err
		}

		buf := make([]byte, size+2)
		if _, err := io.ReadFull(rd, buf); err != nil {
			return nil, err
		}
		args[i] = string(buf[:size])
	}

	return args, nil
}

// =============================================================================

func Test_RedisExpiryRecovers(t *testing.T) {
	srv := newRESPServer(t)

	srv.mu.Lock()
	srv.failExpire = 1
	srv.mu.Unlock()

	store, err := NewRedis(srv.url(), time.Second)
	require.NoError(t, err)
	defer store.Close()

	c := New(Config{
		Log:            zaptest.NewLogger(t).Sugar(),
		Primary:        store,
		PrimaryName:    RedisName,
		Policy:         Policy{Window: time.Minute, Limit: 3},
		FallbackPolicy: Policy{Window: time.Minute, Limit: 100},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := int64(1); i <= 3; i++ {
		d := c.Allow(ctx, "1.2.3.4")
		assert.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, i, d.Count, "request %d", i)
		assert.Equal(t, RedisName, d.Store, "a failed expiry should not move the decision to the fallback")
	}

	count, expiring, calls := srv.state("rate:1.2.3.4")
	assert.Equal(t, int64(3), count)
	assert.True(t, expiring, "the expiry should be set again after it failed")
	assert.Equal(t, 2, calls, "the expiry is only set while the key has none")

	d := c.Allow(ctx, "1.2.3.4")
	assert.False(t, d.Allowed)
	assert.Equal(t, RedisName, d.Store)

	srv.expireAll()

	d = c.Allow(ctx, "1.2.3.4")
	assert.True(t, d.Allowed, "the client should be admitted once the window ends")
	assert.Equal(t, int64(1), d.Count)
}

func Test_RedisPing(t *testing.T) {
	srv := newRESPServer(t)

	store, err := NewRedis(srv.url(), time.Second)
	require.NoError(t, err)
	defer store.Close()

	c := New(Config{Primary: store, PrimaryName: RedisName})
	assert.NoError(t, c.Healthy(context.Background()))
}
