package gqlws

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingCountingSocket struct {
	fakeSocket
	pings int32
	fail  bool
}

func (s *pingCountingSocket) Ping(ctx context.Context) error {
	atomic.AddInt32(&s.pings, 1)
	if s.fail {
		return errors.New("no pong")
	}
	return nil
}

func TestKeepAlive_DisabledWhenIntervalZero(t *testing.T) {
	sock := &pingCountingSocket{fakeSocket: *newFakeSocket()}
	ka := &keepAlive{socket: sock, interval: 0}
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		ka.run(context.Background(), stop)
		close(done)
	}()
	close(stop)
	<-done
	assert.Equal(t, int32(0), atomic.LoadInt32(&sock.pings))
}

func TestKeepAlive_PingsOnInterval(t *testing.T) {
	sock := &pingCountingSocket{fakeSocket: *newFakeSocket()}
	ka := &keepAlive{socket: sock, interval: 5 * time.Millisecond, timeout: 50 * time.Millisecond}
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		ka.run(context.Background(), stop)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&sock.pings) >= 2
	}, time.Second, 5*time.Millisecond)

	close(stop)
	<-done
}

func TestKeepAlive_TimeoutCallsOnTimeout(t *testing.T) {
	sock := &pingCountingSocket{fakeSocket: *newFakeSocket(), fail: true}
	var timedOut int32
	ka := &keepAlive{
		socket:    sock,
		interval:  5 * time.Millisecond,
		timeout:   5 * time.Millisecond,
		onTimeout: func() { atomic.StoreInt32(&timedOut, 1) },
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		ka.run(context.Background(), stop)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&timedOut) == 1
	}, time.Second, 5*time.Millisecond)

	<-done // run exits on its own after timeout, no need to close stop
}
