package queue

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/farmtech/livestock-auth/internal/model"
)

// silentBroker accepts TCP connections and never speaks AMQP.
func silentBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return "amqp://guest:guest@" + ln.Addr().String() + "/"
}

func TestPublish_UnresponsiveBrokerHonoursDeadline(t *testing.T) {
	p := NewPublisher(silentBroker(t), zaptest.NewLogger(t))
	ev := NewIdentityEvent(KindLogin, &model.User{ID: 1, Username: "alice", Email: "alice@x.com", Role: model.RoleFarmer})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.Publish(ctx, ev)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestPublish_CancelledContextFailsFast(t *testing.T) {
	p := NewPublisher(silentBroker(t), zaptest.NewLogger(t))
	ev := NewIdentityEvent(KindRegistered, &model.User{ID: 2, Username: "bob", Email: "bob@x.com", Role: model.RoleBuyer})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	assert.Error(t, p.Publish(ctx, ev))
	assert.Less(t, time.Since(start), time.Second)
}

func TestPublish_UnreachableBroker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	p := NewPublisher("amqp://guest:guest@"+addr+"/", zaptest.NewLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, p.Publish(ctx, NewIdentityEvent(KindLogin, &model.User{ID: 3})))
}

func TestDiscard_EmptyEvent(t *testing.T) {
	assert.NoError(t, Discard{}.Publish(context.Background(), IdentityEvent{}))
}
