package runtime

import (
	"chat-live/errors"
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// fakeConn records every frame it is asked to send
type fakeConn struct {
	id     uuid.UUID
	mu     sync.Mutex
	frames [][]byte
	closed bool
	full   bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: uuid.New()}
}

func (c *fakeConn) ID() uuid.UUID { return c.id }

func (c *fakeConn) Send(_ context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.ErrConnectionClosed
	}
	if c.full {
		return errors.ErrSinkFull
	}
	c.frames = append(c.frames, payload)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) events(t *testing.T) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		res = append(res, m)
	}
	return res
}

func (c *fakeConn) eventsOfType(t *testing.T, typ string) []map[string]any {
	var res []map[string]any
	for _, e := range c.events(t) {
		if e["type"] == typ {
			res = append(res, e)
		}
	}
	return res
}
