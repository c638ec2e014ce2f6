package harness

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestLogTail_Watch(t *testing.T) {
	t.Run("marker written after watch", func(t *testing.T) {
		tail := NewLogTail(0)
		ch := tail.Watch("Started HTTP")
		assert.False(t, closed(ch))

		_, _ = tail.Write([]byte("loading config\n"))
		assert.False(t, closed(ch))

		_, _ = tail.Write([]byte("Started HTTP server\n"))
		assert.True(t, closed(ch))
	})
	t.Run("marker straddling writes", func(t *testing.T) {
		tail := NewLogTail(0)
		ch := tail.Watch("Started HTTP")

		_, _ = tail.Write([]byte("Star"))
		_, _ = tail.Write([]byte("ted HT"))
		assert.False(t, closed(ch))
		_, _ = tail.Write([]byte("TP"))

		assert.True(t, closed(ch))
	})
	t.Run("marker already in tail", func(t *testing.T) {
		tail := NewLogTail(0)
		_, _ = tail.Write([]byte("Started HTTP server\n"))

		assert.True(t, closed(tail.Watch("Started HTTP")))
	})
	t.Run("marker in a write larger than the tail", func(t *testing.T) {
		tail := NewLogTail(8)
		ch := tail.Watch("Started HTTP")

		_, _ = tail.Write([]byte("Started HTTP server on :1323\n"))

		assert.True(t, closed(ch))
		assert.Len(t, tail.String(), 8)
	})
	t.Run("independent watches", func(t *testing.T) {
		tail := NewLogTail(0)
		a := tail.Watch("a-marker")
		b := tail.Watch("b-marker")

		_, _ = tail.Write([]byte("b-marker\n"))

		assert.False(t, closed(a))
		assert.True(t, closed(b))
	})
}

func TestLogTail_Bounded(t *testing.T) {
	tail := NewLogTail(16)

	n, err := tail.Write([]byte("0123456789"))
	assert.NoError(t, err)
	assert.Equal(t, 10, n)
	_, _ = tail.Write([]byte("abcdefghij"))

	assert.Equal(t, "456789abcdefghij", tail.String())
}

func TestLogTail_Lines(t *testing.T) {
	tail := NewLogTail(0)
	assert.Nil(t, tail.Lines(5))

	for i := 1; i <= 5; i++ {
		_, _ = fmt.Fprintf(tail, "line %d\n", i)
	}

	assert.Equal(t, []string{"line 4", "line 5"}, tail.Lines(2))
	assert.Len(t, tail.Lines(20), 5)
}

func TestLogTail_Concurrent(t *testing.T) {
	tail := NewLogTail(0)
	ch := tail.Watch("writer 7 done")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = fmt.Fprintf(tail, "writer %d done\n", i)
		}()
	}
	wg.Wait()

	assert.True(t, closed(ch))
	assert.Equal(t, 10, strings.Count(tail.String(), "done"))
}
