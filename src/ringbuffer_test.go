package borzoi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rb_pattern(n int, seed byte) []byte {
	var b = make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}

func TestRingBufferInit(t *testing.T) {
	var rb ringbuffer_t
	require.Equal(t, 0, rb_init(&rb, 250))
	assert.Equal(t, 250, rb_get_size(&rb))
	assert.Equal(t, 0, rb_get_used(&rb))
	assert.Equal(t, 250, rb_get_free(&rb))

	// Double init is refused.
	assert.Equal(t, EFAULT, rb_init(&rb, 250))
}

func TestRingBufferWrap(t *testing.T) {
	var rb ringbuffer_t
	require.Equal(t, 0, rb_init(&rb, 250))

	// Fill with five 50 byte writes.
	var stream []byte
	for i := 0; i < 5; i++ {
		var chunk = rb_pattern(50, byte(i*50))
		stream = append(stream, chunk...)
		assert.Equal(t, 50, rb_write_nonblock(&rb, chunk))
	}
	assert.Equal(t, 250, rb_get_used(&rb))
	assert.Equal(t, 0, rb_get_free(&rb))

	// Read 10, 40, 60 - the first 110 bytes of the stream, in order.
	var got []byte
	for _, n := range []int{10, 40, 60} {
		var buf = make([]byte, n)
		assert.Equal(t, n, rb_read_nonblock(&rb, buf))
		got = append(got, buf...)
	}
	assert.Equal(t, stream[:110], got)
	assert.Equal(t, 140, rb_get_used(&rb))

	// 100 into free=110 fits; another 100 does not.
	assert.Equal(t, 100, rb_write_nonblock(&rb, rb_pattern(100, 0)))
	assert.Equal(t, 240, rb_get_used(&rb))
	assert.Equal(t, -EAGAIN, rb_write_nonblock(&rb, rb_pattern(100, 0)))

	// used + free == size at all times.
	assert.Equal(t, 250, rb_get_used(&rb)+rb_get_free(&rb))
}

func TestRingBufferTooBig(t *testing.T) {
	var rb ringbuffer_t
	require.Equal(t, 0, rb_init(&rb, 16))

	assert.Equal(t, -EMSGSIZE, rb_write_nonblock(&rb, make([]byte, 17)))
	assert.Equal(t, -EMSGSIZE, rb_read_nonblock(&rb, make([]byte, 17)))
}

func TestRingBufferReadNonblockWouldBlock(t *testing.T) {
	var rb ringbuffer_t
	require.Equal(t, 0, rb_init(&rb, 16))

	rb_write_nonblock(&rb, []byte("abc"))
	assert.Equal(t, -EAGAIN, rb_read_nonblock(&rb, make([]byte, 4)))

	var buf = make([]byte, 3)
	assert.Equal(t, 3, rb_read_nonblock(&rb, buf))
	assert.Equal(t, []byte("abc"), buf)
}

func TestRingBufferLoose(t *testing.T) {
	var rb ringbuffer_t
	require.Equal(t, 0, rb_init(&rb, 16))

	assert.Equal(t, 0, rb_get_lost(&rb))
	assert.Equal(t, 5, rb_loose(&rb, 5))
	assert.Equal(t, 12, rb_loose(&rb, 7))
	assert.Equal(t, 12, rb_get_lost(&rb))
	assert.Equal(t, 12, rb_clear_lost(&rb))
	assert.Equal(t, 0, rb_get_lost(&rb))
}

func TestRingBufferBlocking(t *testing.T) {
	var rb ringbuffer_t
	require.Equal(t, 0, rb_init(&rb, 8))

	// Blocking write larger than the buffer completes once a reader
	// drains the other side.
	var payload = rb_pattern(32, 0)
	var done = make(chan []byte)
	go func() {
		var got []byte
		for len(got) < 32 {
			var buf = make([]byte, 8)
			var n = rb_read_block(&rb, buf)
			if n <= 0 {
				break
			}
			got = append(got, buf[:n]...)
		}
		done <- got
	}()

	assert.Equal(t, 32, rb_write_block(&rb, payload))

	select {
	case got := <-done:
		assert.Equal(t, payload, got)
	case <-time.After(5 * time.Second):
		t.Fatal("reader did not finish")
	}
}

func TestRingBufferDestroyWakesReader(t *testing.T) {
	var rb ringbuffer_t
	require.Equal(t, 0, rb_init(&rb, 8))

	var done = make(chan int)
	go func() {
		done <- rb_read_block(&rb, make([]byte, 4))
	}()

	time.Sleep(50 * time.Millisecond)
	rb_destroy(&rb)

	select {
	case n := <-done:
		assert.Equal(t, -EFAULT, n)
	case <-time.After(5 * time.Second):
		t.Fatal("reader not woken by destroy")
	}
}
