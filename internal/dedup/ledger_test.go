package dedup

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(i int) Key {
	return Key{Channel: "C1", TS: fmt.Sprintf("%d.000100", i)}
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "D1_123.456", Key{Channel: "D1", TS: "123.456"}.String())
}

func TestNewDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New(0).Cap())
	assert.Equal(t, DefaultCapacity, New(-3).Cap())
	assert.Equal(t, 25, New(25).Cap())
}

func TestSeenAndRecord(t *testing.T) {
	l := New(10)
	k := Key{Channel: "C1", TS: "1.1"}

	assert.False(t, l.Seen(k))
	l.Record(k)
	assert.True(t, l.Seen(k))
	assert.Equal(t, 1, l.Len())

	l.Record(k)
	assert.Equal(t, 1, l.Len(), "re-recording must not duplicate")

	assert.False(t, l.Seen(Key{Channel: "C2", TS: "1.1"}), "channel is part of the identity")
}

func TestCheckAndRecord(t *testing.T) {
	l := New(10)
	k := Key{Channel: "D1", TS: "123.456"}

	assert.True(t, l.CheckAndRecord(k))
	assert.False(t, l.CheckAndRecord(k))
	assert.True(t, l.Seen(k))
}

func TestBoundNeverExceeded(t *testing.T) {
	l := New(1000)
	for i := 0; i < 1001; i++ {
		l.Record(key(i))
		require.LessOrEqual(t, l.Len(), 1000)
	}

	// The 1001st insert evicted the oldest 100 keys.
	assert.Equal(t, 901, l.Len())
	for i := 0; i < 100; i++ {
		assert.False(t, l.Seen(key(i)), "key %d should have been evicted", i)
	}
	for i := 100; i < 1001; i++ {
		assert.True(t, l.Seen(key(i)), "key %d should be retained", i)
	}
}

func TestEvictionIsInsertionOrdered(t *testing.T) {
	l := New(10)
	for i := 0; i < 10; i++ {
		l.Record(key(i))
	}
	// Lookups do not refresh recency.
	assert.True(t, l.Seen(key(0)))

	l.Record(key(10))
	assert.False(t, l.Seen(key(0)))
	assert.True(t, l.Seen(key(1)))
	assert.True(t, l.Seen(key(10)))
	assert.Equal(t, 10, l.Len())
}

func TestSmallCapacityEvictsAtLeastOne(t *testing.T) {
	l := New(3)
	l.Record(key(1))
	l.Record(key(2))
	l.Record(key(3))
	l.Record(key(4))

	assert.Equal(t, 3, l.Len())
	assert.False(t, l.Seen(key(1)))
	assert.True(t, l.Seen(key(4)))
}

func TestLongRunBound(t *testing.T) {
	l := New(50)
	for i := 0; i < 10_000; i++ {
		l.Record(key(i))
	}
	assert.LessOrEqual(t, l.Len(), 50)
	assert.True(t, l.Seen(key(9_999)))
}

func TestCheckAndRecordRace(t *testing.T) {
	l := New(100)
	k := Key{Channel: "C1", TS: "999.1"}

	var firsts atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if l.CheckAndRecord(k) {
				firsts.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), firsts.Load())
}

func TestConcurrentDistinctKeys(t *testing.T) {
	l := New(200)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				l.CheckAndRecord(Key{Channel: fmt.Sprintf("C%d", g), TS: fmt.Sprint(i)})
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, l.Len(), 200)
}
