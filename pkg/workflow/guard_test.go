package workflow

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryGuard_TryAcquireRelease(t *testing.T) {
	guard := NewMemoryGuard()

	assert.True(t, guard.TryAcquire("wf-1"))
	assert.False(t, guard.TryAcquire("wf-1"))
	assert.True(t, guard.TryAcquire("wf-2"))

	guard.Release("wf-1")
	assert.True(t, guard.TryAcquire("wf-1"))
}

func TestMemoryGuard_ConcurrentAcquire(t *testing.T) {
	guard := NewMemoryGuard()

	var (
		wg       sync.WaitGroup
		acquired atomic.Int32
	)

	for range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if guard.TryAcquire("wf-1") {
				acquired.Add(1)
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(1), acquired.Load())
}
