package batch

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress_SealsOnce(t *testing.T) {
	p := NewProgress(50)

	var seals atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Increment()
			if p.TrySealComplete() {
				seals.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, p.Completed())
	assert.Equal(t, int32(1), seals.Load())
	assert.False(t, p.TrySealComplete())
}

func TestProgress_NeverPassesTotal(t *testing.T) {
	p := NewProgress(2)
	assert.Equal(t, 1, p.Increment())
	assert.False(t, p.TrySealComplete())
	assert.Equal(t, 2, p.Increment())
	assert.Equal(t, 2, p.Increment())
	assert.Equal(t, 2, p.Completed())
	assert.True(t, p.TrySealComplete())
}

func TestProgress_EmptyBatch(t *testing.T) {
	p := NewProgress(0)
	assert.True(t, p.TrySealComplete())
	assert.False(t, p.TrySealComplete())
}
