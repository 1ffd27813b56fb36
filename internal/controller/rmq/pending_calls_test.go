package rmq

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingCalls_Resolve(t *testing.T) {
	pc := NewPendingCalls()
	ch := pc.Register("a")

	require.True(t, pc.Resolve("a", Reply{Body: []byte("ok")}))
	assert.Equal(t, []byte("ok"), (<-ch).Body)
	assert.Zero(t, pc.Len())

	assert.False(t, pc.Resolve("a", Reply{}), "second reply is dropped")
}

func TestPendingCalls_UnknownAndCanceled(t *testing.T) {
	pc := NewPendingCalls()
	assert.False(t, pc.Resolve("nobody", Reply{}))

	pc.Register("b")
	pc.Cancel("b")
	assert.False(t, pc.Resolve("b", Reply{}))
	pc.Cancel("b")
	assert.Zero(t, pc.Len())
}

func TestPendingCalls_Concurrent(t *testing.T) {
	pc := NewPendingCalls()
	const n = 100

	chans := make([]<-chan Reply, n)
	for i := 0; i < n; i++ {
		chans[i] = pc.Register(fmt.Sprint(i))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pc.Resolve(fmt.Sprint(i), Reply{Body: []byte(fmt.Sprint(i))})
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.Equal(t, fmt.Sprint(i), string((<-chans[i]).Body))
	}
	assert.Zero(t, pc.Len())
}
