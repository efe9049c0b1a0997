package index

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	neo4j.DriverWithContext
}

func (fakeDriver) Close(context.Context) error { return nil }

func TestCachedVectorClient_SingleConstructionUnderConcurrency(t *testing.T) {
	ResetConnections(context.Background())
	t.Cleanup(func() { ResetConnections(context.Background()) })

	var dials atomic.Int32
	orig := dialVector
	dialVector = func(host string, port int) (*qdrant.Client, error) {
		dials.Add(1)
		time.Sleep(10 * time.Millisecond) // widen the race window
		return &qdrant.Client{}, nil
	}
	t.Cleanup(func() { dialVector = orig })

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cachedVectorClient("localhost", 6334)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), dials.Load())
	assert.Equal(t, 1, Constructions())
}

func TestCachedGraphDriver_ReusedPerURL(t *testing.T) {
	ResetConnections(context.Background())
	t.Cleanup(func() { ResetConnections(context.Background()) })

	var dials atomic.Int32
	orig := dialGraph
	dialGraph = func(url, user, password string) (neo4j.DriverWithContext, error) {
		dials.Add(1)
		return fakeDriver{}, nil
	}
	t.Cleanup(func() { dialGraph = orig })

	a, err := cachedGraphDriver("bolt://localhost:7687", "neo4j", "pw")
	require.NoError(t, err)
	b, err := cachedGraphDriver("bolt://localhost:7687", "neo4j", "pw")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, int32(1), dials.Load())

	_, err = cachedGraphDriver("bolt://other:7687", "neo4j", "pw")
	require.NoError(t, err)
	assert.Equal(t, int32(2), dials.Load())
}

func TestResetConnections_ClearsCache(t *testing.T) {
	ResetConnections(context.Background())
	var dials atomic.Int32
	orig := dialGraph
	dialGraph = func(url, user, password string) (neo4j.DriverWithContext, error) {
		dials.Add(1)
		return fakeDriver{}, nil
	}
	t.Cleanup(func() {
		dialGraph = orig
		ResetConnections(context.Background())
	})

	_, _ = cachedGraphDriver("bolt://localhost:7687", "neo4j", "pw")
	ResetConnections(context.Background())
	assert.Equal(t, 0, Constructions())
	_, _ = cachedGraphDriver("bolt://localhost:7687", "neo4j", "pw")
	assert.Equal(t, int32(2), dials.Load())
}
