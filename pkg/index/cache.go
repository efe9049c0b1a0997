package index

import (
	"context"
	"strconv"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/qdrant/go-client/qdrant"
)

// Connection caches hold one client per URL for the process lifetime, shared by
// every tenant. First use creates the client under a double-checked lock so
// concurrent first callers never construct two. Reset exists for tests only.

var (
	connMu        sync.RWMutex
	graphDrivers  = map[string]neo4j.DriverWithContext{}
	vectorClients = map[string]*qdrant.Client{}

	// Overridable in tests; counts observable via Constructions.
	dialGraph = func(url, user, password string) (neo4j.DriverWithContext, error) {
		return neo4j.NewDriverWithContext(url, neo4j.BasicAuth(user, password, ""))
	}
	dialVector = func(host string, port int) (*qdrant.Client, error) {
		return qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	}
	constructions int
)

func cachedGraphDriver(url, user, password string) (neo4j.DriverWithContext, error) {
	connMu.RLock()
	if d, ok := graphDrivers[url]; ok {
		connMu.RUnlock()
		return d, nil
	}
	connMu.RUnlock()

	connMu.Lock()
	defer connMu.Unlock()
	if d, ok := graphDrivers[url]; ok { // double-checked
		return d, nil
	}
	d, err := dialGraph(url, user, password)
	if err != nil {
		return nil, err
	}
	graphDrivers[url] = d
	constructions++
	return d, nil
}

func cachedVectorClient(host string, port int) (*qdrant.Client, error) {
	key := vectorCacheKey(host, port)
	connMu.RLock()
	if c, ok := vectorClients[key]; ok {
		connMu.RUnlock()
		return c, nil
	}
	connMu.RUnlock()

	connMu.Lock()
	defer connMu.Unlock()
	if c, ok := vectorClients[key]; ok { // double-checked
		return c, nil
	}
	c, err := dialVector(host, port)
	if err != nil {
		return nil, err
	}
	vectorClients[key] = c
	constructions++
	return c, nil
}

func vectorCacheKey(host string, port int) string {
	return host + ":" + strconv.Itoa(port)
}

// Constructions reports how many cached connections have been created since
// process start (or the last ResetConnections). Intended for tests.
func Constructions() int {
	connMu.RLock()
	defer connMu.RUnlock()
	return constructions
}

// ResetConnections closes and forgets every cached connection. Test hook;
// production tears connections down only at process exit.
func ResetConnections(ctx context.Context) {
	connMu.Lock()
	defer connMu.Unlock()
	for url, d := range graphDrivers {
		_ = d.Close(ctx)
		delete(graphDrivers, url)
	}
	for key, c := range vectorClients {
		_ = c.Close()
		delete(vectorClients, key)
	}
	constructions = 0
}
