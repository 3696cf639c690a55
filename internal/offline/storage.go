package offline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// CachedResponse is a stored copy of a successful GET response
type CachedResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// snapshot drains and closes resp.Body
func snapshot(resp *http.Response) (*CachedResponse, error) {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &CachedResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}

// Response rebuilds an *http.Response answering req
func (c *CachedResponse) Response(req *http.Request) *http.Response {
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", c.StatusCode, http.StatusText(c.StatusCode)),
		StatusCode:    c.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        c.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(c.Body)),
		ContentLength: int64(len(c.Body)),
		Request:       req,
	}
}

// Cache is one named partition keyed by request URL
type Cache interface {
	Match(ctx context.Context, key string) (*CachedResponse, bool, error)
	Put(ctx context.Context, key string, resp *CachedResponse) error
}

// CacheStorage owns the named partitions
type CacheStorage interface {
	// Open returns the named partition, creating it if needed.
	Open(ctx context.Context, name string) (Cache, error)
	Keys(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) (bool, error)
	// Match looks key up across every partition.
	Match(ctx context.Context, key string) (*CachedResponse, bool, error)
}

// MemoryStorage is a process-local CacheStorage
type MemoryStorage struct {
	mu     sync.RWMutex
	caches map[string]*memoryCache
	order  []string
}

// NewMemoryStorage creates an empty storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{caches: make(map[string]*memoryCache)}
}

func (s *MemoryStorage) Open(_ context.Context, name string) (Cache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.caches[name]
	if !ok {
		c = &memoryCache{entries: make(map[string]*CachedResponse)}
		s.caches[name] = c
		s.order = append(s.order, name)
	}
	return c, nil
}

func (s *MemoryStorage) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, len(s.order))
	copy(keys, s.order)
	return keys, nil
}

func (s *MemoryStorage) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.caches[name]; !ok {
		return false, nil
	}
	delete(s.caches, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// Match searches partitions in creation order
func (s *MemoryStorage) Match(ctx context.Context, key string) (*CachedResponse, bool, error) {
	s.mu.RLock()
	caches := make([]*memoryCache, 0, len(s.order))
	for _, name := range s.order {
		caches = append(caches, s.caches[name])
	}
	s.mu.RUnlock()

	for _, c := range caches {
		if resp, ok, _ := c.Match(ctx, key); ok {
			return resp, true, nil
		}
	}
	return nil, false, nil
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]*CachedResponse
}

func (c *memoryCache) Match(_ context.Context, key string) (*CachedResponse, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	resp, ok := c.entries[key]
	return resp, ok, nil
}

func (c *memoryCache) Put(_ context.Context, key string, resp *CachedResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = resp
	return nil
}
