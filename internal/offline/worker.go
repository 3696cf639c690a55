package offline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"caotun-spin-backend/internal/metrics"

	"github.com/rs/zerolog/log"
)

// State is the worker lifecycle stage
type State int

const (
	StateNew State = iota
	StateInstalled
	StateActivated
)

// Worker applies the offline cache policy to GET requests once activated.
// Other methods, and every request before activation, go straight to the network.
type Worker struct {
	next        http.RoundTripper
	storage     CacheStorage
	staticName  string
	dynamicName string

	mu    sync.RWMutex
	state State

	writes sync.WaitGroup
}

// NewWorker wraps next with the cache policy. A nil next means http.DefaultTransport.
func NewWorker(next http.RoundTripper, storage CacheStorage, version string) *Worker {
	if next == nil {
		next = http.DefaultTransport
	}
	static, dynamic := PartitionNames(version)
	return &Worker{
		next:        next,
		storage:     storage,
		staticName:  static,
		dynamicName: dynamic,
	}
}

// State returns the current lifecycle stage
func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Install precaches the app shell from origin into the static partition, purges stale
// partitions and activates immediately. Nothing is stored unless every shell fetch succeeds.
func (w *Worker) Install(ctx context.Context, origin string) error {
	base, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("failed to parse origin: %w", err)
	}

	fetched := make(map[string]*CachedResponse, len(precacheURLs))
	for _, p := range precacheURLs {
		u := base.ResolveReference(&url.URL{Path: p})
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return fmt.Errorf("failed to build precache request: %w", err)
		}

		resp, err := w.next.RoundTrip(req)
		if err != nil {
			return fmt.Errorf("failed to precache %s: %w", p, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("failed to precache %s: status %d", p, resp.StatusCode)
		}
		entry, err := snapshot(resp)
		if err != nil {
			return fmt.Errorf("failed to precache %s: %w", p, err)
		}
		fetched[cacheKey(u)] = entry
	}

	cache, err := w.storage.Open(ctx, w.staticName)
	if err != nil {
		return fmt.Errorf("failed to open static cache: %w", err)
	}
	for key, entry := range fetched {
		if err := cache.Put(ctx, key, entry); err != nil {
			return fmt.Errorf("failed to store %s: %w", key, err)
		}
	}

	if err := w.purge(ctx); err != nil {
		return err
	}

	w.mu.Lock()
	w.state = StateInstalled
	w.mu.Unlock()

	log.Info().Str("cache", w.staticName).Int("entries", len(fetched)).Msg("App shell precached")

	// Skip waiting.
	return w.Activate(ctx)
}

// Activate purges stale partitions and starts intercepting requests
func (w *Worker) Activate(ctx context.Context) error {
	if err := w.purge(ctx); err != nil {
		return err
	}

	w.mu.Lock()
	w.state = StateActivated
	w.mu.Unlock()
	return nil
}

func (w *Worker) purge(ctx context.Context) error {
	names, err := w.storage.Keys(ctx)
	if err != nil {
		return fmt.Errorf("failed to list caches: %w", err)
	}
	for _, name := range names {
		if name == w.staticName || name == w.dynamicName {
			continue
		}
		if _, err := w.storage.Delete(ctx, name); err != nil {
			return fmt.Errorf("failed to delete cache %s: %w", name, err)
		}
		log.Info().Str("cache", name).Msg("Deleted stale cache")
	}
	return nil
}

// Flush waits for pending cache writes. Response bodies handed out by RoundTrip must be
// read to the end or closed first.
func (w *Worker) Flush() {
	w.writes.Wait()
}

// RoundTrip implements http.RoundTripper
func (w *Worker) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet || w.State() != StateActivated {
		return w.next.RoundTrip(req)
	}

	strategy := Classify(req.URL)
	switch strategy {
	case StrategyAPI:
		return w.api(req)
	case StrategyCacheFirst:
		return w.cacheFirst(req)
	default:
		return w.networkFirst(req)
	}
}

func (w *Worker) cacheFirst(req *http.Request) (*http.Response, error) {
	if cached, ok := w.match(req.Context(), cacheKey(req.URL)); ok {
		metrics.RecordOffline(string(StrategyCacheFirst), "cache")
		return cached.Response(req), nil
	}

	resp, err := w.next.RoundTrip(req)
	if err != nil {
		return w.shell(req, StrategyCacheFirst, err)
	}
	metrics.RecordOffline(string(StrategyCacheFirst), "network")
	return w.store(req, resp)
}

func (w *Worker) networkFirst(req *http.Request) (*http.Response, error) {
	resp, err := w.next.RoundTrip(req)
	if err == nil {
		metrics.RecordOffline(string(StrategyNetworkFirst), "network")
		return w.store(req, resp)
	}

	if cached, ok := w.match(req.Context(), cacheKey(req.URL)); ok {
		metrics.RecordOffline(string(StrategyNetworkFirst), "cache")
		return cached.Response(req), nil
	}
	return w.shell(req, StrategyNetworkFirst, err)
}

func (w *Worker) api(req *http.Request) (*http.Response, error) {
	resp, err := w.next.RoundTrip(req)
	if err == nil {
		metrics.RecordOffline(string(StrategyAPI), "network")
		return w.store(req, resp)
	}

	if cached, ok := w.match(req.Context(), cacheKey(req.URL)); ok {
		metrics.RecordOffline(string(StrategyAPI), "cache")
		return cached.Response(req), nil
	}
	metrics.RecordOffline(string(StrategyAPI), "error")
	return nil, err
}

// shell answers with the cached root document, or the network error when there is none
func (w *Worker) shell(req *http.Request, strategy Strategy, netErr error) (*http.Response, error) {
	if cached, ok := w.match(req.Context(), rootKey(req.URL)); ok {
		metrics.RecordOffline(string(strategy), "shell")
		return cached.Response(req), nil
	}
	metrics.RecordOffline(string(strategy), "error")
	return nil, netErr
}

func (w *Worker) match(ctx context.Context, key string) (*CachedResponse, bool) {
	cached, ok, err := w.storage.Match(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache lookup failed")
		return nil, false
	}
	return cached, ok
}

// store hands a 200 response back immediately and caches a copy of its body in the
// dynamic partition once the body has been read to the end. A body that fails midway is
// not cached.
func (w *Worker) store(req *http.Request, resp *http.Response) (*http.Response, error) {
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	key := cacheKey(req.URL)
	status, header := resp.StatusCode, resp.Header.Clone()
	// The request context may already be gone once the caller has its response.
	ctx := context.WithoutCancel(req.Context())

	w.writes.Add(1)
	resp.Body = newTeeBody(resp.Body, func(body []byte, err error) {
		if err != nil {
			w.writes.Done()
			log.Warn().Err(err).Str("key", key).Msg("Response body failed, not cached")
			return
		}

		entry := &CachedResponse{StatusCode: status, Header: header, Body: body}
		go func() {
			defer w.writes.Done()

			cache, err := w.storage.Open(ctx, w.dynamicName)
			if err == nil {
				err = cache.Put(ctx, key, entry)
			}
			if err != nil {
				log.Warn().Err(err).Str("key", key).Msg("Failed to cache response")
			}
		}()
	})

	return resp, nil
}

// teeBody copies the stream into a buffer as the caller reads it. Closing before EOF
// drains the rest in the background so the copy is still completed.
type teeBody struct {
	rc   io.ReadCloser
	buf  bytes.Buffer
	once sync.Once
	done func(body []byte, err error)

	mu     sync.Mutex
	closed bool
}

func newTeeBody(rc io.ReadCloser, done func(body []byte, err error)) *teeBody {
	return &teeBody{rc: rc, done: done}
}

func (t *teeBody) Read(p []byte) (int, error) {
	n, err := t.rc.Read(p)
	if n > 0 {
		t.buf.Write(p[:n])
	}
	switch {
	case err == io.EOF:
		t.finish(nil)
	case err != nil:
		t.finish(err)
	}
	return n, err
}

func (t *teeBody) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	finished := true
	t.once.Do(func() { finished = false })
	if finished {
		return t.rc.Close()
	}

	go func() {
		_, err := io.Copy(&t.buf, t.rc)
		t.rc.Close()
		t.deliver(err)
	}()
	return nil
}

func (t *teeBody) finish(err error) {
	t.once.Do(func() { t.deliver(err) })
}

func (t *teeBody) deliver(err error) {
	if err != nil {
		t.done(nil, fmt.Errorf("failed to read response body: %w", err))
		return
	}
	t.done(t.buf.Bytes(), nil)
}
