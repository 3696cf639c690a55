package offline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const origin = "https://spin.example.com"

var errOffline = errors.New("network unreachable")

// fakeNetwork answers from a table of path -> body and counts calls per path
type fakeNetwork struct {
	mu      sync.Mutex
	bodies  map[string]string
	status  map[string]int
	offline bool
	calls   map[string]int
	methods []string
	// streams override bodies for a single response
	streams map[string]io.ReadCloser
}

func newFakeNetwork() *fakeNetwork {
	bodies := make(map[string]string)
	for _, p := range PrecacheURLs() {
		bodies[p] = "shell:" + p
	}
	return &fakeNetwork{
		bodies:  bodies,
		status:  make(map[string]int),
		calls:   make(map[string]int),
		streams: make(map[string]io.ReadCloser),
	}
}

func (n *fakeNetwork) RoundTrip(req *http.Request) (*http.Response, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.calls[req.URL.Path]++
	n.methods = append(n.methods, req.Method)
	if n.offline {
		return nil, errOffline
	}

	body, ok := n.bodies[req.URL.Path]
	status := http.StatusOK
	if s, set := n.status[req.URL.Path]; set {
		status = s
	} else if !ok {
		status = http.StatusNotFound
	}

	var rc io.ReadCloser = io.NopCloser(strings.NewReader(body))
	if stream, ok := n.streams[req.URL.Path]; ok {
		delete(n.streams, req.URL.Path)
		rc = stream
		status = http.StatusOK
	}

	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		Body:       rc,
		Request:    req,
	}, nil
}

func (n *fakeNetwork) setStream(path string, rc io.ReadCloser) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.streams[path] = rc
}

func (n *fakeNetwork) setOffline(offline bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offline = offline
}

func (n *fakeNetwork) callCount(path string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[path]
}

func cacheKeys(c Cache) []string {
	mc := c.(*memoryCache)
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	keys := make([]string, 0, len(mc.entries))
	for k := range mc.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// brokenBody yields data, then fails
type brokenBody struct {
	data string
	err  error
	read bool
}

func (b *brokenBody) Read(p []byte) (int, error) {
	if b.read {
		return 0, b.err
	}
	b.read = true
	return copy(p, b.data), nil
}

func (b *brokenBody) Close() error { return nil }

func installedWorker(t *testing.T, network *fakeNetwork) (*Worker, *MemoryStorage) {
	t.Helper()
	storage := NewMemoryStorage()
	w := NewWorker(network, storage, "v1")
	require.NoError(t, w.Install(context.Background(), origin))
	return w, storage
}

func get(t *testing.T, w *Worker, path string) (*http.Response, string, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, origin+path, nil)
	require.NoError(t, err)

	resp, err := w.RoundTrip(req)
	if err != nil {
		return nil, "", err
	}
	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, readErr)
	return resp, string(body), nil
}

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want Strategy
	}{
		{"/app.js", StrategyCacheFirst},
		{"/img/logo.PNG", StrategyCacheFirst},
		{"/fonts/a.woff2", StrategyCacheFirst},
		{"/", StrategyNetworkFirst},
		{"/coupons", StrategyNetworkFirst},
		{"/favicon.ico", StrategyNetworkFirst},
		{"/api/v1/coupons", StrategyAPI},
		{"/api/v1/restaurants/1/image.png", StrategyAPI},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(&url.URL{Path: tt.path}))
		})
	}
}

func TestInstall_PrecachesShellAndPurgesStaleCaches(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	_, err := storage.Open(ctx, "caotun-static-v0")
	require.NoError(t, err)
	_, err = storage.Open(ctx, "caotun-dynamic-v0")
	require.NoError(t, err)

	w := NewWorker(newFakeNetwork(), storage, "v1")
	require.NoError(t, w.Install(ctx, origin))

	assert.Equal(t, StateActivated, w.State())

	names, err := storage.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"caotun-static-v1"}, names)

	static, err := storage.Open(ctx, "caotun-static-v1")
	require.NoError(t, err)
	keys := cacheKeys(static)
	assert.Len(t, keys, len(PrecacheURLs()))
	assert.Contains(t, keys, origin+"/")
	assert.Contains(t, keys, origin+"/favicon.ico")
}

func TestInstall_FailsWhenAnyShellResourceMissing(t *testing.T) {
	network := newFakeNetwork()
	delete(network.bodies, "/manifest.json")

	storage := NewMemoryStorage()
	w := NewWorker(network, storage, "v1")
	err := w.Install(context.Background(), origin)
	require.Error(t, err)

	assert.Equal(t, StateNew, w.State())
	names, err := storage.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestRoundTrip_NotInterceptedBeforeActivation(t *testing.T) {
	network := newFakeNetwork()
	network.bodies["/logo.png"] = "png"
	w := NewWorker(network, NewMemoryStorage(), "v1")

	_, body, err := get(t, w, "/logo.png")
	require.NoError(t, err)
	assert.Equal(t, "png", body)

	w.Flush()
	_, _, err = get(t, w, "/logo.png")
	require.NoError(t, err)
	assert.Equal(t, 2, network.callCount("/logo.png"))
}

func TestCacheFirst_ServesCachedPNGWithoutNetwork(t *testing.T) {
	network := newFakeNetwork()
	w, _ := installedWorker(t, network)
	before := network.callCount("/icon-192.png")

	resp, body, err := get(t, w, "/icon-192.png")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "shell:/icon-192.png", body)
	assert.Equal(t, before, network.callCount("/icon-192.png"))
}

func TestCacheFirst_MissFetchesAndStores(t *testing.T) {
	network := newFakeNetwork()
	network.bodies["/assets/app.js"] = "console.log(1)"
	w, _ := installedWorker(t, network)

	_, body, err := get(t, w, "/assets/app.js")
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", body)
	w.Flush()

	network.setOffline(true)
	_, body, err = get(t, w, "/assets/app.js")
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", body)
	assert.Equal(t, 1, network.callCount("/assets/app.js"))
}

func TestCacheFirst_OfflineMissFallsBackToShell(t *testing.T) {
	network := newFakeNetwork()
	w, _ := installedWorker(t, network)
	network.setOffline(true)

	_, body, err := get(t, w, "/assets/missing.css")
	require.NoError(t, err)
	assert.Equal(t, "shell:/", body)
}

func TestNetworkFirst_OnlyCachesOK(t *testing.T) {
	network := newFakeNetwork()
	network.bodies["/coupons"] = "coupons page"
	network.bodies["/broken"] = "oops"
	network.status["/broken"] = http.StatusInternalServerError
	w, _ := installedWorker(t, network)

	resp, _, err := get(t, w, "/broken")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	_, _, err = get(t, w, "/coupons")
	require.NoError(t, err)
	w.Flush()

	network.setOffline(true)

	_, body, err := get(t, w, "/coupons")
	require.NoError(t, err)
	assert.Equal(t, "coupons page", body)

	// Not cached: the shell stands in.
	_, body, err = get(t, w, "/broken")
	require.NoError(t, err)
	assert.Equal(t, "shell:/", body)
}

func TestNetworkFirst_NoShellPropagatesError(t *testing.T) {
	network := newFakeNetwork()
	network.setOffline(true)
	w := NewWorker(network, NewMemoryStorage(), "v1")
	require.NoError(t, w.Activate(context.Background()))

	_, _, err := get(t, w, "/coupons")
	assert.ErrorIs(t, err, errOffline)
}

func TestAPI_ServesLastResponseOffline(t *testing.T) {
	network := newFakeNetwork()
	network.bodies["/api/v1/coupons"] = `{"coupons":[]}`
	w, _ := installedWorker(t, network)

	_, body, err := get(t, w, "/api/v1/coupons")
	require.NoError(t, err)
	assert.Equal(t, `{"coupons":[]}`, body)
	w.Flush()

	network.setOffline(true)
	_, body, err = get(t, w, "/api/v1/coupons")
	require.NoError(t, err)
	assert.Equal(t, `{"coupons":[]}`, body)
}

func TestAPI_UncachedFailurePropagates(t *testing.T) {
	network := newFakeNetwork()
	w, _ := installedWorker(t, network)
	network.setOffline(true)

	resp, _, err := get(t, w, "/api/v1/meal-period")
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, errOffline)
}

func TestAPI_QueryIsPartOfTheKey(t *testing.T) {
	network := newFakeNetwork()
	network.bodies["/api/v1/coupons"] = "list"
	w, _ := installedWorker(t, network)

	_, _, err := get(t, w, "/api/v1/coupons?page=1")
	require.NoError(t, err)
	w.Flush()

	network.setOffline(true)
	_, _, err = get(t, w, "/api/v1/coupons?page=2")
	assert.ErrorIs(t, err, errOffline)
}

func TestRoundTrip_PostIsNeverIntercepted(t *testing.T) {
	network := newFakeNetwork()
	w, storage := installedWorker(t, network)

	req, err := http.NewRequest(http.MethodPost, origin+"/icon-192.png", strings.NewReader("x"))
	require.NoError(t, err)
	resp, err := w.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()
	w.Flush()

	assert.Equal(t, 2, network.callCount("/icon-192.png"))

	names, err := storage.Keys(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, names, "caotun-dynamic-v1")

	network.setOffline(true)
	req, err = http.NewRequest(http.MethodPost, origin+"/api/v1/spins", nil)
	require.NoError(t, err)
	_, err = w.RoundTrip(req)
	assert.ErrorIs(t, err, errOffline)
}

func TestNewManifest(t *testing.T) {
	m := NewManifest("v3")
	assert.Equal(t, "caotun-static-v3", m.StaticCache)
	assert.Equal(t, "caotun-dynamic-v3", m.DynamicCache)
	assert.Equal(t, PrecacheURLs(), m.Precache)
	assert.Len(t, m.StaticExtensions, 12)
}

func TestStore_ReturnsResponseBeforeBodyCompletes(t *testing.T) {
	network := newFakeNetwork()
	w, _ := installedWorker(t, network)

	pr, pw := io.Pipe()
	network.setStream("/coupons", pr)

	req, err := http.NewRequest(http.MethodGet, origin+"/coupons", nil)
	require.NoError(t, err)

	type result struct {
		resp *http.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := w.RoundTrip(req)
		done <- result{resp, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-time.After(2 * time.Second):
		pw.Close()
		t.Fatal("RoundTrip waited for the whole body")
	}
	require.NoError(t, res.err)
	assert.Equal(t, http.StatusOK, res.resp.StatusCode)

	go func() {
		pw.Write([]byte("<html>"))
		pw.Write([]byte("</html>"))
		pw.Close()
	}()
	body, err := io.ReadAll(res.resp.Body)
	require.NoError(t, err)
	require.NoError(t, res.resp.Body.Close())
	assert.Equal(t, "<html></html>", string(body))
	w.Flush()

	network.setOffline(true)
	_, body2, err := get(t, w, "/coupons")
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", body2)
}

func TestStore_FailedBodyIsNotCached(t *testing.T) {
	network := newFakeNetwork()
	w, _ := installedWorker(t, network)

	resetErr := errors.New("connection reset mid-body")
	network.setStream("/coupons", &brokenBody{data: "part", err: resetErr})

	req, err := http.NewRequest(http.MethodGet, origin+"/coupons", nil)
	require.NoError(t, err)
	resp, err := w.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = io.ReadAll(resp.Body)
	assert.ErrorIs(t, err, resetErr)
	resp.Body.Close()
	w.Flush()

	network.setOffline(true)
	_, body, err := get(t, w, "/coupons")
	require.NoError(t, err)
	assert.Equal(t, "shell:/", body)
}

func TestStore_EarlyCloseStillCaches(t *testing.T) {
	network := newFakeNetwork()
	network.bodies["/api/v1/coupons"] = `{"coupons":[1,2,3]}`
	w, _ := installedWorker(t, network)

	req, err := http.NewRequest(http.MethodGet, origin+"/api/v1/coupons", nil)
	require.NoError(t, err)
	resp, err := w.RoundTrip(req)
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(resp.Body, buf)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	w.Flush()

	network.setOffline(true)
	_, body, err := get(t, w, "/api/v1/coupons")
	require.NoError(t, err)
	assert.Equal(t, `{"coupons":[1,2,3]}`, body)
}
