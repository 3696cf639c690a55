// Package offline implements the client's offline cache policy as an http.RoundTripper.
package offline

import (
	"net/url"
	"path"
	"strings"
)

// Strategy names how a request is served
type Strategy string

const (
	// StrategyCacheFirst serves static assets from cache before touching the network
	StrategyCacheFirst Strategy = "cache_first"
	// StrategyNetworkFirst serves pages from the network and falls back to cache
	StrategyNetworkFirst Strategy = "network_first"
	// StrategyAPI passes API calls through, caching successes for offline reads
	StrategyAPI Strategy = "api"
)

const partitionPrefix = "caotun"

var staticExtensions = map[string]struct{}{
	".js": {}, ".css": {}, ".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {},
	".webp": {}, ".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {},
}

var precacheURLs = []string{
	"/",
	"/index.html",
	"/manifest.json",
	"/icon-192.png",
	"/icon-512.png",
	"/apple-touch-icon.png",
	"/favicon.ico",
}

// PrecacheURLs returns the app shell paths stored on install
func PrecacheURLs() []string {
	urls := make([]string, len(precacheURLs))
	copy(urls, precacheURLs)
	return urls
}

// StaticExtensions returns the cache-first file extensions, sorted
func StaticExtensions() []string {
	return []string{".css", ".eot", ".gif", ".jpeg", ".jpg", ".js", ".png", ".svg", ".ttf", ".webp", ".woff", ".woff2"}
}

// Classify picks the strategy for a request URL. API paths win over static extensions.
func Classify(u *url.URL) Strategy {
	if strings.Contains(u.Path, "/api/") {
		return StrategyAPI
	}
	if _, ok := staticExtensions[strings.ToLower(path.Ext(u.Path))]; ok {
		return StrategyCacheFirst
	}
	return StrategyNetworkFirst
}

// PartitionNames returns the static and dynamic partition names for a cache version
func PartitionNames(version string) (static, dynamic string) {
	return partitionPrefix + "-static-" + version, partitionPrefix + "-dynamic-" + version
}

// Manifest describes the policy so clients can verify they run the server's version
type Manifest struct {
	Version          string   `json:"version"`
	StaticCache      string   `json:"static_cache"`
	DynamicCache     string   `json:"dynamic_cache"`
	Precache         []string `json:"precache"`
	StaticExtensions []string `json:"static_extensions"`
	APIPathMarker    string   `json:"api_path_marker"`
}

// NewManifest builds the manifest for a cache version
func NewManifest(version string) Manifest {
	static, dynamic := PartitionNames(version)
	return Manifest{
		Version:          version,
		StaticCache:      static,
		DynamicCache:     dynamic,
		Precache:         PrecacheURLs(),
		StaticExtensions: StaticExtensions(),
		APIPathMarker:    "/api/",
	}
}

// cacheKey identifies a request in the cache: its URL without fragment
func cacheKey(u *url.URL) string {
	k := *u
	k.Fragment = ""
	k.RawFragment = ""
	return k.String()
}

// rootKey is the key of the cached root document on u's origin
func rootKey(u *url.URL) string {
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String()
}
