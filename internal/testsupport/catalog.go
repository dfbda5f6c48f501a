package testsupport

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// CatalogServer serves catalogue documents keyed by request path. Every
// response carries a Last-Modified header of Modified, which defaults to now.
type CatalogServer struct {
	*httptest.Server

	mu       sync.Mutex
	docs     map[string]string
	modified time.Time
	undated  bool
	hits     map[string]int
}

// NewCatalogServer starts a server and registers its shutdown with t.
func NewCatalogServer(t testing.TB) *CatalogServer {
	t.Helper()
	cs := &CatalogServer{docs: map[string]string{}, hits: map[string]int{}}
	cs.Server = httptest.NewServer(http.HandlerFunc(cs.serve))
	t.Cleanup(cs.Close)
	return cs
}

// Set publishes body at path.
func (cs *CatalogServer) Set(path, body string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.docs[path] = body
}

// SetModified pins the Last-Modified header. A zero time restores "now".
func (cs *CatalogServer) SetModified(ts time.Time) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.modified = ts
	cs.undated = false
}

// OmitModified stops sending Last-Modified.
func (cs *CatalogServer) OmitModified() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.undated = true
}

// Hits returns how many times path was requested.
func (cs *CatalogServer) Hits(path string) int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.hits[path]
}

func (cs *CatalogServer) serve(w http.ResponseWriter, r *http.Request) {
	cs.mu.Lock()
	cs.hits[r.URL.Path]++
	body, ok := cs.docs[r.URL.Path]
	modified, undated := cs.modified, cs.undated
	cs.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if !undated {
		if modified.IsZero() {
			modified = time.Now()
		}
		w.Header().Set("Last-Modified", modified.UTC().Format(http.TimeFormat))
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}
