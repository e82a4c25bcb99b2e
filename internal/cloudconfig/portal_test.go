package cloudconfig_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/seantiz/keeper/internal/cloudconfig"
	"github.com/seantiz/keeper/internal/model"
)

const (
	testDevice = "dev-1234"
	testToken  = "s3cret"
)

// fakePortal serves one device's config document with If-Match versioning.
type fakePortal struct {
	mu         sync.Mutex
	doc        *model.CloudDocument
	puts       int
	afterFetch func(p *fakePortal)
}

func newFakePortal(t *testing.T) (*fakePortal, *httptest.Server) {
	t.Helper()
	p := &fakePortal{}
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)
	return p, srv
}

// set replaces the document with a correctly checksummed one.
func (p *fakePortal) set(version int64, schema string, settings map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replace(version, schema, settings)
}

// replace is set for callers already holding mu, such as afterFetch hooks.
func (p *fakePortal) replace(version int64, schema string, settings map[string]string) {
	p.doc = &model.CloudDocument{
		Version:  version,
		Schema:   schema,
		Checksum: cloudconfig.Checksum(settings),
		Settings: settings,
	}
}

func (p *fakePortal) current() model.CloudDocument {
	p.mu.Lock()
	defer p.mu.Unlock()
	return *p.doc
}

func (p *fakePortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/devices/"+testDevice+"/config" {
		http.NotFound(w, r)
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+testToken {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		if p.doc == nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(p.doc)
		if hook := p.afterFetch; hook != nil {
			p.afterFetch = nil
			hook(p)
		}
	case http.MethodPut:
		var current int64
		if p.doc != nil {
			current = p.doc.Version
		}
		base, err := strconv.ParseInt(r.Header.Get("If-Match"), 10, 64)
		if err != nil || base != current {
			http.Error(w, "version mismatch", http.StatusConflict)
			return
		}
		var doc model.CloudDocument
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		doc.Version = current + 1
		p.doc = &doc
		p.puts++
		json.NewEncoder(w).Encode(map[string]int64{"version": doc.Version})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
