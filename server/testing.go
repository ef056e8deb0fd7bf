/*
	This file contains functions useful for testing catvol handlers in other packages.
	They cannot live in a _test.go file since they would then be unavailable to test
	files of other packages, so they are exported and contain the "Test" keyword.
*/

package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/janelia-flyem/catvol/sqlstore"
	"github.com/janelia-flyem/catvol/storage"
)

// TestHTTPResponse returns the recorded response of a handler to a test request.
// Use TestHTTP if you just want the response body bytes.
func TestHTTPResponse(t *testing.T, h http.Handler, method, urlStr string, payload io.Reader) *httptest.ResponseRecorder {
	req, err := http.NewRequest(method, urlStr, payload)
	if err != nil {
		t.Fatalf("Unsuccessful %s on %q: %v\n", method, urlStr, err)
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

// TestHTTP returns the response body bytes for a test request, making sure the
// response has status OK.
func TestHTTP(t *testing.T, h http.Handler, method, urlStr string, payload io.Reader) []byte {
	resp := TestHTTPResponse(t, h, method, urlStr, payload)
	if resp.Code != http.StatusOK {
		t.Fatalf("Bad server response (%d) to %s on %q: %s\n", resp.Code, method, urlStr, resp.Body.String())
	}
	return resp.Body.Bytes()
}

// TestBadHTTP expects a HTTP response with an error status code.
func TestBadHTTP(t *testing.T, h http.Handler, method, urlStr string, payload io.Reader) {
	resp := TestHTTPResponse(t, h, method, urlStr, payload)
	if resp.Code == http.StatusOK {
		t.Fatalf("Expected bad server response to %s on %q, got %d instead.\n", method, urlStr, resp.Code)
	}
}

// TestPostForm posts form values and returns the recorded response.
func TestPostForm(t *testing.T, h http.Handler, urlStr string, values url.Values) *httptest.ResponseRecorder {
	req, err := http.NewRequest("POST", urlStr, strings.NewReader(values.Encode()))
	if err != nil {
		t.Fatalf("Unsuccessful POST on %q: %v\n", urlStr, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

// NewTestService returns a service over a fresh SQLite database in a temporary
// directory and an in-memory badger store.  Both are closed when the test ends.
func NewTestService(t *testing.T, opts Options) (*Service, *sqlstore.DB, storage.Store) {
	db, err := sqlstore.Open(context.Background(), sqlstore.Config{
		Driver: sqlstore.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "catvol.db"),
	})
	if err != nil {
		t.Fatalf("Couldn't open test database: %v\n", err)
	}
	kv, err := storage.Open(storage.Config{Engine: "badger", InMemory: true})
	if err != nil {
		db.Close()
		t.Fatalf("Couldn't open test store: %v\n", err)
	}
	t.Cleanup(func() {
		kv.Close()
		db.Close()
	})
	return NewService(db, kv, opts), db, kv
}
