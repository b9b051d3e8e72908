// Package fixtureserver provides a tiny net/http/httptest-backed REST
// service used only by this module's own integration tests, never by
// cmd/chimerascript (spec §1 characterizes the fixture server as a
// test-only collaborator). It lets internal/httpclient's tests exercise
// a real HTTP round trip instead of only the
// recording internal/testing/fakeclient.
package fixtureserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// Server is an in-memory "resources" REST fixture: POST creates a
// resource and assigns it an id, GET/DELETE/PUT address one by id. It
// also exposes /echo, which reflects the request's method, query, and
// JSON body back as the response body, for scripts that only need to
// observe what they sent.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	resources map[string]map[string]any
	nextID    int
}

// New starts a fixture server and returns it. Call Close when done.
func New() *Server {
	s := &Server{resources: make(map[string]map[string]any), nextID: 1}
	mux := http.NewServeMux()
	mux.HandleFunc("/echo", s.handleEcho)
	mux.HandleFunc("/resources", s.handleCollection)
	mux.HandleFunc("/resources/", s.handleItem)
	s.Server = httptest.NewServer(mux)
	return s
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	query := map[string]any{}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"method": r.Method,
		"query":  query,
		"body":   body,
	})
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var body map[string]any
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		if body == nil {
			body = map[string]any{}
		}
		s.mu.Lock()
		id := strconv.Itoa(s.nextID)
		s.nextID++
		body["id"] = id
		s.resources[id] = body
		s.mu.Unlock()
		writeJSON(w, http.StatusCreated, body)
	case http.MethodGet:
		s.mu.Lock()
		all := make([]map[string]any, 0, len(s.resources))
		for _, v := range s.resources {
			all = append(all, v)
		}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, all)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/resources/")
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		res, ok := s.resources[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, res)
	case http.MethodPut:
		var body map[string]any
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		if body == nil {
			body = map[string]any{}
		}
		body["id"] = id
		s.resources[id] = body
		writeJSON(w, http.StatusOK, body)
	case http.MethodDelete:
		res, ok := s.resources[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(s.resources, id)
		writeJSON(w, http.StatusOK, res)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Has reports whether a resource with the given id is currently stored,
// letting a test assert that a teardown DELETE actually ran.
func (s *Server) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.resources[id]
	return ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
