// Package redcaptest provides an in-memory REDCap API server for
// exercising clients in tests. The real API multiplexes every operation
// over one POST endpoint and dispatches on the content form parameter; the
// mock does the same, with per-content canned responses.
package redcaptest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"

	"github.com/goccy/go-json"
)

// Received records one request the server saw. FileName and FileContent
// are set when the request carried a multipart file upload.
type Received struct {
	Form        url.Values
	Header      http.Header
	FileName    string
	FileContent []byte
}

// Server is a mock REDCap API endpoint backed by httptest. It always runs
// TLS with a self-signed certificate, matching the deployments the client's
// disabled-verification default exists for.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	received []Received
	handlers map[string]http.HandlerFunc
}

// NewServer starts a mock REDCap server. Contents without a registered
// handler answer an empty json array.
func NewServer() *Server {
	s := &Server{handlers: make(map[string]http.HandlerFunc)}
	s.Server = httptest.NewTLSServer(http.HandlerFunc(s.dispatch))
	return s
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	rec := Received{Form: r.PostForm, Header: r.Header.Clone()}
	if r.MultipartForm != nil && len(r.MultipartForm.File["file"]) > 0 {
		part := r.MultipartForm.File["file"][0]
		if f, err := part.Open(); err == nil {
			rec.FileName = part.Filename
			rec.FileContent, _ = io.ReadAll(f)
			_ = f.Close()
		}
	}

	s.mu.Lock()
	s.received = append(s.received, rec)
	handler := s.handlers[r.PostFormValue("content")]
	s.mu.Unlock()

	if handler != nil {
		handler(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte("[]"))
}

// Handle installs a handler for one content value.
func (s *Server) Handle(content string, handler http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[content] = handler
}

// RespondJSON installs a handler answering the given value, marshaled as
// json, for one content value.
func (s *Server) RespondJSON(content string, value any) {
	body, err := json.Marshal(value)
	if err != nil {
		panic(err)
	}
	s.RespondRaw(content, "application/json", body)
}

// RespondRaw installs a handler answering the given bytes verbatim for one
// content value.
func (s *Server) RespondRaw(content, contentType string, body []byte) {
	s.Handle(content, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(body)
	})
}

// RespondStatus installs a handler answering the given status and body for
// one content value.
func (s *Server) RespondStatus(content string, status int, body []byte) {
	s.Handle(content, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write(body)
	})
}

// Received returns a copy of every request the server has seen, in order.
func (s *Server) Received() []Received {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Received, len(s.received))
	copy(out, s.received)
	return out
}

// Last returns the most recent request, or the zero value when none
// arrived yet.
func (s *Server) Last() Received {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.received) == 0 {
		return Received{}
	}
	return s.received[len(s.received)-1]
}
