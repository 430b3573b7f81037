// Package preview serves a generated document through Swagger UI.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	genspec "github.com/mark3labs/resource-x/internal/spec"
)

const (
	DocsPath = "/api-docs"
	SpecPath = DocsPath + "/swagger.json"

	DefaultAddr     = "localhost:8080"
	shutdownTimeout = 5 * time.Second
	swaggerUIDist   = "https://unpkg.com/swagger-ui-dist@5"
)

var page = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="{{.Dist}}/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="{{.Dist}}/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({ url: {{.SpecPath}}, dom_id: "#swagger-ui" });
  </script>
</body>
</html>
`))

// Server serves one document. It is safe to call Handler concurrently.
type Server struct {
	addr   string
	title  string
	spec   []byte
	logger *slog.Logger
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// NewServer prepares a server for doc on addr. The document is encoded once.
func NewServer(doc *genspec.Document, addr string, opts ...Option) (*Server, error) {
	if doc == nil {
		return nil, fmt.Errorf("preview: nil document")
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("preview: encode document: %w", err)
	}
	if addr == "" {
		addr = DefaultAddr
	}
	s := &Server{addr: addr, title: doc.Info.Title, spec: data, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+SpecPath, s.handleSpec)
	mux.HandleFunc("GET "+DocsPath, s.handleIndex)
	mux.HandleFunc("GET "+DocsPath+"/{$}", s.handleIndex)
	mux.Handle("GET /{$}", http.RedirectHandler(DocsPath, http.StatusFound))
	return mux
}

func (s *Server) handleSpec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", genspec.ContentTypeJSON)
	if _, err := w.Write(s.spec); err != nil {
		s.logger.Debug("write spec", "error", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := page.Execute(w, struct {
		Title, Dist, SpecPath string
	}{s.title, swaggerUIDist, SpecPath})
	if err != nil {
		s.logger.Error("render index", "error", err)
	}
}

// Serve listens on the configured address and blocks until ctx is cancelled
// or the listener fails. ready, when non-nil, receives the docs URL once the
// socket is bound.
func (s *Server) Serve(ctx context.Context, ready func(url string)) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("preview: listen %s: %w", s.addr, err)
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	url := "http://" + ln.Addr().String() + DocsPath
	s.logger.Info("swagger-ui listening", "url", url)
	if ready != nil {
		ready(url)
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("preview: shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
