// Package web serves a read-only, live-updating HTML view of a synced Org file.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"orgsync-cli/internal/org"
	"orgsync-cli/internal/publish"

	"github.com/charmbracelet/log"
	"github.com/starfederation/datastar-go/datastar"
)

//go:embed templates/*.html static/*.css
var assetsFS embed.FS

// DatastarURL is the browser bundle matching the datastar-go SDK version.
const DatastarURL = "https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0/bundles/datastar.js"

const mainSelector = "#orgsync-main"

type ServerConfig struct {
	Addr string
	// Path is the Org file to show.
	Path string
	// PollInterval is how often Path is checked for changes.
	PollInterval time.Duration
	Logger       *log.Logger
}

type Server struct {
	cfg   ServerConfig
	tmpl  *template.Template
	watch *fileWatcher
	log   *log.Logger
}

type pageVM struct {
	Title       string
	Path        string
	DatastarURL string

	Headings int
	Updated  string
	Body     template.HTML
	Err      string
}

func NewServer(cfg ServerConfig) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	cfg.Path = strings.TrimSpace(cfg.Path)
	if cfg.Addr == "" {
		return nil, errors.New("web: addr is empty")
	}
	if cfg.Path == "" {
		return nil, errors.New("web: path is empty")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}

	tmpl, err := template.New("base").ParseFS(assetsFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	srv := &Server{
		cfg:   cfg,
		tmpl:  tmpl,
		watch: newFileWatcher(cfg.Path, cfg.PollInterval),
		log:   cfg.Logger,
	}
	go srv.watch.watchLoop()
	return srv, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

// Close stops the file watcher. Open event streams end when their clients disconnect.
func (s *Server) Close() { s.watch.Stop() }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /static/app.css", s.handleAppCSS)
	mux.HandleFunc("GET /{$}", s.handleHome)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	hs := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- hs.ListenAndServe() }()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}
	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleAppCSS(w http.ResponseWriter, r *http.Request) {
	b, err := assetsFS.ReadFile("static/app.css")
	if err != nil || len(b) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	html, err := s.renderTemplate("page", s.loadVM())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, html)
}

// handleEvents streams the main section: once on connect, then after every change
// of the file.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	ch, cancel := s.watch.subscribe()
	defer cancel()

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()

	patch := func() {
		html, err := s.renderTemplate("main", s.loadVM())
		if err != nil {
			_ = sse.ExecuteScript(fmt.Sprintf(`console.error(%q)`, err.Error()))
			return
		}
		_ = sse.PatchElements(html, datastar.WithSelector(mainSelector), datastar.WithMode(datastar.ElementPatchModeOuter))
	}
	patch()

	for {
		select {
		case <-sse.Context().Done():
			return
		case <-keepAlive.C:
			_ = sse.PatchSignals([]byte(`{}`))
		case <-ch:
			s.log.Debug("file changed; pushing update", "path", s.cfg.Path)
			patch()
		}
	}
}

func (s *Server) loadVM() pageVM {
	vm := pageVM{
		Title:       filepath.Base(s.cfg.Path),
		Path:        s.cfg.Path,
		DatastarURL: DatastarURL,
	}
	b, err := os.ReadFile(s.cfg.Path)
	if err != nil {
		vm.Err = err.Error()
		return vm
	}
	doc, err := org.Parse(b)
	if err != nil {
		vm.Err = err.Error()
		return vm
	}
	if t, ok := doc.Keyword("TITLE"); ok && strings.TrimSpace(t) != "" {
		vm.Title = strings.TrimSpace(t)
	}
	vm.Headings = doc.Count()
	vm.Updated = "never"
	if v, ok := doc.Keyword("SYNC_TIME"); ok && v != "" {
		vm.Updated = v
	}
	vm.Body = renderMarkdownHTML(publish.RenderMarkdown(doc, publish.RenderOptions{}))
	return vm
}

func (s *Server) renderTemplate(name string, data any) (string, error) {
	var b bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
