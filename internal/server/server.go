package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"tsp-search/internal/database"
	"tsp-search/internal/handlers"
	"tsp-search/internal/metrics"
	"tsp-search/internal/session"
	"tsp-search/internal/sqlite"
	"tsp-search/internal/tsplib"
	"tsp-search/web"
)

// Server wraps the HTTP server and all dependencies
type Server struct {
	httpServer *http.Server
	handler    *handlers.Handler
	db         database.DataStore
	session    *session.Session
	metrics    *metrics.Metrics
	listener   net.Listener
	addr       string
	logger     *zap.Logger
}

// Config holds server configuration
type Config struct {
	Addr     string // e.g., "127.0.0.1:8080" or "127.0.0.1:0" for random port
	DBPath   string // empty uses the default path under the app dir
	Instance string // optional TSPLIB file loaded at startup
	Session  session.Config
	Logger   *zap.Logger
	Desktop  bool // external links open in the system browser
}

// New creates and initializes a new server (does not start it). Persisted
// settings are applied to the session on top of cfg.Session.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		p, err := database.GetDefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		dbPath = p
	}

	logger.Info("opening data store", zap.String("path", dbPath))
	db, err := sqlite.New(dbPath, logger.Named("sqlite"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize data store: %w", err)
	}

	logger.Debug("loading templates")
	templates, err := loadTemplates(web.Templates)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	m := metrics.New()
	sess := session.New(cfg.Session, db, m, logger)

	settings, err := db.Settings().Get(context.Background())
	if err != nil {
		sess.Close(context.Background())
		db.Close()
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := sess.ApplySettings(*settings); err != nil {
		logger.Warn("ignoring stored settings", zap.Error(err))
	}

	if cfg.Instance != "" {
		inst, err := tsplib.ParseFile(cfg.Instance)
		if err == nil {
			_, err = sess.Load(context.Background(), inst)
		}
		if err != nil {
			sess.Close(context.Background())
			db.Close()
			return nil, fmt.Errorf("failed to load instance %s: %w", cfg.Instance, err)
		}
	}

	handler := &handlers.Handler{
		DB:        db,
		Session:   sess,
		Templates: templates,
		Logger:    logger.Named("http"),
		Desktop:   cfg.Desktop,
	}

	mux := setupRoutes(handler, m, web.Static)

	// WriteTimeout is left unset: the snapshot stream is long-lived.
	httpServer := &http.Server{
		Addr:        cfg.Addr,
		Handler:     loggingMiddleware(logger.Named("access"), corsMiddleware(mux)),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		db:         db,
		session:    sess,
		metrics:    m,
		addr:       cfg.Addr,
		logger:     logger,
	}, nil
}

// Session returns the search session driven by this server
func (s *Server) Session() *session.Session {
	return s.session
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Listen binds the listening socket and returns the actual address
func (s *Server) Listen() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	return listener.Addr().String(), nil
}

// Serve blocks serving requests until Shutdown. Listen must be called first.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}
	s.logger.Info("serving", zap.String("addr", s.listener.Addr().String()))
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	addr, err := s.Listen()
	if err != nil {
		return "", err
	}

	go func() {
		if err := s.Serve(); err != nil {
			s.logger.Error("server error", zap.Error(err))
		}
	}()

	return addr, nil
}

// Shutdown stops accepting requests, archives the running search and
// closes the data store
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	if err := s.session.Close(ctx); err != nil {
		s.logger.Warn("failed to archive run on shutdown", zap.Error(err))
	}
	return s.db.Close()
}

// Template helper functions
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDate": func(t time.Time) string {
			return t.Local().Format("2006-01-02 15:04")
		},
		"timeAgo": func(t time.Time) string {
			return humanize.Time(t)
		},
		"formatLength": func(v float64) string {
			return fmt.Sprintf("%.2f", v)
		},
		"comma": func(n int) string {
			return humanize.Comma(int64(n))
		},
		"add": func(a, b int) int {
			return a + b
		},
	}
}

// loadTemplates loads all templates from the embedded filesystem
func loadTemplates(templatesFS fs.FS) (*handlers.TemplateSet, error) {
	funcs := templateFuncs()
	base := template.New("").Funcs(funcs)

	layoutContent, err := fs.ReadFile(templatesFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to read layout: %w", err)
	}
	_, err = base.New("layout.html").Parse(string(layoutContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	partialFiles, err := fs.Glob(templatesFS, "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to glob partials: %w", err)
	}

	for _, file := range partialFiles {
		content, err := fs.ReadFile(templatesFS, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read partial %s: %w", file, err)
		}
		name := file[len("templates/partials/"):]
		_, err = base.New(name).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse partial %s: %w", file, err)
		}
	}

	// Page templates stay as strings and are parsed per request
	pages := make(map[string]string)
	pageFiles := []string{"index.html", "settings.html", "history.html"}
	for _, name := range pageFiles {
		content, err := fs.ReadFile(templatesFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %s: %w", name, err)
		}
		pages[name] = string(content)
	}

	return &handlers.TemplateSet{
		Base:  base,
		Pages: pages,
		Funcs: funcs,
	}, nil
}

func methods(allowed map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := allowed[r.Method]; ok {
			h(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func post(h http.HandlerFunc) http.HandlerFunc {
	return methods(map[string]http.HandlerFunc{http.MethodPost: h})
}

func get(h http.HandlerFunc) http.HandlerFunc {
	return methods(map[string]http.HandlerFunc{http.MethodGet: h})
}

// setupRoutes configures all HTTP routes
func setupRoutes(handler *handlers.Handler, m *metrics.Metrics, staticFS fs.FS) *http.ServeMux {
	mux := http.NewServeMux()

	staticSubFS, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("failed to create static sub-filesystem: %v", err))
	}
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSubFS))))

	mux.Handle("/metrics", m.Handler())

	mux.HandleFunc("/api/v1/health", handler.HandleHealthCheck)
	mux.HandleFunc("/api/v1/open-url", handleOpenURL)

	mux.HandleFunc("/api/v1/settings", methods(map[string]http.HandlerFunc{
		http.MethodGet: handler.HandleGetSettings,
		http.MethodPut: handler.HandleUpdateSettings,
	}))

	mux.HandleFunc("/api/v1/instance", methods(map[string]http.HandlerFunc{
		http.MethodGet:  handler.HandleGetInstance,
		http.MethodPost: handler.HandleLoadInstance,
	}))

	mux.HandleFunc("/api/v1/search", get(handler.HandleGetSearch))
	mux.HandleFunc("/api/v1/search/start", post(handler.HandleStartSearch))
	mux.HandleFunc("/api/v1/search/stop", post(handler.HandleStopSearch))
	mux.HandleFunc("/api/v1/search/toggle", post(handler.HandleToggleSearch))
	mux.HandleFunc("/api/v1/search/step", post(handler.HandleStepSearch))
	mux.HandleFunc("/api/v1/search/path", post(handler.HandleTogglePath))
	mux.HandleFunc("/api/v1/search/history", get(handler.HandleGetHistory))
	mux.HandleFunc("/api/v1/search/chart.png", get(handler.HandleSearchChart))
	mux.HandleFunc("/api/v1/search/route.geojson", get(handler.HandleRouteGeoJSON))
	mux.HandleFunc("/api/v1/search/stream", get(handler.HandleSearchStream))

	mux.HandleFunc("/api/v1/runs", get(handler.HandleListRuns))
	mux.HandleFunc("/api/v1/runs/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/runs/" {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}

		if strings.HasSuffix(r.URL.Path, "/chart.png") && r.Method == http.MethodGet {
			handler.HandleRunChart(w, r)
			return
		}

		switch r.Method {
		case http.MethodGet:
			handler.HandleGetRun(w, r)
		case http.MethodDelete:
			handler.HandleDeleteRun(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/partials/search-status", get(handler.HandleSearchStatus))

	// Page routes
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		handler.HandleIndexPage(w, r)
	})
	mux.HandleFunc("/settings", get(handler.HandleSettingsPage))
	mux.HandleFunc("/history", get(handler.HandleHistoryPage))

	return mux
}

// handleOpenURL opens a URL in the system's default browser. The desktop
// page posts its external links here.
func handleOpenURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.URL == "" {
		http.Error(w, "URL is required", http.StatusBadRequest)
		return
	}

	// Only allow http/https URLs
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		http.Error(w, "Only HTTP/HTTPS URLs are allowed", http.StatusBadRequest)
		return
	}

	if err := OpenBrowser(req.URL); err != nil {
		http.Error(w, "Failed to open URL", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// OpenBrowser opens url in the platform's default browser
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	return cmd.Start()
}

func loggingMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", lrw.statusCode),
			zap.Duration("duration", time.Since(start)))
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	lrw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Only allow localhost origins (Wails webview and local development)
		if handlers.AllowedOrigin(origin) {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, HX-Request, HX-Target, HX-Current-URL")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
