package serve

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ValentinKolb/rKV/lib/reactive"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("serve")

const (
	// maxBodyBytes limits the size of a value written over HTTP
	maxBodyBytes = 1 << 20

	// maxWatchTimeout caps the timeout a watch request may ask for
	maxWatchTimeout = 5 * time.Minute
	defaultWatch    = 30 * time.Second
)

// valueResponse is the body of every successful value request
type valueResponse struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     any    `json:"value"`
	Null      bool   `json:"null"`
	Version   uint64 `json:"version"`
}

// server exposes the stores of a registry over HTTP
type server struct {
	reg     *reactive.Registry
	initial *any
	opts    []reactive.Option[any]
}

// newHandler returns the http.Handler serving reg. initial and opts apply to every store
// the server creates.
func newHandler(reg *reactive.Registry, initial *any, opts []reactive.Option[any], debug bool) http.Handler {
	s := &server{reg: reg, initial: initial, opts: opts}

	routes := map[string]http.HandlerFunc{
		"GET /v1/{db}/{store}/{key}":       s.handleGet,
		"PUT /v1/{db}/{store}/{key}":       s.handlePut,
		"DELETE /v1/{db}/{store}/{key}":    s.handleDelete,
		"GET /v1/{db}/{store}/{key}/watch": s.handleWatch,
		"GET /metrics":                     handleMetrics,
	}

	mux := http.NewServeMux()
	for pattern, handler := range routes {
		if debug {
			mux.HandleFunc(pattern, loggerMiddleware(handler))
		} else {
			mux.HandleFunc(pattern, handler)
		}
	}
	return mux
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

// handleGet waits for hydration and returns the current value
func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	st, ok := s.bind(w, r)
	if !ok {
		return
	}
	if err := st.WaitHydrated(r.Context()); err != nil {
		http.Error(w, "hydration did not finish", http.StatusServiceUnavailable)
		return
	}
	writeSnapshot(w, st)
}

// handlePut writes the JSON body. With ?sync=true the response is sent after the
// value was persisted.
func (s *server) handlePut(w http.ResponseWriter, r *http.Request) {
	st, ok := s.bind(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	defer r.Body.Close()
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusRequestEntityTooLarge)
		return
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		http.Error(w, "body must be valid JSON", http.StatusBadRequest)
		return
	}

	// JSON null clears the value
	var next *any
	if value != nil {
		next = &value
	}
	s.write(w, r, st, next)
}

// handleDelete writes null
func (s *server) handleDelete(w http.ResponseWriter, r *http.Request) {
	st, ok := s.bind(w, r)
	if !ok {
		return
	}
	s.write(w, r, st, nil)
}

// handleWatch long-polls until the version is greater than ?since= or ?timeout= passed.
// A timeout is answered with 204 No Content.
func (s *server) handleWatch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var since uint64
	if v := query.Get("since"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "since must be a version number", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	timeout := defaultWatch
	if v := query.Get("timeout"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			http.Error(w, "timeout must be a positive duration, e.g. 30s", http.StatusBadRequest)
			return
		}
		timeout = min(parsed, maxWatchTimeout)
	}

	st, ok := s.bind(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	if _, err := st.WaitChange(ctx, since); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			w.WriteHeader(http.StatusNoContent)
		}
		// client went away otherwise
		return
	}
	writeSnapshot(w, st)
}

// handleMetrics writes the store counters in Prometheus text format
func handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	reactive.WritePrometheus(w)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// bind resolves the store addressed by the request path and starts its hydration.
// It writes an error response and returns false if the path is not a valid identity.
func (s *server) bind(w http.ResponseWriter, r *http.Request) (*reactive.Store[any], bool) {
	ns := store.Namespace{DBName: r.PathValue("db"), StoreName: r.PathValue("store")}
	if err := ns.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	opts := append([]reactive.Option[any]{reactive.WithNamespace[any](ns)}, s.opts...)
	st, err := reactive.GetStore(s.reg, r.PathValue("key"), s.initial, opts...)
	switch {
	case errors.Is(err, reactive.ErrEmptyKey):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	case errors.Is(err, reactive.ErrRegistryClosed):
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return nil, false
	case err != nil:
		Logger.Errorf("bind %s/%s: %v", ns, r.PathValue("key"), err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}

	st.Hydrate()
	return st, true
}

// write waits for hydration so the write is not dropped by the race policy, then writes next
func (s *server) write(w http.ResponseWriter, r *http.Request, st *reactive.Store[any], next *any) {
	if err := st.WaitHydrated(r.Context()); err != nil {
		http.Error(w, "hydration did not finish", http.StatusServiceUnavailable)
		return
	}

	st.Write(next)

	if r.URL.Query().Get("sync") == "true" {
		if err := st.Flush(r.Context()); err != nil {
			http.Error(w, "value was not persisted in time", http.StatusServiceUnavailable)
			return
		}
	}
	writeSnapshot(w, st)
}

// writeSnapshot writes the current snapshot of st as JSON
func writeSnapshot(w http.ResponseWriter, st *reactive.Store[any]) {
	snap := st.Snapshot()
	resp := valueResponse{
		Namespace: st.Identity().Namespace.String(),
		Key:       st.Identity().Key,
		Null:      snap.IsNull(),
		Version:   snap.Version(),
	}
	if v := snap.Value(); v != nil {
		resp.Value = *v
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		Logger.Warningf("write response for %s: %v", st.Identity(), err)
	}
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create custom response writer to capture status code
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, duration)
	}
}
