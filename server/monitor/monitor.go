// Package monitor implements the optional local HTTP observability surface
// (SPEC_FULL §6.7+): health, read-only stats, a websocket progress feed,
// and a bearer-gated rescan trigger. It never substitutes for the stdio
// transport (§6.1) — /stats reads the same Container's Store and /rescan
// calls the same ScanMusicFolders operation the stdio loop uses.
package monitor

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fatih/structs"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"
	"github.com/mileusna/useragent"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/secure"

	"github.com/navidrome/crateindex/conf"
	"github.com/navidrome/crateindex/core/container"
	"github.com/navidrome/crateindex/log"
)

var (
	scansTriggered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crateindex_monitor_rescans_triggered_total",
		Help: "Rescans triggered through the monitor HTTP surface.",
	})
	requestsByAgent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crateindex_monitor_requests_total",
		Help: "Monitor HTTP requests, labeled by client type.",
	}, []string{"client"})
)

func init() {
	prometheus.MustRegister(scansTriggered, requestsByAgent)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Start launches the monitor HTTP server in the background and returns a
// function that shuts it down. A no-op if cfg.MonitorAddr is empty (callers
// are expected to check this themselves, but Start stays defensive).
func Start(ctx context.Context, cfg *conf.Config, ct *container.Container) func() {
	if cfg.MonitorAddr == "" {
		return func() {}
	}

	feed := newProgressFeed()
	ct.Scanner.OnProgress = feed.broadcast

	srv := &http.Server{
		Addr:    cfg.MonitorAddr,
		Handler: router(cfg, ct, feed),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "monitor server stopped", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

func router(cfg *conf.Config, ct *container.Container, feed *progressFeed) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET", "POST"}}))
	r.Use(httprate.LimitAll(60, time.Minute))
	r.Use(secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
	}).Handler)
	r.Use(clientLabelMiddleware)

	r.Get("/healthz", healthzHandler)
	r.Get("/stats", statsHandler(ct))
	r.Get("/events", eventsHandler(feed))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.With(bearerAuth(cfg.MonitorToken)).Post("/rescan", rescanHandler(ct))
	return r
}

// clientLabelMiddleware tags the requests_total metric with a coarse
// browser/tool/bot classification, purely for operational visibility into
// who is polling the monitor surface.
func clientLabelMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := useragent.Parse(r.UserAgent())
		client := "tool"
		switch {
		case ua.Bot:
			client = "bot"
		case ua.Name != "":
			client = "browser"
		}
		requestsByAgent.WithLabelValues(client).Inc()
		next.ServeHTTP(w, r)
	})
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statsHandler(ct *container.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idx, err := ct.Store.LoadIndex()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		// structs.Map renders CollectionStats as a plain map so the monitor
		// response shape can gain fields without a parallel DTO to keep in
		// sync, the same flattening idiom the teacher's persistence layer
		// uses on its own `structs:",flatten"`-tagged rows.
		writeJSON(w, http.StatusOK, structs.Map(idx.Stats))
	}
}

func rescanHandler(ct *container.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scansTriggered.Inc()
		result, err := ct.ScanMusicFolders(r.Context(), false, false)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func eventsHandler(feed *progressFeed) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ch := feed.subscribe()
		defer feed.unsubscribe(ch)

		for event := range ch {
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			want := "Bearer " + token
			got := r.Header.Get("Authorization")
			// Constant-time comparison: the monitor token is a static shared
			// secret, not an issued/expiring credential, so a plain
			// subtle.ConstantTimeCompare is sufficient (no JWT verification
			// stack is warranted here).
			if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

