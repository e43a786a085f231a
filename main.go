package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PhuocnhQn/photo-frame-editor/catalog"
	"github.com/PhuocnhQn/photo-frame-editor/config"
	"github.com/PhuocnhQn/photo-frame-editor/controller"
	"github.com/PhuocnhQn/photo-frame-editor/export"
	"github.com/PhuocnhQn/photo-frame-editor/handlers/api/frames"
	"github.com/PhuocnhQn/photo-frame-editor/handlers/api/photos"
	apisessions "github.com/PhuocnhQn/photo-frame-editor/handlers/api/sessions"
	"github.com/PhuocnhQn/photo-frame-editor/handlers/auth"
	"github.com/PhuocnhQn/photo-frame-editor/handlers/websocket"
	"github.com/PhuocnhQn/photo-frame-editor/metrics"
	authMiddleware "github.com/PhuocnhQn/photo-frame-editor/middleware"
	"github.com/PhuocnhQn/photo-frame-editor/sessions"
	"github.com/PhuocnhQn/photo-frame-editor/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

func setupRouter(cfg *config.Config, cat *catalog.Catalog, manager *sessions.Manager) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(metrics.InstrumentHandler)

	r.Get("/frames", frames.HandleList(cat))
	r.Get("/frames/{name}", frames.HandleGet(cat))
	r.Post("/upload", photos.HandleUpload(cat, cfg.MaxUploadBytes))
	r.Get("/uploads/{name}", photos.HandleGet(cat))

	// Catalog administration, guarded when JWT_SECRET is set.
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.AuthJWT)
		r.Post("/upload-frame", frames.HandleUpload(cat, cfg.MaxUploadBytes, manager.SelectFrame))
		r.Delete("/delete-frame/{name}", frames.HandleDelete(manager))
	})

	r.Route("/api/sessions", func(r chi.Router) {
		apisessions.Routes(r, manager, cat, cfg.MaxUploadBytes)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	return r
}

func waitForShutdown(srv *http.Server, ioo *socketio.Server, manager *sessions.Manager) {
	exit := make(chan struct{})
	SignalC := make(chan os.Signal, 1)

	signal.Notify(SignalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range SignalC {
			switch s {
			case os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	logrus.Info("Shutting down...")
	manager.Stop()
	ioo.Close(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	os.Exit(0)
}

func main() {
	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	issueToken := flag.String("issue-token", "", "Print a catalog admin token for this subject and exit.")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of a token printed by -issue-token.")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	auth.Init(cfg.JWTSecret)

	if *issueToken != "" {
		token, err := auth.IssueToken(*issueToken, *tokenTTL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	cat := catalog.New(stores.GetStore(cfg))
	manager := sessions.NewManager(sessions.Options{
		Frames:         cat,
		Exporter:       export.New(export.Options{JPEGQuality: cfg.JPEGQuality}),
		DefaultWidth:   cfg.CanvasWidth,
		DefaultHeight:  cfg.CanvasHeight,
		Stacking:       cfg.StackingOrder(),
		IdleTimeout:    cfg.SessionIdleTimeout,
		MaxCanvasSide:  cfg.MaxCanvasSide,
		MaxImagePixels: cfg.MaxImagePixels,
	})
	if err := manager.StartSweeper(cfg.SessionSweepSchedule); err != nil {
		logrus.Fatal(err)
	}

	ioo := websocket.SetupSocketIO(func(id string) (controller.State, error) {
		s, err := manager.Get(id)
		if err != nil {
			return controller.State{}, err
		}
		return s.State(), nil
	}, cfg.CORSOrigins)
	manager.SetListener(func(id string, st controller.State) {
		websocket.Publish(ioo, id, st)
	})

	r := setupRouter(cfg, cat, manager)
	r.Handle("/socket.io/", ioo.ServeHandler(nil))

	srv := &http.Server{Addr: *listenAddress, Handler: r}
	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(srv, ioo, manager)
}
