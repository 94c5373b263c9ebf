package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"envdash/api/auth"
	"envdash/api/config"
	"envdash/api/fleet"
	"envdash/api/handler"
	"envdash/api/health"
	"envdash/api/hub"
	"envdash/api/model"
	"envdash/api/registry"
	"envdash/api/rundeck"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	setupLogging(cfg.LogLevel)

	allowedOrigins := cfg.Origins()

	ws := hub.New(allowedOrigins)
	go ws.Run()

	fetcher, err := fleet.NewFetcher(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("docker clients")
	}
	for _, s := range fetcher.Servers() {
		logrus.WithFields(logrus.Fields{"server": s.Name, "dockerApi": s.DockerAPI}).Info("docker host configured")
	}

	reg := registry.NewClient(cfg.Registry.URL, cfg.Registry.Timeout)
	if cfg.Registry.URL == "" {
		logrus.Warn("no registry configured, branch and tag lookups will fail")
	}

	jobs := rundeck.NewRunner(cfg.Rundeck, ws)
	if cfg.Rundeck.URL == "" {
		logrus.Warn("no rundeck configured, deploy and delete will fail")
	}
	for _, t := range jobs.MissingJobs(model.EnvironmentTypes()) {
		logrus.WithField("type", t).Warn("environment type has no deploy or delete job")
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	if cfg.HostCheck > 0 {
		watcher := &health.Poller{Hosts: fetcher, WS: ws, Interval: cfg.HostCheck}
		go watcher.Run(watchCtx)
	}

	h := handler.New(cfg, fetcher, jobs, reg, ws, Version)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", auth.AccessHeader},
		AllowCredentials: true,
	}))

	if cfg.CFAccessTeamDomain != "" && cfg.CFAccessAUD != "" {
		r.Use(auth.NewAccessValidator(cfg.CFAccessTeamDomain, cfg.CFAccessAUD).Middleware)
		logrus.Info("CF Access auth enabled")
	}
	if cfg.APIToken != "" {
		r.Use(auth.Bearer(cfg.APIToken, "/ws", "/api/health", "/api/version"))
		logrus.Info("API token auth enabled")
	}

	h.Mount(r)
	r.Get("/ws", ws.HandleConnect)

	if cfg.UIDir != "" {
		fileServer(r, cfg.UIDir)
	}

	srv := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.Infof("envdash %s listening on %s:%s", Version, cfg.BindAddr, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down...")
	stopWatch()
	defer func() {
		if err := fetcher.Close(); err != nil {
			logrus.WithError(err).Warn("closing docker clients")
		}
	}()
	// a running job may hold a request for up to the poll timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Rundeck.PollTimeout+5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}

func setupLogging(level string) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.WithField("level", level).Warn("unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

// fileServer serves the built UI and falls back to index.html for client routes.
func fileServer(r chi.Router, dir string) {
	fs := http.FileServer(http.Dir(dir))
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		if _, err := os.Stat(filepath.Join(dir, filepath.Clean("/"+r.URL.Path))); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		fs.ServeHTTP(w, r)
	})
}
