package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nexushq/nexus/config"
	"github.com/nexushq/nexus/database"
	"github.com/nexushq/nexus/pkg/ratelimit"
	"github.com/nexushq/nexus/repository"
	"github.com/nexushq/nexus/ws"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] config load failed: %v", err)
	}

	migrations, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	if err != nil {
		log.Fatalf("[main] migrations fs failed: %v", err)
	}
	db, err := database.New(cfg.Store.URL, migrations)
	if err != nil {
		log.Fatalf("[main] database init failed: %v", err)
	}
	defer db.Close()

	limiter := ratelimit.NewLimiter(cfg.RateLimit)
	defer limiter.Close()

	hub := ws.NewHub()
	go hub.Run()

	repos := newRepositories(db.Conn)
	svcs, err := newServices(cfg, db.Conn, repos, hub)
	if err != nil {
		log.Fatalf("[main] service init failed: %v", err)
	}

	wireHubCallbacks(hub, svcs, repos)

	dispatcher := ws.NewDispatcher(hub, limiter)
	wireJoinHandler(dispatcher, hub, svcs)
	registerOps(dispatcher, hub, svcs)

	h := newHandlers(cfg, svcs, repos, limiter)
	router := newRouter(h, ws.NewHandler(hub, dispatcher))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go svcs.typing.Run(ctx)
	go sweepSessions(ctx, repos.sessions)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[main] listening on %s", cfg.Server.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[main] server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[main] shutting down")

	// Önce HTTP kapanır (yeni bağlantı gelmez), sonra açık socket'lere
	// close frame gönderilir.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] http shutdown: %v", err)
	}
	hub.Shutdown()
}

// sweepSessions, süresi dolmuş refresh session'larını periyodik siler.
// Revocation listesi büyüdükçe login yavaşlamasın diye.
func sweepSessions(ctx context.Context, sessions repository.SessionRepository) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.DeleteExpired(ctx)
			if err != nil {
				log.Printf("[main] session sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[main] expired sessions removed: %d", n)
			}
		}
	}
}
