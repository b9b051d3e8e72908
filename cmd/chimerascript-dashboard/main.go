// Command chimerascript-dashboard serves run history and a live
// WebSocket feed of case results over HTTP, backed by the SQLite run
// store a `chimerascript run --db ...` invocation writes to. When
// --redis-addr is set it subscribes to the same pub/sub channel that
// invocation publishes case events to and rebroadcasts them to every
// connected browser, so the dashboard can watch a run live from a
// separate process (or host) than the one executing it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kyleoneill/chimerascript/internal/api"
	"github.com/kyleoneill/chimerascript/internal/live"
	"github.com/kyleoneill/chimerascript/internal/store"
)

func main() {
	addr := flag.String("addr", ":8090", "HTTP listen address")
	dbPath := flag.String("db", "", "SQLite run-history database (required)")
	redisAddr := flag.String("redis-addr", "", "Redis address to subscribe for live case events (optional)")
	redisChannel := flag.String("redis-channel", live.DefaultChannel, "Redis pub/sub channel to subscribe to")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "--db is required")
		os.Exit(1)
	}

	db, err := store.New(*dbPath)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	hub := live.NewHub()
	go hub.Run(ctx)

	if *redisAddr != "" {
		go func() {
			err := live.SubscribeAndForward(ctx, *redisAddr, *redisChannel, hub.BroadcastCase)
			if err != nil && ctx.Err() == nil {
				log.Printf("redis subscription ended: %v", err)
			}
		}()
	}

	handler := &api.Handler{Store: db, Hub: hub}
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("chimerascript-dashboard listening on %s (db=%s)", *addr, *dbPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
