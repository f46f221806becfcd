// SPDX-License-Identifier: AGPL-3.0-only
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fluffyriot/creatorsync/internal/api/handlers"
	"github.com/fluffyriot/creatorsync/internal/auth"
	"github.com/fluffyriot/creatorsync/internal/authhelp"
	"github.com/fluffyriot/creatorsync/internal/cli"
	"github.com/fluffyriot/creatorsync/internal/config"
	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/fluffyriot/creatorsync/internal/fetcher"
	"github.com/fluffyriot/creatorsync/internal/fetcher/common"
	"github.com/fluffyriot/creatorsync/internal/fetcher/sources"
	"github.com/fluffyriot/creatorsync/internal/identity"
	"github.com/fluffyriot/creatorsync/internal/metrics"
	"github.com/fluffyriot/creatorsync/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: %s [flags] [command]

Commands:
  serve                  run the API server and the sync scheduler (default)
  sync-all [platform]    run one sync batch and exit
  rotate-key             re-encrypt stored tokens with a new TOKEN_ENCRYPTION_KEY
  issue-token            print a bearer token for local testing

Flags:
`, os.Args[0])
	flag.PrintDefaults()
}

func main() {
	memory := flag.Bool("memory", false, "use the in-memory store instead of PostgreSQL")
	user := flag.String("user", "", "subject of the token printed by issue-token")
	ttl := flag.Duration("ttl", 24*time.Hour, "lifetime of the token printed by issue-token")
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalln(err)
	}

	idp := identity.NewHS256Provider([]byte(cfg.AuthJWTSecret), cfg.AuthJWTIssuer)
	if flag.Arg(0) == "issue-token" {
		cli.HandleIssueToken(idp, *user, *ttl)
		return
	}

	var store database.Store
	if *memory {
		log.Println("Using the in-memory store, nothing is persisted")
		store = database.NewMemoryStore()
	} else {
		var db *sql.DB
		db, store, err = loadDatabase(cfg)
		if err != nil {
			log.Fatalln(err)
		}
		defer db.Close()
	}

	cipher, err := auth.NewTokenCipher(cfg.TokenEncryptionKey)
	if err != nil {
		log.Fatalf("Failed to create token cipher: %v", err)
	}

	httpClient := common.NewClient(cfg.HTTPTimeout, cfg.ProviderRPS, cfg.ProviderBurst)
	deps := sources.Deps{
		Store:  store,
		Cipher: cipher,
		HTTP:   httpClient,
		YouTube: authhelp.NewYouTubeOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret,
			cfg.CallbackURL(database.PlatformYouTube), httpClient.HTTPClient),
		Facebook: authhelp.NewFacebookOAuth(cfg.FacebookAppID, cfg.FacebookAppSecret,
			cfg.CallbackURL(database.PlatformInstagram), cfg.InstagramAPIVersion, httpClient),
		TikTok: authhelp.NewTikTokOAuth(cfg.TikTokClientKey, cfg.TikTokClientSecret,
			cfg.CallbackURL(database.PlatformTikTok), httpClient),
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(promRegistry)
	registry := fetcher.NewDefaultRegistry(deps, collector)

	switch flag.Arg(0) {
	case "", "serve":
	case "sync-all":
		cli.HandleSyncAll(registry, flag.Arg(1))
		return
	case "rotate-key":
		cli.HandleRotateKey(store, cipher)
		return
	default:
		flag.Usage()
		os.Exit(2)
	}

	states, err := authhelp.NewStateCodec(cfg.OAuthStateSecret, nil)
	if err != nil {
		log.Fatalf("Failed to create state codec: %v", err)
	}

	bgWorker := worker.NewWorker(registry, cfg.WorkerConcurrency)
	var flows []*authhelp.Flow
	for _, linker := range sources.Linkers(deps) {
		if !cfg.Configured(linker.Platform()) {
			log.Printf("OAuth credentials for %s are not set, account linking disabled", linker.Platform().DisplayName())
			continue
		}
		flow := authhelp.NewFlow(linker, states, store, cipher)
		flow.OnLinked = bgWorker.Enqueue
		flows = append(flows, flow)
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	h := handlers.NewHandler(store, cfg, flows, registry, collector, promRegistry)
	h.RegisterRoutes(router, idp)

	bgWorker.Start(cfg.SyncInterval)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server listen error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
	bgWorker.Close()
	log.Println("Server stopped")
}

func loadDatabase(cfg *config.AppConfig) (*sql.DB, database.Store, error) {
	db, queries, err := config.LoadDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	return db, queries, nil
}
