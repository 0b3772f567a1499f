package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MaraKorvus/lobotjr/adventure"
	"github.com/MaraKorvus/lobotjr/apps/bot/internal/auth"
	"github.com/MaraKorvus/lobotjr/apps/bot/internal/config"
	"github.com/MaraKorvus/lobotjr/apps/bot/internal/gateway"
	"github.com/MaraKorvus/lobotjr/apps/bot/internal/ledger"
	"github.com/MaraKorvus/lobotjr/apps/bot/internal/lobby"
	"github.com/MaraKorvus/lobotjr/apps/bot/internal/roster"
	"github.com/MaraKorvus/lobotjr/apps/bot/internal/sqlitedb"
	"github.com/MaraKorvus/lobotjr/content"
	"github.com/MaraKorvus/lobotjr/party"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("[Server] Failed to load config: %v", err)
	}

	c, err := content.Load(cfg.ContentPath)
	if err != nil {
		log.Fatalf("[Server] Failed to load content: %v", err)
	}
	var legacy []*adventure.Definition
	if cfg.LegacyDungeonList != "" {
		legacy, err = content.LoadLegacyDungeons(cfg.LegacyDungeonList, cfg.LegacyDungeonDir, c.Items)
		if err != nil {
			log.Fatalf("[Server] Failed to load legacy dungeons: %v", err)
		}
	}
	catalog, err := c.Catalog(legacy...)
	if err != nil {
		log.Fatalf("[Server] Failed to build adventure catalog: %v", err)
	}
	log.Printf("[Server] Loaded %d adventures, %d items", catalog.Len(), len(c.Items.All()))

	var db *sql.DB
	if cfg.StoreMode == config.StoreSQLite || cfg.LedgerMode == config.LedgerSQLite {
		db, err = sqlitedb.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("[Server] Failed to open sqlite %s: %v", cfg.SQLitePath, err)
		}
		defer db.Close()
	}

	var store roster.Store = roster.NewMemoryStore()
	authMode := auth.ModeMemory
	if cfg.StoreMode == config.StoreSQLite {
		if store, err = roster.NewSQLiteStore(db); err != nil {
			log.Fatalf("[Server] Failed to init player store: %v", err)
		}
		authMode = auth.ModeSQLite
	}
	authService, err := auth.NewService(authMode, db, cfg.SessionTTL, cfg.IsOperator)
	if err != nil {
		log.Fatalf("[Server] Failed to init auth manager: %v", err)
	}
	defer authService.Close()
	ledgerService, err := ledger.NewService(cfg.LedgerMode, db, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("[Server] Failed to init ledger service: %v", err)
	}
	defer ledgerService.Close()

	players := roster.New(store, c.Items, c, cfg.LevelCap)
	gw := gateway.New(cfg.SendRate, cfg.SendBurst, cfg.SendBuffer)
	pool := party.NewPool(gw)
	queue := adventure.NewWorkQueue(cfg.QueueCapacity)
	finder, err := adventure.NewGroupFinder(cfg.Engine(), pool, catalog, queue, gw)
	if err != nil {
		log.Fatalf("[Server] Failed to init group finder: %v", err)
	}
	runner, err := adventure.NewRunner(cfg.RunnerEngine(), queue, gw)
	if err != nil {
		log.Fatalf("[Server] Failed to init adventure runner: %v", err)
	}
	lby := lobby.New(lobby.Config{
		PartySizeLimit:   cfg.PartySizeLimit,
		ClassChoiceLevel: cfg.ClassChoiceLevel,
	}, players, pool, finder, gw)
	gw.SetHandler(lby)

	// Order matters: the recorder and the saver read party members, which
	// the lobby releases last.
	runner.Subscribe(ledger.NewRecorder(ledgerService))
	runner.Subscribe(players.Saver())
	runner.Subscribe(lby)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	auth.NewHTTPHandler(authService).RegisterRoutes(mux)
	ledger.NewHTTPHandler(authService, ledgerService).RegisterRoutes(mux)
	roster.NewAdminHandler(authService, players, finder).RegisterRoutes(mux)

	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		log.Printf("[Server] Store mode: %s", cfg.StoreMode)
		log.Printf("[Server] Ledger mode: %s", cfg.LedgerMode)
		log.Printf("[Server] Starting WebSocket server on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("[Server] Shutting down")
		queue.Close()
		gw.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("[Server] Stopped with error: %v", err)
	}
	if err := players.SaveAll(); err != nil {
		log.Printf("[Server] Failed to save players: %v", err)
	}
}
