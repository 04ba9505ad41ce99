package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"mentorsim.ai/internal/platform/config"
	"mentorsim.ai/internal/platform/otel"
	"mentorsim.ai/internal/protocol"
	"mentorsim.ai/internal/sim/catalogs"
	"mentorsim.ai/internal/sim/narrative"
	"mentorsim.ai/internal/sim/session"
	"mentorsim.ai/internal/sim/tuning"
	"mentorsim.ai/internal/transport/ws"
)

func main() {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	env, err := config.LoadServer()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	var (
		addr       = flag.String("addr", env.Addr, "http listen address")
		configDir  = flag.String("configs", env.ConfigDir, "config directory")
		dataDir    = flag.String("data", env.DataDir, "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", env.DisableIndex, "disable the sqlite index")
		mentor     = flag.String("mentor", env.Mentor, "mentor name (used only when starting a fresh game)")
		seed       = flag.Int64("seed", env.Seed, "game seed (used only when starting a fresh game)")
		snapPath   = flag.String("snapshot", "", "path to snapshot to load (default: latest in data dir)")
		fresh      = flag.Bool("fresh", false, "ignore existing snapshots and start a new game")
	)
	flag.Parse()

	ctx, cancel := signalContext()
	defer cancel()

	shutdownTracing, err := otel.Setup(ctx, "mentorsim-server")
	if err != nil {
		logger.Printf("tracing disabled: %v", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	var gen narrative.Generator
	if env.NarrativeEnabled() {
		gen = narrative.NewClient(narrative.ClientConfig{
			URL:       env.NarrativeURL,
			APIKey:    env.NarrativeAPIKey,
			Model:     env.NarrativeModel,
			MaxTokens: env.NarrativeMaxTokens,
			Timeout:   env.NarrativeTimeout,
		})
		logger.Printf("narrative generator: %s", env.NarrativeURL)
	} else {
		logger.Printf("narrative generator not configured; using templates")
	}

	rt, err := openRuntime(*dataDir, *disableDB, cats, tune, logger)
	if err != nil {
		logger.Fatalf("open runtime: %v", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Printf("close runtime: %v", err)
		}
	}()

	opts := session.Options{
		Tuning:    tune,
		Catalogs:  cats,
		Narrative: narrative.NewService(gen, cats.Narratives, tune.Effects, logger),
		Logger:    logger,
	}
	var sess *session.Session
	if *fresh {
		sess = session.New(opts, *mentor, *seed)
	} else {
		st, ok, err := rt.load(*snapPath)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if ok {
			var notes []string
			sess, notes = session.Load(opts, st)
			if len(notes) > 0 {
				logger.Printf("repaired %d problems in the saved game", len(notes))
			}
		} else {
			sess = session.New(opts, *mentor, *seed)
		}
	}
	rt.sess = sess
	if _, _, err := rt.saveSnapshot(sess.State()); err != nil {
		logger.Printf("initial snapshot: %v", err)
	}

	wsSrv := ws.NewServer(sess, ws.Config{
		Digests: protocol.CatalogDigests{
			TraitsDigest:     cats.Traits.Digest,
			NarrativesDigest: cats.Narratives.Digest,
			TuningDigest:     tune.Digest(),
		},
		Token: env.Token,
		Hooks: ws.Hooks{OnSettled: rt.onSettled, OnCommand: rt.onCommand},
	}, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(sess.State())
	})
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (quarter %s, mentor %s)", *addr, sess.Now(), sess.State().Mentor.Name)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	if _, _, err := rt.saveSnapshot(sess.State()); err != nil {
		logger.Printf("final snapshot: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
