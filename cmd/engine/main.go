package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"jobbot-engine/internal/apply"
	"jobbot-engine/internal/config"
	"jobbot-engine/internal/cycle"
	"jobbot-engine/internal/domain"
	"jobbot-engine/internal/events"
	"jobbot-engine/internal/httpapi"
	"jobbot-engine/internal/ledger"
	"jobbot-engine/internal/metrics"
	"jobbot-engine/internal/notify"
	"jobbot-engine/internal/resume"
	"jobbot-engine/internal/scheduler"
	"jobbot-engine/internal/scrape/util"
	"jobbot-engine/internal/secrets"
	"jobbot-engine/internal/store"
)

const historyRetention = 90 * 24 * time.Hour

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[engine] .env: %v", err)
	}

	dataDir, err := config.ResolveDataDir(config.Default().App.DataDir)
	if err != nil {
		log.Fatalf("data dir: %v", err)
	}
	userCfgPath, err := config.EnsureUserConfig(dataDir, "")
	if err != nil {
		log.Fatalf("config bootstrap failed: %v", err)
	}

	// Load config and keep it reloadable
	var cfgVal atomic.Value // stores config.Config
	loadCfg := func() (config.Config, error) {
		cfg, err := config.Load(userCfgPath)
		if err != nil {
			return cfg, err
		}
		if err := config.OverlayCompanies(&cfg, filepath.Join(dataDir, "companies.yml")); err != nil {
			log.Printf("[config] companies.yml: %v", err)
		}
		config.OverlayEnv(&cfg)
		cfg, vr := config.NormalizeAndValidate(cfg)
		for _, w := range vr.Warnings {
			log.Printf("[config] warning: %s", w)
		}
		if !vr.OK() {
			return cfg, vr
		}
		return cfg, nil
	}
	cfg, err := loadCfg()
	if err != nil {
		log.Fatalf("config load failed (%s): %v", userCfgPath, err)
	}
	cfgVal.Store(cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sink := metrics.NewPrometheusSink(reg)

	led := ledger.New(filepath.Join(dataDir, cfg.Ledger.File), cfg.Ledger.MaxRows)
	if err := led.Init(); err != nil {
		// the runner retries on every cycle; an unwritable ledger aborts each one
		log.Printf("[engine] ledger init: %v", err)
	}

	db, err := store.Open(filepath.Join(dataDir, "history.db"))
	if err != nil {
		log.Fatalf("history db: %v", err)
	}
	defer db.Close()
	history := store.NewHistory(db)
	if n, err := history.Cleanup(context.Background(), historyRetention); err != nil {
		log.Printf("[engine] history cleanup: %v", err)
	} else if n > 0 {
		log.Printf("[engine] history cleanup removed %d rows", n)
	}

	limiter := util.NewHostLimiter(cfg.Fetch.HostRPS, cfg.Fetch.HostBurst)
	hub := events.NewHub()
	cycles := config.NewCycleStore(filepath.Join(dataDir, "config.json"))

	deps := cycle.Deps{
		Config:      cycles,
		Fetcher:     &engineFetcher{cfgVal: &cfgVal, limiter: limiter, metrics: sink},
		Ledger:      led,
		Submitter:   apply.NewFormSubmitter(nil, limiter, cfg.Apply.UserAgent),
		Notifier:    liveMailer{cfgVal: &cfgVal},
		History:     history,
		Events:      hub,
		Metrics:     sink,
		SubmitDelay: cfg.SubmitDelay(),
		MaxRows:     cfg.Ledger.MaxRows,
		LockPath:    filepath.Join(dataDir, "cycle.lock"),
	}
	runner := cycle.New(deps)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		res, err := runner.Run(ctx)
		if err != nil {
			log.Printf("[engine] cycle: %v", err)
		}
		if res.Aborted {
			_ = db.Close()
			os.Exit(1)
		}
		return
	}

	// Loop and the schedule are waited on before the stores close, so a
	// cycle stopped by a signal still logs its in-flight job.
	var bg sync.WaitGroup
	bg.Add(1)
	go func() {
		defer bg.Done()
		runner.Loop(ctx)
	}()
	if cfg.Schedule.Cron != "" {
		bg.Add(1)
		go func() {
			defer bg.Done()
			err := scheduler.Cron(ctx, cfg.Schedule.Cron, cfg.Schedule.RunOnStart, "schedule", func(context.Context) error {
				if !runner.Trigger() {
					log.Printf("[schedule] cycle already queued")
				}
				return nil
			})
			if err != nil {
				log.Printf("[schedule] %v", err)
			}
		}()
	} else if cfg.Schedule.RunOnStart {
		runner.Trigger()
	}

	mux := httpapi.NewMux(httpapi.Deps{
		Hub:         hub,
		Runner:      runner,
		Cycles:      cycles,
		Ledger:      led,
		History:     history,
		Resumes:     resume.NewDownloader(filepath.Join(dataDir, "resumes")),
		CfgVal:      &cfgVal,
		UserCfgPath: userCfgPath,
		LoadCfg:     loadCfg,
		Gatherer:    reg,
	})

	srv := &http.Server{
		Handler:           httpapi.Chain(mux, httpapi.RequestID, httpapi.Recover, httpapi.AccessLog, httpapi.Cors),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if token := os.Getenv("JOBBOT_SHUTDOWN_TOKEN"); token != "" {
		mux.HandleFunc("/shutdown", shutdownHandler(token, srv))
	} else if token, err := randomToken(16); err == nil {
		mux.HandleFunc("/shutdown", shutdownHandler(token, srv))
		log.Printf("[engine] shutdown token=%s", token)
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.App.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("engine listening on http://%s (data=%s)", ln.Addr(), dataDir)

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	serveErr := srv.Serve(ln)
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}
	// /shutdown stops the server without a signal
	stop()
	log.Printf("[engine] waiting for the running cycle (state=%s)", runner.State())
	bg.Wait()
	if serveErr != nil {
		log.Printf("[engine] serve: %v", serveErr)
		_ = db.Close()
		os.Exit(1)
	}
	log.Printf("[engine] stopped")
}

// liveMailer builds the report mailer from the current settings and keychain
// on each report, so a password stored through the API is used right away.
type liveMailer struct {
	cfgVal *atomic.Value // stores config.Config
}

func (m liveMailer) Report(ctx context.Context, recipient string, res domain.CycleResult, ledgerCSV []byte) error {
	cfg := m.cfgVal.Load().(config.Config)
	if !cfg.Report.Enabled {
		return nil
	}
	pw, err := secrets.GetPassword(secrets.SMTPKeyringAccount(cfg))
	if err != nil {
		return fmt.Errorf("smtp password: %w", err)
	}
	mailer := notify.NewMailer(cfg.Report.From, notify.SMTPSender{
		Host:     cfg.Report.SMTPHost,
		Port:     cfg.Report.SMTPPort,
		Username: cfg.Report.Username,
		Password: pw,
	})
	return mailer.Report(ctx, recipient, res, ledgerCSV)
}
