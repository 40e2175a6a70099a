package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kmelentyev/rosterd/internal/analytics"
	"github.com/kmelentyev/rosterd/internal/app"
	"github.com/kmelentyev/rosterd/internal/config"
	"github.com/kmelentyev/rosterd/internal/export"
	"github.com/kmelentyev/rosterd/internal/jobs"
	"github.com/kmelentyev/rosterd/internal/logging"
	"github.com/kmelentyev/rosterd/internal/metrics"
	"github.com/kmelentyev/rosterd/internal/models"
	"github.com/kmelentyev/rosterd/internal/notify"
	"github.com/kmelentyev/rosterd/internal/observability"
	"github.com/kmelentyev/rosterd/internal/roster"
	"github.com/kmelentyev/rosterd/internal/snapshot"
	"github.com/kmelentyev/rosterd/internal/store"
	"github.com/kmelentyev/rosterd/internal/store/memstore"
	"github.com/kmelentyev/rosterd/internal/store/postgres"
)

const release = "rosterd@dev"

// activityWriter persists roster events into the activity log.
type activityWriter struct {
	st  store.Store
	log *zap.Logger
}

func (w *activityWriter) Record(ctx context.Context, ev models.ActivityEvent) {
	schoolID := ev.SchoolID
	_, err := w.st.InsertActivity(ctx, models.Activity{
		UserID:   ev.ActorUserID,
		SchoolID: &schoolID,
		Action:   ev.Action,
		Details:  ev.Details,
		Role:     ev.ActorRole,
		Scope:    ev.Scope,
	})
	if err != nil {
		w.log.Warn("activity write failed", zap.String("action", ev.Action), zap.Error(err))
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, relying on process env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer lg.Closer()

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, release)
	if err != nil {
		lg.Sugar.Warnw("sentry init failed", "err", err)
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		st     store.Store
		pinger app.Pinger
	)
	if cfg.DatabaseURL == "memory://" {
		mem := memstore.New()
		st, pinger = mem, mem
		lg.Base.Info("using in-memory store")
	} else {
		pg, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			lg.Base.Fatal("open store", zap.Error(err))
		}
		defer func() { _ = pg.Close() }()
		if err := pg.Migrate(ctx); err != nil {
			lg.Base.Fatal("migrate", zap.Error(err))
		}
		st, pinger = pg, pg
	}

	if cfg.SeedDemo && cfg.Env != "prod" {
		if err := store.SeedDemo(ctx, st); err != nil {
			lg.Base.Warn("seed demo data", zap.Error(err))
		}
	}

	recorders := roster.MultiRecorder{&activityWriter{st: st, log: lg.Base}}
	var notifier *notify.Notifier
	if cfg.BotToken != "" && len(cfg.AdminChatIDs) > 0 {
		notifier, err = notify.New(cfg.BotToken, cfg.AdminChatIDs, lg.Base)
		if err != nil {
			lg.Base.Warn("telegram notifier disabled", zap.Error(err))
		} else {
			recorders = append(recorders, notifier)
		}
	}

	manager := roster.New(st, lg.Base, recorders)
	engine := analytics.New(st)
	builder := snapshot.New(st, engine, lg.Base)

	runner := jobs.New(ctx)
	runner.Every(24*time.Hour, "engagement_report", func(ctx context.Context) error {
		schools, err := st.ListSchools(ctx)
		if err != nil {
			return err
		}
		for _, sc := range schools {
			snap, err := builder.Build(ctx, sc.ID)
			if err != nil {
				return err
			}
			wb, err := export.NewReportWorkbook(export.SnapshotSheets(snap))
			if err != nil {
				return err
			}
			path, err := wb.SaveTemp(sc.ID)
			if err != nil {
				return err
			}
			lg.Base.Info("engagement report written", zap.Int64("school_id", sc.ID), zap.String("path", path))
		}
		return nil
	})
	runner.Every(30*time.Second, "db_ping", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 800*time.Millisecond)
		defer cancel()
		t0 := time.Now()
		if err := pinger.PingContext(ctx); err != nil {
			return err
		}
		metrics.ObserveDBPing(time.Since(t0))
		return nil
	})
	if notifier != nil {
		runner.Every(6*time.Hour, "pending_reminder", jobs.PendingReminder(st, notifier))
	}

	api := &app.API{Manager: manager, Snapshot: builder, Log: lg.Base}
	app.StartHTTP(ctx, cfg.HTTPAddr, pinger, api)
	lg.Sugar.Infow("rosterd started", "addr", cfg.HTTPAddr, "env", cfg.Env)

	<-ctx.Done()
	lg.Base.Info("shutting down")
}
