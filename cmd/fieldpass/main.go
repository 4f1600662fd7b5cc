package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fieldpass/fieldpass/alert"
	"github.com/fieldpass/fieldpass/api"
	"github.com/fieldpass/fieldpass/attendance"
	"github.com/fieldpass/fieldpass/challenge"
	"github.com/fieldpass/fieldpass/config"
	"github.com/fieldpass/fieldpass/enroll"
	"github.com/fieldpass/fieldpass/gormstore"
	"github.com/fieldpass/fieldpass/logger"
	"github.com/fieldpass/fieldpass/passkey"
	"github.com/fieldpass/fieldpass/schedule"
	"github.com/fieldpass/fieldpass/verify"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger.InitLogger(cfg.LogLevel)
	defer logger.Log.Sync()

	logger.Log.Info("starting FieldPass attendance service",
		zap.Int("port", cfg.Port),
		zap.String("db_type", cfg.DBType),
		zap.String("rp_id", cfg.RPID),
	)

	repo, err := gormstore.NewStorage(cfg.DBType, cfg.DSN, cfg.SkipAutoMigrate)
	if err != nil {
		logger.Log.Fatal("failed to initialize storage", zap.Error(err))
	}

	// Challenge and failure state live in Redis when configured, so
	// several instances can share one ceremony namespace.
	var challenges challenge.Store
	var failures alert.FailureStore
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		challenges = challenge.NewRedisStore(client, "", cfg.ChallengeTTL)
		failures = alert.NewRedisFailureStore(client, "")
	} else {
		mem := challenge.NewMemoryStore(cfg.ChallengeTTL)
		mem.StartSweeper(cfg.ChallengeTTL)
		challenges = mem
		failures = alert.NewMemoryFailureStore()
	}

	rp, err := passkey.New(passkey.Config{
		RPDisplayName:   cfg.RPDisplayName,
		RPID:            cfg.RPID,
		RPOrigins:       cfg.Origins(),
		CeremonyTimeout: cfg.ChallengeTTL,
	})
	if err != nil {
		logger.Log.Fatal("failed to initialize relying party", zap.Error(err))
	}

	emitter := alert.NewEmitter(repo, failures, alert.Config{
		FailureThreshold: cfg.FailureAlertThreshold,
		FailureWindow:    cfg.FailureAlertWindow,
	})

	engine := verify.NewEngine(repo, repo, repo, challenges, rp, emitter, verify.Config{
		FaceThreshold:     cfg.FaceMatchThreshold,
		MinDescriptorDims: cfg.FaceMinDims,
	})
	enrollMgr := enroll.NewManager(repo, repo, repo, challenges, rp, emitter)

	// Single-site default schedule; a real deployment plugs in its own
	// schedule.Provider implementation.
	provider := &schedule.StaticProvider{
		Sched: schedule.GroupSchedule{
			Start: 9 * time.Hour,
			End:   17 * time.Hour,
			Grace: 15 * time.Minute,
			Zone:  time.UTC,
		},
	}
	processor := attendance.NewProcessor(repo, repo, provider, emitter)

	h := api.NewHandler(engine, enrollMgr, processor, emitter, repo, cfg.FaceIdentifyMode)
	auth := api.NewSubjectMiddleware(cfg.JWTSecret, repo)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"status": "ok"})
	})

	g := e.Group("/api/v1")
	h.RegisterRoutes(g, auth)

	logger.Log.Info("server is starting", zap.Int("port", cfg.Port))
	if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Log.Fatal("server failed to start", zap.Error(err))
	}
}
