package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/promptshield/promptshield/backend/internal/api/routes"
	"github.com/promptshield/promptshield/backend/internal/classifier"
	"github.com/promptshield/promptshield/backend/internal/config"
	"github.com/promptshield/promptshield/backend/internal/database"
	"github.com/promptshield/promptshield/backend/internal/evolution"
	"github.com/promptshield/promptshield/backend/internal/llm"
	"github.com/promptshield/promptshield/backend/internal/logger"
	"github.com/promptshield/promptshield/backend/internal/models"
	"github.com/promptshield/promptshield/backend/internal/pipeline"
	"github.com/promptshield/promptshield/backend/internal/policy"
	"github.com/promptshield/promptshield/backend/internal/server"
	"github.com/promptshield/promptshield/backend/internal/services"
	"github.com/promptshield/promptshield/backend/internal/store"
	"github.com/promptshield/promptshield/backend/internal/version"
)

func main() {
	// Setup logging with rotation
	logDir := "data/logs"
	_ = os.MkdirAll(logDir, 0o755)

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "promptshield.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Log to both stdout and file
	logger.Init(cfg.Environment == "development", io.MultiWriter(os.Stdout, rotator))

	// Handle CLI commands
	if len(os.Args) > 1 && os.Args[1] == "create-reviewer" {
		if len(os.Args) != 5 {
			log.Fatalf("Usage: %s create-reviewer <email> <password> <name>", os.Args[0])
		}
		createReviewer(cfg, os.Args[2], os.Args[3], os.Args[4])
		return
	}

	logger.Log().Infof("starting %s backend version %s", version.Name, version.Full())

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = randomSecret()
		logger.Log().Warn("PS_JWT_SECRET not set; using an ephemeral secret, sessions will not survive restarts")
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	pol, err := policy.Load(cfg.PolicyPath)
	if err != nil {
		logger.Log().WithError(err).Warn("policy file invalid; using defaults")
	}

	rules := store.NewRuleStore(cfg.RulesPath)
	if err := rules.Seed(pol.StarterPatterns); err != nil {
		logger.Log().WithError(err).Warn("failed to seed starter rules")
	}
	pending := store.NewPendingStore(cfg.PendingPath)

	events := services.NewEventService(db)
	notifications := services.NewNotificationService(db, cfg.NotifyURLs)
	governance := services.NewGovernanceService(rules, pending, notifications)
	auth := services.NewAuthService(db, cfg)

	scorer := buildScorer(cfg)
	pipe := pipeline.New(rules, scorer, events, pol.SensitiveTerms, cfg.ClassifierThreshold, cfg.ClassifierMaxInput)
	provider := buildProvider(cfg)

	aggregator := evolution.NewAggregator(events, cfg.FeedURL, cfg.FeedTimeout, pol.FallbackSamples, pol.Motifs)
	synthesizer := evolution.NewSynthesizer(
		llm.NewClient(cfg.SynthBaseURL, cfg.SynthAPIKey, cfg.SynthModel, cfg.LLMTimeout),
		"Hybrid Analysis",
	)
	engine := evolution.NewEngine(aggregator, synthesizer, rules, pending, notifications,
		cfg.InternalLimit, cfg.ExternalLimit, cfg.MinCoverage)

	scheduler, err := evolution.StartScheduler(cfg.CycleSpec, engine)
	if err != nil {
		log.Fatalf("start scheduler: %v", err)
	}
	defer scheduler.Stop()

	srv, err := server.New(db, cfg, routes.Deps{
		Pipeline:      pipe,
		Provider:      provider,
		Events:        events,
		Governance:    governance,
		Notifications: notifications,
		Auth:          auth,
	})
	if err != nil {
		log.Fatalf("build server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log().WithField("port", cfg.HTTPPort).Info("listening")
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// buildScorer picks the classifier implementation from config: a local ONNX
// bundle, a remote scoring sidecar, or a permissive stub for development.
func buildScorer(cfg config.Config) pipeline.Scorer {
	if cfg.ClassifierBundleDir != "" {
		scorer, err := classifier.LoadONNX(cfg.ClassifierBundleDir, cfg.ClassifierMaxInput)
		if err != nil {
			log.Fatalf("load classifier bundle: %v", err)
		}
		return scorer
	}

	if cfg.ClassifierURL != "" {
		return classifier.NewRemote(cfg.ClassifierURL, cfg.ClassifierTimeout)
	}

	logger.Log().Warn("no classifier configured; ML layer scores everything 0.0 (static and output layers remain active)")
	return classifier.Stub{Fixed: 0.0}
}

// buildProvider picks the upstream model client, falling back to the fake
// provider when no API is configured.
func buildProvider(cfg config.Config) llm.Provider {
	if cfg.LLMBaseURL != "" {
		return llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout)
	}

	logger.Log().Warn("no upstream LLM configured; using the simulated provider")
	return llm.NewFake()
}

func createReviewer(cfg config.Config, email, password, name string) {
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		log.Fatalf("migrate users: %v", err)
	}

	auth := services.NewAuthService(db, cfg)
	user, err := auth.Register(email, password, name)
	if err != nil {
		log.Fatalf("create reviewer: %v", err)
	}

	log.Printf("created %s account for %s", user.Role, user.Email)
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("generate jwt secret: %v", err)
	}
	return hex.EncodeToString(buf)
}
