package main

import (
	"fmt"
	"time"

	"github.com/ShaharSGA/Project/internal/config"
	"github.com/ShaharSGA/Project/internal/handlers"
	"github.com/ShaharSGA/Project/internal/middleware"
	"github.com/ShaharSGA/Project/internal/models"
	"github.com/ShaharSGA/Project/internal/services"
	"github.com/ShaharSGA/Project/internal/store"
	"github.com/ShaharSGA/Project/internal/utils"
	"github.com/ShaharSGA/Project/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
)

// appServices holds everything main needs to serve and later shut down.
type appServices struct {
	cfg       *config.Config
	db        *gorm.DB
	registry  *prometheus.Registry
	tokens    *utils.TokenManager
	taskQueue services.TaskQueue
	worker    *services.Worker
	scheduler *services.LabScheduler
	limiter   *middleware.RateLimiter

	authHandler     *handlers.AuthHandler
	feedbackHandler *handlers.FeedbackHandler
	labHandler      *handlers.LabHandler
	learningHandler *handlers.LearningHandler
	healthHandler   *handlers.HealthHandler
}

// bootstrap opens the database and wires services, queue and schedulers.
func bootstrap(cfg *config.Config) (*appServices, error) {
	db, err := models.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := services.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	// The queue must exist before the store so approvals can enqueue refreshes.
	taskQueue := services.NewTaskQueue(&cfg.Redis)
	feedbackStore := store.NewGormStore(db, store.WithApprovalHook(services.LearningApprovalHook(taskQueue)))

	ai := services.NewAIService(&cfg.LLM)
	var judge services.Judge
	if ai.Configured() {
		judge = services.NewLLMJudge(ai, services.NewJudgmentCache(time.Duration(cfg.Feedback.JudgmentCacheMinutes)*time.Minute))
	} else {
		logger.Warn().Msg("No LLM provider configured, actionability falls back to heuristics")
	}
	classifier := services.NewActionabilityClassifier(judge, time.Duration(cfg.LLM.TimeoutMS)*time.Millisecond, metrics)
	triage := services.NewTriageService(classifier, metrics)

	feedback := services.NewFeedbackService(feedbackStore, triage, &cfg.Feedback)
	lab := services.NewLabService(feedbackStore, &cfg.Feedback, metrics)
	learning := services.NewLearningService(feedbackStore, &cfg.Learning, metrics)

	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(learning.ProcessTask)
	}

	worker := services.NewWorker(&cfg.Redis)
	if worker != nil {
		worker.SetProcessor(learning.ProcessTask)
		if err := worker.Start(); err != nil {
			return nil, fmt.Errorf("start worker: %w", err)
		}
	}

	scheduler := services.NewLabScheduler(lab, cfg.Feedback.LabAgingCron)
	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("start lab scheduler: %w", err)
	}

	tokens := utils.NewTokenManager(cfg.Auth.JWTSecret)
	auth, err := services.NewAuthService(&cfg.Auth, tokens)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	queueMode := "sync"
	if taskQueue.IsAsync() {
		queueMode = "redis"
	}

	return &appServices{
		cfg:       cfg,
		db:        db,
		registry:  registry,
		tokens:    tokens,
		taskQueue: taskQueue,
		worker:    worker,
		scheduler: scheduler,
		limiter:   middleware.NewRateLimiter(cfg.Feedback.SubmitRPS, cfg.Feedback.SubmitBurst),

		authHandler:     handlers.NewAuthHandler(auth),
		feedbackHandler: handlers.NewFeedbackHandler(feedback),
		labHandler:      handlers.NewLabHandler(lab),
		learningHandler: handlers.NewLearningHandler(learning),
		healthHandler:   handlers.NewHealthHandler(sqlDB, queueMode),
	}, nil
}

// shutdown stops background work, then releases the queue and database.
func (s *appServices) shutdown() {
	s.scheduler.Stop()
	logger.Info().Msg("Lab scheduler stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		if err := s.taskQueue.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close task queue")
		}
	}
	s.limiter.Close()

	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
