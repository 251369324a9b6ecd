package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/agent"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/flow"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/llm"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/whatsapp"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/repositories"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/services"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/shared/config"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/shared/database"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/shared/utils"
)

// The sweeper is the scheduled half of the engine: it drains the automation,
// resume and follow-up queues on a cron. It runs as its own process so a
// slow sweep never blocks the API.
func main() {
	cfg := config.LoadConfig()
	utils.InitLogger()
	log.Printf("🚀 Starting crm-sweeper (schedule: %s, batch: %d)", cfg.SweepSchedule, cfg.SweepBatchSize)

	db := database.NewDB(cfg.DatabaseURL)
	defer db.Close()

	workspaceRepo := repositories.NewWorkspaceRepo(db.GORM)
	contactRepo := repositories.NewContactRepo(db.GORM)
	tagRepo := repositories.NewTagRepo(db.GORM)
	stageRepo := repositories.NewStageRepo(db.GORM)
	botRepo := repositories.NewBotRepo(db.GORM)
	agentRepo := repositories.NewAgentRepo(db.GORM)
	automationRepo := repositories.NewAutomationRepo(db.GORM)
	queueRepo := repositories.NewQueueRepo(db.GORM)
	followUpRepo := repositories.NewFollowUpRepo(db.GORM)
	memoryRepo := repositories.NewMemoryRepo(db.GORM)
	historyRepo := repositories.NewHistoryRepo(db.GORM)
	logRepo := repositories.NewExecutionLogRepo(db.GORM)
	cursorRepo := repositories.NewCursorRepo(db.GORM)

	waService := whatsapp.NewService(cfg.WhatsAppStoreURL)
	llmService := llm.NewService()
	if err := waService.Connect(); err != nil {
		log.Printf("⚠️ WhatsApp connect failed, sends will error until it recovers: %v", err)
	}

	gateway := services.NewGatewayAdapter(waService)
	memoryStore := services.NewMemoryStoreAdapter(memoryRepo)

	stageService := services.NewStageService(contactRepo, stageRepo, automationRepo, queueRepo, historyRepo)
	contactService := services.NewContactService(contactRepo, tagRepo, stageRepo, historyRepo, stageService)

	executor := flow.NewExecutor(
		gateway,
		contactService,
		services.NewTagStoreAdapter(tagRepo),
		services.NewStageStoreAdapter(stageRepo),
		services.NewLogStoreAdapter(logRepo),
		services.NewHistoryStoreAdapter(historyRepo),
		services.NewCursorStoreAdapter(cursorRepo),
		services.NewResumeQueueAdapter(queueRepo),
	)
	runner := agent.NewFollowUpRunner(gateway, llmService, memoryStore)

	sweepService := services.NewSweepService(
		queueRepo, followUpRepo, automationRepo, botRepo, agentRepo,
		contactRepo, workspaceRepo, stageRepo, tagRepo,
		executor, runner, stageService, cfg.SweepBatchSize,
	)

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(cfg.SweepSchedule, func() {
		if _, err := sweepService.Sweep(context.Background()); err != nil {
			log.Printf("❌ Sweep failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("❌ Invalid sweep schedule %q: %v", cfg.SweepSchedule, err)
	}
	c.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down sweeper...")
	<-c.Stop().Done()
	waService.Disconnect()
}
