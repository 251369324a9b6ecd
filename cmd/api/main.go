package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/agent"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/flow"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/llm"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/trigger"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/whatsapp"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/handlers"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/repositories"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/services"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/shared/config"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/shared/database"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/shared/utils"
)

func main() {
	cfg := config.LoadConfig()
	utils.InitLogger()
	log.Printf("🚀 Starting crm-api on port %s", cfg.Port)

	db := database.NewDB(cfg.DatabaseURL)
	defer db.Close()

	// Repositories
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

	// Channel and LLM providers
	waService := whatsapp.NewService(cfg.WhatsAppStoreURL)
	llmService := llm.NewService()
	log.Printf("📱 Using WhatsApp provider: %s", waService.GetProviderName())
	log.Printf("🤖 Using LLM provider: %s", llmService.GetProviderName())

	// Core engines
	gateway := services.NewGatewayAdapter(waService)
	logStore := services.NewLogStoreAdapter(logRepo)
	memoryStore := services.NewMemoryStoreAdapter(memoryRepo)

	stageService := services.NewStageService(contactRepo, stageRepo, automationRepo, queueRepo, historyRepo)
	contactService := services.NewContactService(contactRepo, tagRepo, stageRepo, historyRepo, stageService)

	executor := flow.NewExecutor(
		gateway,
		contactService,
		services.NewTagStoreAdapter(tagRepo),
		services.NewStageStoreAdapter(stageRepo),
		logStore,
		services.NewHistoryStoreAdapter(historyRepo),
		services.NewCursorStoreAdapter(cursorRepo),
		services.NewResumeQueueAdapter(queueRepo),
	)
	matcher := trigger.NewMatcher(logStore)
	engine := agent.NewEngine(gateway, llmService, memoryStore, contactService)
	runner := agent.NewFollowUpRunner(gateway, llmService, memoryStore)

	automationService := services.NewAutomationService(
		workspaceRepo, contactRepo, botRepo, agentRepo, followUpRepo, historyRepo,
		matcher, executor, engine,
	)
	sweepService := services.NewSweepService(
		queueRepo, followUpRepo, automationRepo, botRepo, agentRepo,
		contactRepo, workspaceRepo, stageRepo, tagRepo,
		executor, runner, stageService, cfg.SweepBatchSize,
	)

	// Connect the channel and feed inbound messages into the router.
	if err := waService.Connect(); err != nil {
		log.Printf("⚠️ WhatsApp connect failed, webhook path still works: %v", err)
	}
	if err := waService.StartListening(func(msg whatsapp.InboundMessage) {
		if err := automationService.HandleInbound(context.Background(), msg); err != nil {
			log.Printf("❌ Failed to process inbound message from %s: %v", msg.Sender, err)
		}
	}); err != nil {
		log.Printf("⚠️ Listener not started: %v", err)
	}
	go waService.StartKeepAlive(context.Background())

	// Handlers
	webhookHandler := handlers.NewWebhookHandler(automationService)
	sweepHandler := handlers.NewSweepHandler(sweepService)
	workflowHandler := handlers.NewWorkflowHandler(botRepo, logRepo)
	agentHandler := handlers.NewAgentHandler(agentRepo, memoryRepo)
	whatsappHandler := handlers.NewWhatsAppHandler(waService)
	healthHandler := handlers.NewHealthHandler(waService)

	app := fiber.New()
	app.Use(cors.New())

	app.Post("/webhook/messages", webhookHandler.ReceiveMessage)
	app.Post("/sweep", sweepHandler.RunSweep)

	app.Post("/workflows", workflowHandler.CreateWorkflow)
	app.Get("/workflows", workflowHandler.ListWorkflows)
	app.Get("/workflows/:id", workflowHandler.GetWorkflow)
	app.Put("/workflows/:id", workflowHandler.UpdateWorkflow)
	app.Delete("/workflows/:id", workflowHandler.DeleteWorkflow)
	app.Get("/workflows/:id/executions", workflowHandler.GetWorkflowExecutions)

	app.Post("/agents", agentHandler.CreateAgent)
	app.Get("/agents", agentHandler.ListAgents)
	app.Get("/agents/:id", agentHandler.GetAgent)
	app.Put("/agents/:id", agentHandler.UpdateAgent)
	app.Get("/agents/:id/memory", agentHandler.GetAgentMemory)

	app.Get("/whatsapp/qr", whatsappHandler.GetQRCode)
	app.Get("/whatsapp/status", whatsappHandler.GetStatus)
	app.Get("/health", healthHandler.GetHealth)

	log.Fatal(app.Listen(":" + cfg.Port))
}
