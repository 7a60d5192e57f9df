package routes

import (
	"github.com/Ganngann/form-act-sub001/internal/config"
	"github.com/Ganngann/form-act-sub001/internal/handlers"
	"github.com/Ganngann/form-act-sub001/internal/middleware"
	"github.com/Ganngann/form-act-sub001/internal/models"
	"github.com/Ganngann/form-act-sub001/internal/repository"
	"github.com/Ganngann/form-act-sub001/internal/services"
	sessionws "github.com/Ganngann/form-act-sub001/internal/websocket"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) {
	userRepo := repository.NewUserRepository(db)
	clientRepo := repository.NewClientRepository(db)
	zoneRepo := repository.NewZoneRepository(db)
	trainerRepo := repository.NewTrainerRepository(db)
	formationRepo := repository.NewFormationRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	var storageService services.ProofStorage
	if cfg.SupabaseURL != "" && cfg.SupabaseBucket != "" && cfg.SupabaseServiceKey != "" {
		storageService = services.NewSupabaseStorageService(cfg.SupabaseURL, cfg.SupabaseBucket, cfg.SupabaseServiceKey)
	}

	sessionHub := sessionws.NewHub()
	go sessionHub.Run()

	dispatchService := services.NewDispatchService(trainerRepo, formationRepo, zoneRepo, sessionRepo)
	sessionService := services.NewSessionService(db, sessionRepo, formationRepo, trainerRepo, clientRepo, sessionHub)

	authHandler := handlers.NewAuthHandler(db, userRepo, clientRepo, trainerRepo, cfg.JWTSecret)
	dispatchHandler := handlers.NewDispatchHandler(dispatchService, zoneRepo)
	formationHandler := handlers.NewFormationHandler(formationRepo)
	trainerHandler := handlers.NewTrainerHandler(db, trainerRepo)
	sessionHandler := handlers.NewSessionHandler(sessionService, storageService)
	feedHandler := handlers.NewFeedHandler(sessionHub, cfg.JWTSecret)

	adminOnly := middleware.RequireRole(models.RoleAdmin)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	authProtected.Get("/zones", dispatchHandler.ListZones)

	formations := authProtected.Group("/formations")
	formations.Get("", formationHandler.ListPublished)
	formations.Post("", adminOnly, formationHandler.CreateFormation)
	formations.Get("/:id", formationHandler.GetFormation)
	formations.Get("/:id/trainers", dispatchHandler.EligibleTrainers)
	formations.Get("/:id/slots", dispatchHandler.AvailableSlots)

	trainers := authProtected.Group("/trainers")
	trainers.Get("", adminOnly, trainerHandler.ListTrainers)
	trainers.Post("", adminOnly, trainerHandler.CreateTrainer)
	trainers.Patch("/:id/active", adminOnly, trainerHandler.SetActive)
	trainers.Get("/:id/availability", dispatchHandler.TrainerAvailability)

	sessions := authProtected.Group("/sessions")
	sessions.Post("", sessionHandler.BookSession)
	sessions.Get("", sessionHandler.ListSessions)
	sessions.Get("/stats", adminOnly, sessionHandler.AdminStats)
	sessions.Get("/:id", sessionHandler.GetSession)
	sessions.Patch("/:id/content", sessionHandler.UpdateContent)
	sessions.Post("/:id/cancel", sessionHandler.CancelSession)
	sessions.Post("/:id/accept", sessionHandler.AcceptOffer)
	sessions.Post("/:id/proof", sessionHandler.UploadProof)
	sessions.Get("/:id/proof", sessionHandler.DownloadProof)
	sessions.Post("/:id/offer", adminOnly, sessionHandler.SendOffer)
	sessions.Post("/:id/trainer", adminOnly, sessionHandler.AssignTrainer)
	sessions.Delete("/:id/trainer", adminOnly, sessionHandler.UnassignTrainer)
	sessions.Patch("/:id/logistics-open", adminOnly, sessionHandler.SetLogisticsOpen)
	sessions.Get("/:id/billing-preview", adminOnly, sessionHandler.BillingPreview)
	sessions.Post("/:id/bill", adminOnly, sessionHandler.BillSession)

	api.Use("/v1/ws", feedHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(feedHandler.HandleWebSocket))
}
