package main

import (
	"context"
	"errors"
	"log"

	"github.com/Ganngann/form-act-sub001/internal/config"
	"github.com/Ganngann/form-act-sub001/internal/database"
	"github.com/Ganngann/form-act-sub001/internal/models"
	"github.com/Ganngann/form-act-sub001/internal/repository"
	"github.com/Ganngann/form-act-sub001/internal/routes"
	"github.com/Ganngann/form-act-sub001/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.DBUrl == "" {
		log.Fatal("DB_URL is required")
	}
	if err := database.ConnectDB(cfg.DBUrl); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB()

	if err := seedDefaultAdmin(cfg); err != nil {
		log.Fatalf("Failed to seed default admin: %v", err)
	}

	app := fiber.New()

	app.Use(cors.New())
	if cfg.AppEnv != "test" {
		app.Use(logger.New())
	}
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	routes.RegisterRoutes(app, cfg, database.DB)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// seedDefaultAdmin creates the back-office account on first boot when the
// DEFAULT_ADMIN_* variables are set. An existing account is left untouched.
func seedDefaultAdmin(cfg *config.Config) error {
	if cfg.DefaultAdminEmail == "" || cfg.DefaultAdminPassword == "" {
		return nil
	}

	ctx := context.Background()
	userRepo := repository.NewUserRepository(database.DB)

	_, err := userRepo.GetByEmail(ctx, cfg.DefaultAdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hashed, err := utils.HashPassword(cfg.DefaultAdminPassword)
	if err != nil {
		return err
	}

	admin := &models.User{
		Email:        cfg.DefaultAdminEmail,
		PasswordHash: hashed,
		Role:         models.RoleAdmin,
	}
	if err := userRepo.CreateUser(ctx, admin); err != nil {
		return err
	}
	log.Printf("Seeded default admin account %s", cfg.DefaultAdminEmail)
	return nil
}
