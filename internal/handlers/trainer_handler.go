package handlers

import (
	"errors"
	"net/mail"
	"strconv"
	"strings"

	"github.com/Ganngann/form-act-sub001/internal/models"
	"github.com/Ganngann/form-act-sub001/internal/repository"
	"github.com/Ganngann/form-act-sub001/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TrainerHandler struct {
	db          *pgxpool.Pool
	trainerRepo *repository.TrainerRepository
}

func NewTrainerHandler(db *pgxpool.Pool, trainerRepo *repository.TrainerRepository) *TrainerHandler {
	return &TrainerHandler{db: db, trainerRepo: trainerRepo}
}

type createTrainerRequest struct {
	FirstName           string  `json:"first_name"`
	LastName            string  `json:"last_name"`
	Email               string  `json:"email"`
	Password            *string `json:"password"`
	Bio                 *string `json:"bio"`
	PredilectionZoneIDs []int64 `json:"predilection_zone_ids"`
	ExpertiseZoneIDs    []int64 `json:"expertise_zone_ids"`
}

// CreateTrainer provisions a trainer, optionally with a portal login when a
// password is supplied.
func (h *TrainerHandler) CreateTrainer(c *fiber.Ctx) error {
	var req createTrainerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "first_name and last_name are required"})
	}
	parsedEmail, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid email format"})
	}
	email := strings.ToLower(parsedEmail.Address)
	if req.Password != nil && len(*req.Password) < 8 {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "Password must be at least 8 characters"})
	}

	tx, err := h.db.Begin(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to start transaction"})
	}
	defer func() {
		_ = tx.Rollback(c.Context())
	}()

	var userID *int64
	if req.Password != nil {
		hashed, err := utils.HashPassword(*req.Password)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to hash password"})
		}
		user := &models.User{Email: email, PasswordHash: hashed, Role: models.RoleTrainer}
		if err := repository.NewUserRepository(tx).CreateUser(c.Context(), user); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Email already exists"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create user"})
		}
		userID = &user.ID
	}

	trainer, err := repository.NewTrainerRepository(tx).Create(c.Context(), repository.CreateTrainerInput{
		UserID:              userID,
		FirstName:           strings.TrimSpace(req.FirstName),
		LastName:            strings.TrimSpace(req.LastName),
		Email:               email,
		Bio:                 req.Bio,
		PredilectionZoneIDs: req.PredilectionZoneIDs,
		ExpertiseZoneIDs:    req.ExpertiseZoneIDs,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Email already exists"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create trainer"})
	}

	if err := tx.Commit(c.Context()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to finalize trainer creation"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"trainer": trainer})
}

func (h *TrainerHandler) ListTrainers(c *fiber.Ctx) error {
	trainers, err := h.trainerRepo.ListAll(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list trainers"})
	}
	return c.JSON(fiber.Map{"trainers": trainers})
}

type setTrainerActiveRequest struct {
	IsActive bool `json:"is_active"`
}

func (h *TrainerHandler) SetActive(c *fiber.Ctx) error {
	trainerID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || trainerID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trainer id"})
	}

	var req setTrainerActiveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	trainer, err := h.trainerRepo.SetActive(c.Context(), trainerID, req.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Trainer not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update trainer"})
	}
	return c.JSON(fiber.Map{"trainer": trainer})
}
