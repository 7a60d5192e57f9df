package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/Ganngann/form-act-sub001/internal/models"
	"github.com/Ganngann/form-act-sub001/internal/repository"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

type FormationHandler struct {
	formationRepo *repository.FormationRepository
}

func NewFormationHandler(formationRepo *repository.FormationRepository) *FormationHandler {
	return &FormationHandler{formationRepo: formationRepo}
}

func (h *FormationHandler) ListPublished(c *fiber.Ctx) error {
	formations, err := h.formationRepo.ListPublished(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list formations"})
	}
	return c.JSON(fiber.Map{"formations": formations})
}

func (h *FormationHandler) GetFormation(c *fiber.Ctx) error {
	formationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || formationID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid formation id"})
	}

	formation, err := h.formationRepo.GetByID(c.Context(), formationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Formation not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch formation"})
	}
	return c.JSON(fiber.Map{"formation": formation})
}

type createFormationRequest struct {
	Title                string  `json:"title"`
	Description          *string `json:"description"`
	Category             *string `json:"category"`
	DurationType         string  `json:"duration_type"`
	Price                float64 `json:"price"`
	IsExpertise          bool    `json:"is_expertise"`
	IsPublished          bool    `json:"is_published"`
	AuthorizedTrainerIDs []int64 `json:"authorized_trainer_ids"`
}

func (h *FormationHandler) CreateFormation(c *fiber.Ctx) error {
	var req createFormationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if strings.TrimSpace(req.Title) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
	}
	if !models.ValidDurationType(req.DurationType) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "duration_type must be HALF_DAY or FULL_DAY"})
	}
	if req.Price < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "price must not be negative"})
	}
	if req.IsExpertise && len(req.AuthorizedTrainerIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "expertise formations need at least one authorized trainer"})
	}

	formation, err := h.formationRepo.Create(c.Context(), repository.CreateFormationInput{
		Title:                strings.TrimSpace(req.Title),
		Description:          req.Description,
		Category:             req.Category,
		DurationType:         req.DurationType,
		Price:                req.Price,
		IsExpertise:          req.IsExpertise,
		IsPublished:          req.IsPublished,
		AuthorizedTrainerIDs: req.AuthorizedTrainerIDs,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create formation"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"formation": formation})
}
