package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Ganngann/form-act-sub001/internal/models"
	"github.com/Ganngann/form-act-sub001/internal/repository"
	"github.com/Ganngann/form-act-sub001/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

type dispatcher interface {
	ResolveTrainers(ctx context.Context, formationID, zoneID int64) (*services.TrainerMatch, error)
	ResolveAvailableSlots(ctx context.Context, formationID, trainerID int64, date time.Time) ([]string, error)
	TrainerAvailability(ctx context.Context, trainerID int64, from time.Time) ([]models.TrainingSession, error)
}

type DispatchHandler struct {
	service  dispatcher
	zoneRepo *repository.ZoneRepository
}

func NewDispatchHandler(service *services.DispatchService, zoneRepo *repository.ZoneRepository) *DispatchHandler {
	return &DispatchHandler{service: service, zoneRepo: zoneRepo}
}

func (h *DispatchHandler) ListZones(c *fiber.Ctx) error {
	zones, err := h.zoneRepo.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list zones"})
	}
	return c.JSON(fiber.Map{"zones": zones})
}

// EligibleTrainers answers "who can deliver this formation in this zone". An
// empty list with manual_request_allowed=true means the client may still file
// a request routed to the offer workflow.
func (h *DispatchHandler) EligibleTrainers(c *fiber.Ctx) error {
	formationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || formationID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid formation id"})
	}
	zoneID, err := strconv.ParseInt(strings.TrimSpace(c.Query("zone_id")), 10, 64)
	if err != nil || zoneID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "zone_id must be greater than 0"})
	}

	match, err := h.service.ResolveTrainers(c.Context(), formationID, zoneID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Formation or zone not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to resolve trainers"})
	}

	return c.JSON(match)
}

func (h *DispatchHandler) AvailableSlots(c *fiber.Ctx) error {
	formationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || formationID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid formation id"})
	}
	trainerID, err := strconv.ParseInt(strings.TrimSpace(c.Query("trainer_id")), 10, 64)
	if err != nil || trainerID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "trainer_id must be greater than 0"})
	}
	date, err := time.Parse(dateLayout, strings.TrimSpace(c.Query("date")))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date must be formatted YYYY-MM-DD"})
	}

	slots, err := h.service.ResolveAvailableSlots(c.Context(), formationID, trainerID, date)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Formation not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to resolve slots"})
	}

	return c.JSON(fiber.Map{"slots": slots})
}

func (h *DispatchHandler) TrainerAvailability(c *fiber.Ctx) error {
	trainerID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || trainerID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trainer id"})
	}

	from := time.Now().UTC()
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		from, err = time.Parse(dateLayout, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "from must be formatted YYYY-MM-DD"})
		}
	}

	sessions, err := h.service.TrainerAvailability(c.Context(), trainerID, from)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load availability"})
	}

	occupied := make([]fiber.Map, 0, len(sessions))
	for _, session := range sessions {
		occupied = append(occupied, fiber.Map{
			"date": session.Date.Format(dateLayout),
			"slot": session.Slot,
		})
	}
	return c.JSON(fiber.Map{"occupied": occupied})
}
