package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Ganngann/form-act-sub001/internal/models"
	"github.com/Ganngann/form-act-sub001/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

const dateLayout = "2006-01-02"

type sessionApplicationService interface {
	BookSession(ctx context.Context, userID int64, input services.BookSessionInput) (*models.SessionDetail, error)
	ListSessions(ctx context.Context, userID int64, role string, filter services.ListSessionsFilter) ([]models.SessionDetail, error)
	GetSession(ctx context.Context, userID int64, role string, sessionID int64) (*models.SessionDetail, error)
	UpdateSessionContent(ctx context.Context, userID int64, role string, sessionID int64, patch services.SessionContentPatch) (*models.SessionDetail, error)
	CancelSession(ctx context.Context, userID int64, role string, sessionID int64) (*models.SessionDetail, error)
	SendOffer(ctx context.Context, sessionID int64, price float64) (*models.SessionDetail, error)
	AcceptOffer(ctx context.Context, userID int64, sessionID int64) (*models.SessionDetail, error)
	AssignTrainer(ctx context.Context, sessionID, trainerID int64) (*models.SessionDetail, error)
	UnassignTrainer(ctx context.Context, sessionID int64) (*models.SessionDetail, error)
	SetLogisticsOpen(ctx context.Context, sessionID int64, open bool) (*models.SessionDetail, error)
	UpdateProof(ctx context.Context, userID int64, role string, sessionID int64, proofURL string) (*models.SessionDetail, error)
	BillingPreview(ctx context.Context, sessionID int64, adminAdjustment float64) (*services.BillingData, error)
	BillSession(ctx context.Context, sessionID int64, adminAdjustment float64) (*models.SessionDetail, error)
	AdminStats(ctx context.Context) (*services.SessionStats, error)
}

type SessionHandler struct {
	service sessionApplicationService
	storage services.ProofStorage
}

func NewSessionHandler(service *services.SessionService, storage services.ProofStorage) *SessionHandler {
	return &SessionHandler{service: service, storage: storage}
}

type bookSessionRequest struct {
	FormationID int64  `json:"formation_id"`
	ZoneID      int64  `json:"zone_id"`
	TrainerID   *int64 `json:"trainer_id"`
	Date        string `json:"date"`
	Slot        string `json:"slot"`
}

func (h *SessionHandler) BookSession(c *fiber.Ctx) error {
	userID, role, err := currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	if role != models.RoleClient {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	var req bookSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	date, err := time.Parse(dateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date must be formatted YYYY-MM-DD"})
	}
	if !models.ValidSlot(req.Slot) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "slot must be AM, PM or ALL_DAY"})
	}

	detail, err := h.service.BookSession(c.Context(), userID, services.BookSessionInput{
		FormationID: req.FormationID,
		ZoneID:      req.ZoneID,
		TrainerID:   req.TrainerID,
		Date:        date,
		Slot:        req.Slot,
	})
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": detail})
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	userID, role, err := currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	filter := services.ListSessionsFilter{
		Status: strings.TrimSpace(c.Query("status")),
	}
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		from, err := time.Parse(dateLayout, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "from must be formatted YYYY-MM-DD"})
		}
		filter.From = &from
	}
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		to, err := time.Parse(dateLayout, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "to must be formatted YYYY-MM-DD"})
		}
		filter.To = &to
	}

	sessions, err := h.service.ListSessions(c.Context(), userID, role, filter)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"sessions": sessions})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	userID, role, err := currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.service.GetSession(c.Context(), userID, role, sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

type sessionContentRequest struct {
	Location     *string `json:"location"`
	Logistics    *string `json:"logistics"`
	Participants *string `json:"participants"`
}

func (h *SessionHandler) UpdateContent(c *fiber.Ctx) error {
	userID, role, err := currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req sessionContentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	session, err := h.service.UpdateSessionContent(c.Context(), userID, role, sessionID, services.SessionContentPatch{
		Location:     req.Location,
		Logistics:    req.Logistics,
		Participants: req.Participants,
	})
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) CancelSession(c *fiber.Ctx) error {
	userID, role, err := currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.service.CancelSession(c.Context(), userID, role, sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

type sendOfferRequest struct {
	Price float64 `json:"price"`
}

func (h *SessionHandler) SendOffer(c *fiber.Ctx) error {
	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req sendOfferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	session, err := h.service.SendOffer(c.Context(), sessionID, req.Price)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) AcceptOffer(c *fiber.Ctx) error {
	userID, role, err := currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	if role != models.RoleClient {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.service.AcceptOffer(c.Context(), userID, sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

type assignTrainerRequest struct {
	TrainerID int64 `json:"trainer_id"`
}

func (h *SessionHandler) AssignTrainer(c *fiber.Ctx) error {
	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req assignTrainerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.TrainerID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "trainer_id must be greater than 0"})
	}

	session, err := h.service.AssignTrainer(c.Context(), sessionID, req.TrainerID)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) UnassignTrainer(c *fiber.Ctx) error {
	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.service.UnassignTrainer(c.Context(), sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

type logisticsOpenRequest struct {
	Open bool `json:"open"`
}

func (h *SessionHandler) SetLogisticsOpen(c *fiber.Ctx) error {
	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req logisticsOpenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	session, err := h.service.SetLogisticsOpen(c.Context(), sessionID, req.Open)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

// UploadProof stores the attendance document and attaches its URL to the
// session.
func (h *SessionHandler) UploadProof(c *fiber.Ctx) error {
	userID, role, err := currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	if h.storage == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "File storage is not configured"})
	}

	existing, err := h.service.GetSession(c.Context(), userID, role, sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}
	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Failed to read file"})
	}
	defer file.Close()

	proofURL, err := h.storage.UploadProof(c.Context(), file, sessionID, fileHeader.Filename)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to store proof"})
	}

	session, err := h.service.UpdateProof(c.Context(), userID, role, sessionID, proofURL)
	if err != nil {
		return mapSessionError(c, err)
	}

	// Best effort: a replaced proof leaves no orphaned object behind.
	if existing.ProofURL != nil && *existing.ProofURL != proofURL {
		_ = h.storage.DeleteProof(c.Context(), *existing.ProofURL)
	}

	return c.JSON(fiber.Map{"session": session})
}

// DownloadProof hands out a short-lived signed link to the stored attendance
// document.
func (h *SessionHandler) DownloadProof(c *fiber.Ctx) error {
	userID, role, err := currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	if h.storage == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "File storage is not configured"})
	}

	session, err := h.service.GetSession(c.Context(), userID, role, sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}
	if session.ProofURL == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No proof uploaded"})
	}

	signedURL, err := h.storage.SignedProofURL(c.Context(), *session.ProofURL)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to sign proof url"})
	}

	return c.JSON(fiber.Map{"url": signedURL})
}

func (h *SessionHandler) BillingPreview(c *fiber.Ctx) error {
	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	adjustment, err := parseAdjustment(c.Query("adjustment"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "adjustment must be a number"})
	}

	preview, err := h.service.BillingPreview(c.Context(), sessionID, adjustment)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{
		"preview": preview,
		"quote":   services.QuotePrice(preview.FinalPrice),
	})
}

type billSessionRequest struct {
	Adjustment float64 `json:"adjustment"`
}

func (h *SessionHandler) BillSession(c *fiber.Ctx) error {
	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req billSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	session, err := h.service.BillSession(c.Context(), sessionID, req.Adjustment)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) AdminStats(c *fiber.Ctx) error {
	stats, err := h.service.AdminStats(c.Context())
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.JSON(fiber.Map{"stats": stats})
}

func parseSessionID(c *fiber.Ctx) (int64, error) {
	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		return 0, errors.New("invalid session id")
	}
	return sessionID, nil
}

func parseAdjustment(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func mapSessionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Requested slot conflicts with another session"})
	case errors.Is(err, services.ErrInvalidStateTransition),
		errors.Is(err, services.ErrLogisticsLocked),
		errors.Is(err, services.ErrProofMissing),
		errors.Is(err, services.ErrTrainerRequired),
		errors.Is(err, services.ErrIneligibleAssignment):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrSessionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	case errors.Is(err, services.ErrFormationNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Formation not found"})
	case errors.Is(err, services.ErrTrainerNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Trainer not found"})
	case errors.Is(err, services.ErrClientNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Client profile not found"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process session request"})
	}
}
