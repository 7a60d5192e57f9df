package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Ganngann/form-act-sub001/internal/models"
	"github.com/Ganngann/form-act-sub001/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

type stubSessionService struct {
	detailResult   *models.SessionDetail
	detailErr      error
	listResult     []models.SessionDetail
	listErr        error
	previewResult  *services.BillingData
	previewErr     error
	statsResult    *services.SessionStats
	statsErr       error
	lastUserID     int64
	lastRole       string
	lastSessionID  int64
	lastBookInput  services.BookSessionInput
	lastListFilter services.ListSessionsFilter
	lastPatch      services.SessionContentPatch
	lastPrice      float64
	lastTrainerID  int64
	lastProofURL   string
	lastAdjustment float64
	lastOpen       bool
}

func (s *stubSessionService) BookSession(_ context.Context, userID int64, input services.BookSessionInput) (*models.SessionDetail, error) {
	s.lastUserID = userID
	s.lastBookInput = input
	return s.detailResult, s.detailErr
}

func (s *stubSessionService) ListSessions(_ context.Context, userID int64, role string, filter services.ListSessionsFilter) ([]models.SessionDetail, error) {
	s.lastUserID = userID
	s.lastRole = role
	s.lastListFilter = filter
	return s.listResult, s.listErr
}

func (s *stubSessionService) GetSession(_ context.Context, userID int64, role string, sessionID int64) (*models.SessionDetail, error) {
	s.lastUserID = userID
	s.lastRole = role
	s.lastSessionID = sessionID
	return s.detailResult, s.detailErr
}

func (s *stubSessionService) UpdateSessionContent(_ context.Context, userID int64, role string, sessionID int64, patch services.SessionContentPatch) (*models.SessionDetail, error) {
	s.lastUserID = userID
	s.lastRole = role
	s.lastSessionID = sessionID
	s.lastPatch = patch
	return s.detailResult, s.detailErr
}

func (s *stubSessionService) CancelSession(_ context.Context, userID int64, role string, sessionID int64) (*models.SessionDetail, error) {
	s.lastUserID = userID
	s.lastRole = role
	s.lastSessionID = sessionID
	return s.detailResult, s.detailErr
}

func (s *stubSessionService) SendOffer(_ context.Context, sessionID int64, price float64) (*models.SessionDetail, error) {
	s.lastSessionID = sessionID
	s.lastPrice = price
	return s.detailResult, s.detailErr
}

func (s *stubSessionService) AcceptOffer(_ context.Context, userID int64, sessionID int64) (*models.SessionDetail, error) {
	s.lastUserID = userID
	s.lastSessionID = sessionID
	return s.detailResult, s.detailErr
}

func (s *stubSessionService) AssignTrainer(_ context.Context, sessionID, trainerID int64) (*models.SessionDetail, error) {
	s.lastSessionID = sessionID
	s.lastTrainerID = trainerID
	return s.detailResult, s.detailErr
}

func (s *stubSessionService) UnassignTrainer(_ context.Context, sessionID int64) (*models.SessionDetail, error) {
	s.lastSessionID = sessionID
	return s.detailResult, s.detailErr
}

func (s *stubSessionService) SetLogisticsOpen(_ context.Context, sessionID int64, open bool) (*models.SessionDetail, error) {
	s.lastSessionID = sessionID
	s.lastOpen = open
	return s.detailResult, s.detailErr
}

func (s *stubSessionService) UpdateProof(_ context.Context, userID int64, role string, sessionID int64, proofURL string) (*models.SessionDetail, error) {
	s.lastUserID = userID
	s.lastRole = role
	s.lastSessionID = sessionID
	s.lastProofURL = proofURL
	return s.detailResult, s.detailErr
}

func (s *stubSessionService) BillingPreview(_ context.Context, sessionID int64, adminAdjustment float64) (*services.BillingData, error) {
	s.lastSessionID = sessionID
	s.lastAdjustment = adminAdjustment
	return s.previewResult, s.previewErr
}

func (s *stubSessionService) BillSession(_ context.Context, sessionID int64, adminAdjustment float64) (*models.SessionDetail, error) {
	s.lastSessionID = sessionID
	s.lastAdjustment = adminAdjustment
	return s.detailResult, s.detailErr
}

func (s *stubSessionService) AdminStats(_ context.Context) (*services.SessionStats, error) {
	return s.statsResult, s.statsErr
}

func newSessionTestApp(handler *SessionHandler, role string, userID string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", role)
		c.Locals("user_id", userID)
		return c.Next()
	})
	app.Post("/api/v1/sessions", handler.BookSession)
	app.Get("/api/v1/sessions", handler.ListSessions)
	app.Get("/api/v1/sessions/:id", handler.GetSession)
	app.Patch("/api/v1/sessions/:id/content", handler.UpdateContent)
	app.Post("/api/v1/sessions/:id/cancel", handler.CancelSession)
	app.Post("/api/v1/sessions/:id/offer", handler.SendOffer)
	app.Post("/api/v1/sessions/:id/accept", handler.AcceptOffer)
	app.Post("/api/v1/sessions/:id/trainer", handler.AssignTrainer)
	app.Get("/api/v1/sessions/:id/billing-preview", handler.BillingPreview)
	app.Post("/api/v1/sessions/:id/bill", handler.BillSession)
	return app
}

func TestBookSessionReturnsCreatedSession(t *testing.T) {
	service := &stubSessionService{
		detailResult: &models.SessionDetail{
			TrainingSession: models.TrainingSession{
				ID:          91,
				FormationID: 7,
				ClientID:    5,
				Status:      models.DBStatusPendingApproval,
			},
			ComputedStatus: models.StatusPending,
		},
	}
	handler := &SessionHandler{service: service}
	app := newSessionTestApp(handler, "client", "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{
		"formation_id": 7,
		"zone_id": 3,
		"date": "2030-03-15",
		"slot": "AM"
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastUserID != 42 {
		t.Fatalf("expected user id 42, got %d", service.lastUserID)
	}
	if service.lastBookInput.FormationID != 7 || service.lastBookInput.ZoneID != 3 {
		t.Fatalf("unexpected input: %+v", service.lastBookInput)
	}
	if service.lastBookInput.Slot != models.SlotAM {
		t.Fatalf("expected AM slot, got %q", service.lastBookInput.Slot)
	}
}

func TestBookSessionRejectsNonClients(t *testing.T) {
	service := &stubSessionService{}
	handler := &SessionHandler{service: service}
	app := newSessionTestApp(handler, "trainer", "9")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{
		"formation_id": 7,
		"zone_id": 3,
		"date": "2030-03-15",
		"slot": "AM"
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestBookSessionRejectsBadDate(t *testing.T) {
	service := &stubSessionService{}
	handler := &SessionHandler{service: service}
	app := newSessionTestApp(handler, "client", "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{
		"formation_id": 7,
		"zone_id": 3,
		"date": "15/03/2030",
		"slot": "AM"
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestBookSessionReturnsConflict(t *testing.T) {
	service := &stubSessionService{detailErr: services.ErrConflict}
	handler := &SessionHandler{service: service}
	app := newSessionTestApp(handler, "client", "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{
		"formation_id": 7,
		"zone_id": 3,
		"trainer_id": 2,
		"date": "2030-03-15",
		"slot": "AM"
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestListSessionsPassesFilter(t *testing.T) {
	service := &stubSessionService{
		listResult: []models.SessionDetail{{
			TrainingSession: models.TrainingSession{ID: 5, Status: models.DBStatusConfirmed},
			ComputedStatus:  models.StatusReady,
		}},
	}
	handler := &SessionHandler{service: service}
	app := newSessionTestApp(handler, "trainer", "9")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions?status=CONFIRMED&from=2030-01-01&to=2030-06-30", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastRole != "trainer" {
		t.Fatalf("expected trainer role, got %q", service.lastRole)
	}
	if service.lastListFilter.Status != "CONFIRMED" {
		t.Fatalf("unexpected status filter: %q", service.lastListFilter.Status)
	}
	if service.lastListFilter.From == nil || service.lastListFilter.To == nil {
		t.Fatalf("expected date range to be forwarded, got %+v", service.lastListFilter)
	}
}

func TestGetSessionReturnsNotFound(t *testing.T) {
	service := &stubSessionService{detailErr: pgx.ErrNoRows}
	handler := &SessionHandler{service: service}
	app := newSessionTestApp(handler, "client", "42")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/999", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUpdateContentReturnsUnprocessableWhenLocked(t *testing.T) {
	service := &stubSessionService{detailErr: services.ErrLogisticsLocked}
	handler := &SessionHandler{service: service}
	app := newSessionTestApp(handler, "client", "42")

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/sessions/55/content", strings.NewReader(`{
		"location": "Quai de Rome 12, Liège"
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if service.lastPatch.Location == nil {
		t.Fatal("expected location to be forwarded")
	}
}

func TestSendOfferForwardsPrice(t *testing.T) {
	service := &stubSessionService{
		detailResult: &models.SessionDetail{
			TrainingSession: models.TrainingSession{ID: 55, Status: models.DBStatusOfferSent},
			ComputedStatus:  models.StatusPending,
		},
	}
	handler := &SessionHandler{service: service}
	app := newSessionTestApp(handler, "admin", "1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/55/offer", strings.NewReader(`{"price": 950}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastSessionID != 55 || service.lastPrice != 950 {
		t.Fatalf("expected session 55 priced at 950, got %d / %v", service.lastSessionID, service.lastPrice)
	}
}

func TestAcceptOfferRejectsNonClients(t *testing.T) {
	service := &stubSessionService{}
	handler := &SessionHandler{service: service}
	app := newSessionTestApp(handler, "admin", "1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/55/accept", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestAssignTrainerReturnsUnprocessableForIneligible(t *testing.T) {
	service := &stubSessionService{detailErr: services.ErrIneligibleAssignment}
	handler := &SessionHandler{service: service}
	app := newSessionTestApp(handler, "admin", "1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/55/trainer", strings.NewReader(`{"trainer_id": 4}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if service.lastTrainerID != 4 {
		t.Fatalf("expected trainer id 4, got %d", service.lastTrainerID)
	}
}

func TestBillingPreviewIncludesQuote(t *testing.T) {
	service := &stubSessionService{
		previewResult: &services.BillingData{BasePrice: 800, FinalPrice: 800},
	}
	handler := &SessionHandler{service: service}
	app := newSessionTestApp(handler, "admin", "1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/55/billing-preview?adjustment=-50", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastAdjustment != -50 {
		t.Fatalf("expected adjustment -50, got %v", service.lastAdjustment)
	}

	var body struct {
		Preview services.BillingData `json:"preview"`
		Quote   services.PriceQuote  `json:"quote"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Quote.InclVAT != 968 {
		t.Fatalf("expected tax-inclusive 968, got %v", body.Quote.InclVAT)
	}
}

func TestBillSessionReturnsUnprocessableWithoutProof(t *testing.T) {
	service := &stubSessionService{detailErr: services.ErrProofMissing}
	handler := &SessionHandler{service: service}
	app := newSessionTestApp(handler, "admin", "1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/55/bill", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestUploadProofWithoutStorageReturnsServiceUnavailable(t *testing.T) {
	service := &stubSessionService{}
	handler := &SessionHandler{service: service}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", "trainer")
		c.Locals("user_id", "9")
		return c.Next()
	})
	app.Post("/api/v1/sessions/:id/proof", handler.UploadProof)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/55/proof", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestMapSessionErrorDefaultsToInternalServerError(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return mapSessionError(c, errors.New("boom"))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}

func TestMapSessionErrorReturnsTrainerNotFound(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return mapSessionError(c, services.ErrTrainerNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
