package handlers

import (
	"errors"
	"strings"

	"github.com/Ganngann/form-act-sub001/internal/models"
	sessionws "github.com/Ganngann/form-act-sub001/internal/websocket"
	"github.com/Ganngann/form-act-sub001/pkg/utils"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// FeedHandler exposes the live session-event feed to the back office.
type FeedHandler struct {
	hub       *sessionws.Hub
	jwtSecret string
}

func NewFeedHandler(hub *sessionws.Hub, jwtSecret string) *FeedHandler {
	return &FeedHandler{hub: hub, jwtSecret: jwtSecret}
}

func (h *FeedHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}
	if claims.Role != models.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return c.Next()
}

func (h *FeedHandler) HandleWebSocket(conn *websocket.Conn) {
	client := sessionws.NewClient(h.hub, conn)

	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump()
}

func (h *FeedHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}
