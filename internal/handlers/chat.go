package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/goby-chat/internal/chat"
	"github.com/nfrund/goby-chat/internal/domain"
	"github.com/nfrund/goby-chat/internal/middleware"
)

// ChatHandler serves the login and message endpoints.
type ChatHandler struct {
	chat         *chat.Service
	historyLimit int
}

// NewChatHandler creates a ChatHandler. historyLimit is the listing size used
// when a request does not name one.
func NewChatHandler(svc *chat.Service, historyLimit int) *ChatHandler {
	return &ChatHandler{chat: svc, historyLimit: historyLimit}
}

// Login resolves the posted username to a user and stores the identity in the
// session cookie (POST /login).
func (h *ChatHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return domain.Validation("login", domain.CodeInvalidRequest)
	}
	if err := c.Validate(&req); err != nil {
		return domain.Validation("login", domain.CodeUsernameRequired)
	}

	user, err := h.chat.Login(c.Request().Context(), req.Username)
	if err != nil {
		return err
	}
	if err := middleware.SetIdentity(c, user); err != nil {
		return domain.Persistence("login", err)
	}

	middleware.FromContext(c.Request().Context()).Info("user logged in", "user_id", user.ID, "username", user.Username)
	return c.JSON(http.StatusOK, LoginResponse{
		Success:     true,
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
	})
}

// Logout clears the session cookie (POST /logout). Open connections keep the
// identity they were bound with.
func (h *ChatHandler) Logout(c echo.Context) error {
	if err := middleware.ClearIdentity(c); err != nil {
		return domain.Persistence("logout", err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// CurrentUser returns the logged-in user (GET /current_user).
func (h *ChatHandler) CurrentUser(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return domain.Unauthenticated("current user")
	}
	return c.JSON(http.StatusOK, user)
}

// Messages lists the active messages, oldest first (GET /messages).
func (h *ChatHandler) Messages(c echo.Context) error {
	var q HistoryQuery
	if err := c.Bind(&q); err != nil {
		return domain.Validation("history", domain.CodeInvalidRequest)
	}
	if err := c.Validate(&q); err != nil {
		return domain.Validation("history", domain.CodeInvalidRequest)
	}

	limit := q.Limit
	if limit == 0 {
		limit = h.historyLimit
	}

	msgs, err := h.chat.History(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	return c.JSON(http.StatusOK, MessagesResponse{Messages: msgs})
}

// DeleteMessage soft-deletes a message and broadcasts the removal
// (DELETE /messages/:id).
func (h *ChatHandler) DeleteMessage(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return domain.Unauthenticated("delete")
	}

	var req DeleteMessageRequest
	if err := c.Bind(&req); err != nil {
		return domain.Validation("delete", domain.CodeInvalidMessageID)
	}
	if err := c.Validate(&req); err != nil {
		return domain.Validation("delete", domain.CodeInvalidMessageID)
	}

	if err := h.chat.DeleteAs(c.Request().Context(), user, req.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, DeleteResponse{Success: true, ID: req.ID})
}
