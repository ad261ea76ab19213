package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/service"
	"github.com/weiawesome/wes-chat/pkg/log"
	"github.com/weiawesome/wes-chat/pkg/middleware"
	"github.com/weiawesome/wes-chat/pkg/response"
)

// Handler handles HTTP requests for the chat API.
type Handler struct {
	chats           service.ChatService
	messages        service.MessageService
	sessions        service.SessionService
	notifications   service.NotificationService
	users           service.UserService
	authMiddleware  *middleware.AuthMiddleware
	defaultPageSize int
}

// NewHandler creates a new HTTP handler.
func NewHandler(
	chats service.ChatService,
	messages service.MessageService,
	sessions service.SessionService,
	notifications service.NotificationService,
	users service.UserService,
	authMiddleware *middleware.AuthMiddleware,
	defaultPageSize int,
) *Handler {
	if defaultPageSize <= 0 {
		defaultPageSize = domain.DefaultMessagePageSize
	}
	return &Handler{
		chats:           chats,
		messages:        messages,
		sessions:        sessions,
		notifications:   notifications,
		users:           users,
		authMiddleware:  authMiddleware,
		defaultPageSize: defaultPageSize,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api/v1", h.authMiddleware.RequireAuth(), h.syncPrincipal)
	{
		chats := api.Group("/chats")
		{
			chats.POST("", h.CreateChat)
			chats.GET("", h.ListChats)
			chats.GET("/:id", h.GetChat)
			chats.PUT("/:id", h.UpdateChat)
			chats.DELETE("/:id", h.DeleteChat)
			chats.PATCH("/:id/admins", h.SetAdmins)
			chats.GET("/:id/admins", h.ListAdmins)
			chats.POST("/:id/picture", h.SetPicture)
			chats.GET("/:id/messages", h.ListMessages)
			chats.POST("/:id/messages", h.PostMessage)
		}

		api.PATCH("/messages/:id", h.EditMessage)

		api.GET("/notifications", h.ListNotifications)
		api.PUT("/notifications/:id/read", h.MarkNotificationRead)

		api.GET("/users", h.SearchUsers)
		api.GET("/users/:id", h.GetUser)
	}
}

// syncPrincipal records the authenticated user in the read model and tags
// the request logger with the user id.
func (h *Handler) syncPrincipal(c *gin.Context) {
	userID := middleware.GetUserID(c)
	ctx := log.WithFields(c.Request.Context(), log.FieldUserID, userID)
	c.Request = c.Request.WithContext(ctx)

	if err := h.users.SyncPrincipal(ctx, userID, middleware.GetUsername(c)); err != nil {
		respondError(c, err, "sync user")
		return
	}
	c.Next()
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	response.OK(c, gin.H{"status": "ok"})
}

// CreateChat creates a new chat.
func (h *Handler) CreateChat(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind create chat request")
		response.Fail(c, response.CodeBadRequest, err.Error())
		return
	}

	chat, err := h.chats.CreateChat(ctx, middleware.GetUserID(c), &req)
	if err != nil {
		respondError(c, err, "create chat")
		return
	}

	response.Created(c, chat)
}

// ListChats lists the requester's chats.
func (h *Handler) ListChats(c *gin.Context) {
	ctx := c.Request.Context()

	chats, err := h.chats.ListChats(ctx, middleware.GetUserID(c))
	if err != nil {
		respondError(c, err, "list chats")
		return
	}

	response.OK(c, chats)
}

// GetChat retrieves a chat by ID.
func (h *Handler) GetChat(c *gin.Context) {
	ctx := c.Request.Context()

	chat, err := h.chats.GetChat(ctx, c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err, "get chat")
		return
	}

	response.OK(c, chat)
}

// UpdateChat renames a chat and changes its participants.
func (h *Handler) UpdateChat(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.UpdateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind update chat request")
		response.Fail(c, response.CodeBadRequest, err.Error())
		return
	}

	result, err := h.chats.UpdateChat(ctx, c.Param("id"), middleware.GetUserID(c), &req)
	if err != nil {
		respondError(c, err, "update chat")
		return
	}

	response.OK(c, result)
}

// DeleteChat deletes a group chat.
func (h *Handler) DeleteChat(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.chats.DeleteChat(ctx, c.Param("id"), middleware.GetUserID(c)); err != nil {
		respondError(c, err, "delete chat")
		return
	}

	response.NoContent(c)
}

// SetAdmins grants and revokes admin status.
func (h *Handler) SetAdmins(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.SetAdminsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind set admins request")
		response.Fail(c, response.CodeBadRequest, err.Error())
		return
	}

	results, err := h.chats.SetAdminFlags(ctx, c.Param("id"), middleware.GetUserID(c), &req)
	if err != nil {
		respondError(c, err, "update admins")
		return
	}

	response.OK(c, gin.H{"results": results})
}

// ListAdmins lists a group chat's admins.
func (h *Handler) ListAdmins(c *gin.Context) {
	ctx := c.Request.Context()

	admins, err := h.chats.ListAdmins(ctx, c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err, "list admins")
		return
	}

	response.OK(c, admins)
}

// SetPicture uploads a group chat's picture from the "picture" form file.
func (h *Handler) SetPicture(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	header, err := c.FormFile("picture")
	if err != nil {
		response.Fail(c, response.CodeBadRequest, "picture file is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		l.Error().Err(err).Msg("failed to open uploaded picture")
		response.Fail(c, response.CodeInternal, "failed to read picture")
		return
	}
	defer file.Close()

	chat, err := h.chats.SetChatPicture(ctx, c.Param("id"), middleware.GetUserID(c), file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		respondError(c, err, "set chat picture")
		return
	}

	response.OK(c, chat)
}

// ListMessages lists a chat's messages newest first.
func (h *Handler) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()

	var opts domain.ListMessagesOptions
	if err := c.ShouldBindQuery(&opts); err != nil {
		response.Fail(c, response.CodeBadRequest, err.Error())
		return
	}
	if opts.Limit == 0 {
		opts.Limit = h.defaultPageSize
	}

	messages, err := h.messages.ListMessages(ctx, c.Param("id"), middleware.GetUserID(c), opts)
	if err != nil {
		respondError(c, err, "list messages")
		return
	}

	response.Paged(c, messages, response.Page{
		Offset:  opts.Offset,
		Limit:   opts.Limit,
		Count:   len(messages),
		HasMore: len(messages) == opts.Limit,
	})
}

// PostMessage posts a message and announces it to the chat.
func (h *Handler) PostMessage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind post message request")
		response.Fail(c, response.CodeBadRequest, err.Error())
		return
	}

	msg, err := h.sessions.SendMessage(ctx, c.Param("id"), middleware.GetUserID(c), req.Content)
	if err != nil {
		respondError(c, err, "post message")
		return
	}

	response.Created(c, msg)
}

// EditMessage edits one of the requester's messages.
func (h *Handler) EditMessage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind edit message request")
		response.Fail(c, response.CodeBadRequest, err.Error())
		return
	}

	msg, err := h.sessions.EditMessage(ctx, c.Param("id"), middleware.GetUserID(c), req.Content)
	if err != nil {
		respondError(c, err, "edit message")
		return
	}

	response.OK(c, msg)
}

// ListNotifications lists the requester's notifications.
func (h *Handler) ListNotifications(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.ListNotificationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Fail(c, response.CodeBadRequest, err.Error())
		return
	}

	notifications, err := h.notifications.List(ctx, middleware.GetUserID(c), req.UnreadOnly)
	if err != nil {
		respondError(c, err, "list notifications")
		return
	}

	response.OK(c, notifications)
}

// MarkNotificationRead marks a notification as read.
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	ctx := c.Request.Context()

	n, err := h.notifications.MarkRead(ctx, c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err, "mark notification read")
		return
	}

	response.OK(c, n)
}

// SearchUsers searches users by name or email.
func (h *Handler) SearchUsers(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.SearchUsersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Fail(c, response.CodeBadRequest, err.Error())
		return
	}

	users, err := h.users.SearchUsers(ctx, req.Search)
	if err != nil {
		respondError(c, err, "search users")
		return
	}

	response.OK(c, users)
}

// GetUser retrieves a user by ID.
func (h *Handler) GetUser(c *gin.Context) {
	ctx := c.Request.Context()

	user, err := h.users.GetUser(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err, "get user")
		return
	}

	response.OK(c, user)
}

// respondError maps a service error to its HTTP response. Errors without a
// domain kind are logged and reported as internal errors.
func respondError(c *gin.Context, err error, action string) {
	code, ok := kindCodes[domain.KindOf(err)]
	if !ok {
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg("failed to " + action)
		response.Fail(c, response.CodeInternal, "failed to "+action)
		return
	}
	response.Fail(c, code, domain.MessageOf(err))
}

var kindCodes = map[domain.Kind]response.Code{
	domain.KindValidation:   response.CodeValidation,
	domain.KindUnauthorized: response.CodeUnauthorized,
	domain.KindForbidden:    response.CodeForbidden,
	domain.KindNotFound:     response.CodeNotFound,
	domain.KindConflict:     response.CodeConflict,
}
