// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"calling-journal-go/internal/service"
	"calling-journal-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ChatHandler 处理与 AI 会话相关的 API 请求。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler 实例。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// CreateSessionRequest 定义了创建会话 API 的请求体结构。
type CreateSessionRequest struct {
	Title string `json:"title"`
}

// SendMessageRequest 定义了发送消息 API 的请求体结构。
// Context 携带编辑器内当前（可能未保存）的文档状态，可省略。
type SendMessageRequest struct {
	Role    string                   `json:"role" binding:"required"`
	Content string                   `json:"content" binding:"required"`
	Context *service.DocumentContext `json:"context"`
}

// ListSessions 处理 GET /chat/sessions 请求，按最近更新倒序返回会话。
func (h *ChatHandler) ListSessions(c *gin.Context) {
	user := currentUser(c)

	sessions, err := h.chatService.ListSessions(user.ID)
	if err != nil {
		log.Error("ListSessions failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// CreateSession 处理 POST /chat/sessions 请求。
func (h *ChatHandler) CreateSession(c *gin.Context) {
	user := currentUser(c)
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session payload"})
		return
	}

	session, err := h.chatService.CreateSession(user.ID, req.Title)
	if err != nil {
		log.Error("CreateSession failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.JSON(http.StatusOK, session)
}

// DeleteSession 处理 DELETE /chat/sessions/:sessionId 请求。
// 会话及其全部消息被级联删除，这是会话唯一的终态。
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	user := currentUser(c)
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	if err := h.chatService.DeleteSession(c.Request.Context(), user.ID, sessionID); err != nil {
		h.writeChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session deleted"})
}

// GetMessages 处理 GET /chat/:sessionId/messages 请求，从旧到新返回全部消息。
func (h *ChatHandler) GetMessages(c *gin.Context) {
	user := currentUser(c)
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	messages, err := h.chatService.GetMessages(user.ID, sessionID)
	if err != nil {
		h.writeChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// SendMessage 处理 POST /chat/:sessionId 请求：追加用户消息、
// 调用 AI 并返回追加后的助手消息。供应商失败时返回的是兜底回复，
// 不是错误。
func (h *ChatHandler) SendMessage(c *gin.Context) {
	user := currentUser(c)
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role and content are required"})
		return
	}
	if req.Role != "user" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only user-role messages can be sent"})
		return
	}

	message, err := h.chatService.SendMessage(c.Request.Context(), user.ID, sessionID, req.Content, req.Context)
	if err != nil {
		h.writeChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, message)
}

// BindSession 处理 GET /chat/bindings/:date 请求：
// 返回绑定到该日期的会话，绑定缺失或指向已删除的会话时透明地新建。
func (h *ChatHandler) BindSession(c *gin.Context) {
	user := currentUser(c)
	date := c.Param("date")

	session, err := h.chatService.BindSession(c.Request.Context(), user.ID, date)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date format. Use YYYY-MM-DD"})
			return
		}
		h.writeChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// parseSessionID 解析路径参数中的会话 ID。
func parseSessionID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("sessionId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return 0, false
	}
	return uint(id), true
}

// writeChatError 把会话服务的业务错误映射为 HTTP 状态码。
func (h *ChatHandler) writeChatError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	log.Error("Chat operation failed", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
