// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"

	"calling-journal-go/internal/model"
	"calling-journal-go/internal/repository"
	"calling-journal-go/pkg/llm"
	"calling-journal-go/pkg/log"

	"gorm.io/gorm"
)

// ErrSessionNotFound 表示会话不存在或不属于当前用户。
var ErrSessionNotFound = errors.New("chat session not found")

// FallbackReply 是 AI 调用失败时写入消息日志的固定回复。
// 失败在这里被翻译成一条合法的 model 消息，调用方永远不会因
// 供应商故障收到错误：对话保持连贯，会话状态不被破坏。
const FallbackReply = "Sorry, I'm having trouble responding right now. Your message has been saved, please try again in a moment."

// defaultPromptRules 是未配置系统提示时使用的助手规则。
const defaultPromptRules = "You are a thoughtful journaling companion. Help the user reflect on their writing. When a document state is provided, ground your replies in it."

// DocumentContext 携带发送消息时编辑器内的文档状态。
// 它反映的是当前（可能未保存）的内容，而不是最后持久化的版本。
type DocumentContext struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// BuildDocumentContext 将文档状态装配为发给 AI 的上下文字符串。
// 每次发送都重新装配，不缓存、不做差分。
func BuildDocumentContext(title, content string) string {
	return fmt.Sprintf("current document state: title=%s, content=%s", title, content)
}

// ChatService 定义了会话生命周期与消息收发的接口。
type ChatService interface {
	ListSessions(userID uint) ([]model.ChatSession, error)
	CreateSession(userID uint, title string) (*model.ChatSession, error)
	DeleteSession(ctx context.Context, userID, sessionID uint) error
	GetMessages(userID, sessionID uint) ([]model.ChatMessage, error)
	SendMessage(ctx context.Context, userID, sessionID uint, content string, doc *DocumentContext) (*model.ChatMessage, error)
	BindSession(ctx context.Context, userID uint, date string) (*model.ChatSession, error)
}

// chatService 是 ChatService 接口的实现。
// 它自身不持有任何跨请求的可变状态：每次调用都从存储层重新取数，
// 任意实例都能处理任意会话的下一次请求。
type chatService struct {
	chatRepo    repository.ChatRepository
	bindingRepo repository.SessionBindingRepository
	llmClient   llm.Client
	promptRules string
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(chatRepo repository.ChatRepository, bindingRepo repository.SessionBindingRepository, llmClient llm.Client, promptRules string) ChatService {
	if promptRules == "" {
		promptRules = defaultPromptRules
	}
	return &chatService{
		chatRepo:    chatRepo,
		bindingRepo: bindingRepo,
		llmClient:   llmClient,
		promptRules: promptRules,
	}
}

// ListSessions 返回用户的会话列表，按最近更新倒序。
func (s *chatService) ListSessions(userID uint) ([]model.ChatSession, error) {
	return s.chatRepo.ListSessions(userID)
}

// CreateSession 为用户创建一个新会话。
func (s *chatService) CreateSession(userID uint, title string) (*model.ChatSession, error) {
	if title == "" {
		title = "New Chat"
	}
	session := &model.ChatSession{
		UserID: userID,
		Title:  title,
	}
	if err := s.chatRepo.CreateSession(session); err != nil {
		return nil, err
	}
	return session, nil
}

// DeleteSession 删除用户的会话及其全部消息。
// 会话是唯一的终态：删除后不可恢复，消息随之消失。
func (s *chatService) DeleteSession(ctx context.Context, userID, sessionID uint) error {
	if err := s.chatRepo.DeleteSession(userID, sessionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

// GetMessages 返回会话的消息列表，从旧到新。
// 会话不存在或不属于该用户时返回 ErrSessionNotFound。
func (s *chatService) GetMessages(userID, sessionID uint) ([]model.ChatMessage, error) {
	if _, err := s.chatRepo.FindSession(userID, sessionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return s.chatRepo.ListMessages(sessionID)
}

// SendMessage 处理一次完整的用户回合：
//  1. 追加 user 消息（会话不存在则失败，创建会话是调用方的责任）；
//  2. 将系统提示、完整历史与可选的文档上下文转发给 AI；
//  3. 成功时追加并返回 model 消息；
//  4. 供应商失败时不重试，改为追加固定的兜底回复。
func (s *chatService) SendMessage(ctx context.Context, userID, sessionID uint, content string, doc *DocumentContext) (*model.ChatMessage, error) {
	if _, err := s.chatRepo.FindSession(userID, sessionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	// 上下文在每次发送时现场装配，AI 看到的永远是编辑器里的最新状态
	contextText := ""
	if doc != nil {
		contextText = BuildDocumentContext(doc.Title, doc.Content)
	}

	userMsg := &model.ChatMessage{
		SessionID: sessionID,
		Role:      model.RoleUser,
		Content:   content,
		Context:   contextText,
	}
	if err := s.chatRepo.AppendMessage(userMsg); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	history, err := s.chatRepo.ListMessages(sessionID)
	if err != nil {
		return nil, err
	}

	reply := s.completeOrFallback(ctx, s.composeMessages(history, contextText))

	modelMsg := &model.ChatMessage{
		SessionID: sessionID,
		Role:      model.RoleModel,
		Content:   reply,
	}
	if err := s.chatRepo.AppendMessage(modelMsg); err != nil {
		return nil, err
	}
	return modelMsg, nil
}

// composeMessages 将系统提示、文档上下文和会话历史组装为供应商消息。
// history 已包含刚追加的最新 user 消息。
func (s *chatService) composeMessages(history []model.ChatMessage, contextText string) []llm.Message {
	systemMsg := s.promptRules
	if contextText != "" {
		systemMsg = systemMsg + "\n\n" + contextText
	}

	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, llm.Message{Role: "system", Content: systemMsg})
	for _, m := range history {
		role := m.Role
		if role == model.RoleModel {
			role = "assistant"
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Content})
	}
	return msgs
}

// completeOrFallback 是供应商失败到兜底消息的唯一翻译点。
func (s *chatService) completeOrFallback(ctx context.Context, msgs []llm.Message) string {
	reply, err := s.llmClient.ChatCompletion(ctx, msgs)
	if err != nil {
		log.Errorf("[ChatService] AI 调用失败，写入兜底回复: %v", err)
		return FallbackReply
	}
	return reply
}

// BindSession 返回绑定到指定日期的会话，没有或已失效时新建并重新绑定。
// 绑定可能指向一个已被删除的会话，这里负责检测并透明地重建。
func (s *chatService) BindSession(ctx context.Context, userID uint, date string) (*model.ChatSession, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}

	sessionID, err := s.bindingRepo.Get(ctx, userID, date)
	if err != nil {
		// 绑定存储故障不阻塞聊天入口，按无绑定处理
		log.Errorf("[ChatService] 读取日期会话绑定失败: userID=%d, date=%s, error: %v", userID, date, err)
		sessionID = 0
	}
	if sessionID != 0 {
		session, err := s.chatRepo.FindSession(userID, sessionID)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		// 绑定已陈旧：会话被删除，往下走重建
	}

	session, err := s.CreateSession(userID, "Journal "+date)
	if err != nil {
		return nil, err
	}
	if err := s.bindingRepo.Set(ctx, userID, date, session.ID); err != nil {
		log.Errorf("[ChatService] 写入日期会话绑定失败: userID=%d, date=%s, error: %v", userID, date, err)
	}
	return session, nil
}
