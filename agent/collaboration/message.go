package collaboration

import (
	"time"

	"github.com/google/uuid"
)

// BroadcastRecipient 广播收件人标记
const BroadcastRecipient = "broadcast"

// MessageType 消息类型
type MessageType string

const (
	MessageTypeRequest       MessageType = "request"
	MessageTypeResponse      MessageType = "response"
	MessageTypeBroadcast     MessageType = "broadcast"
	MessageTypeDelegation    MessageType = "delegation"
	MessageTypeReport        MessageType = "report"
	MessageTypeCollaboration MessageType = "collaboration"
	MessageTypeError         MessageType = "error"
	MessageTypeStatusUpdate  MessageType = "status_update"
)

// Priority 消息优先级
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank 收件箱排序键，越小越靠前；未知优先级排在 low 之后
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Message Agent 间消息
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id,omitempty"`
	SenderID       string      `json:"sender_id"`
	RecipientID    string      `json:"recipient_id"`
	ReplyTo        string      `json:"reply_to,omitempty"`
	Type           MessageType `json:"message_type"`
	Priority       Priority    `json:"priority"`
	Timestamp      time.Time   `json:"timestamp"`
	ExpiresAt      *time.Time  `json:"expires_at,omitempty"`

	Subject     string         `json:"subject,omitempty"`
	Content     map[string]any `json:"content,omitempty"`
	Attachments map[string]any `json:"attachments,omitempty"`

	RequiresResponse     bool          `json:"requires_response"`
	ExpectedResponseTime time.Duration `json:"expected_response_time,omitempty"`

	Processed    bool `json:"processed"`
	ResponseSent bool `json:"response_sent"`
}

// NewMessage 创建 normal 优先级消息
func NewMessage(senderID, recipientID string, msgType MessageType, subject string, content map[string]any) Message {
	return Message{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Type:        msgType,
		Priority:    PriorityNormal,
		Timestamp:   time.Now(),
		Subject:     subject,
		Content:     content,
	}
}

// IsBroadcast 是否为广播消息
func (m Message) IsBroadcast() bool { return m.RecipientID == BroadcastRecipient }

// IsExpired 是否已过期；无过期时间的消息永不过期
func (m Message) IsExpired(now time.Time) bool {
	return m.ExpiresAt != nil && now.After(*m.ExpiresAt)
}

// Thread 消息所属会话，未指定时为消息自身 id
func (m Message) Thread() string {
	if m.ConversationID != "" {
		return m.ConversationID
	}
	return m.ID
}

// CreateResponse 创建回复：发给原发送者，沿用原会话与优先级
func (m Message) CreateResponse(senderID string, content map[string]any, subject string) Message {
	if subject == "" {
		subject = "Re: " + m.Subject
	}
	resp := NewMessage(senderID, m.SenderID, MessageTypeResponse, subject, content)
	resp.ReplyTo = m.ID
	resp.ConversationID = m.Thread()
	resp.Priority = m.Priority
	return resp
}

// Clone 复制消息，负载只复制顶层
func (m Message) Clone() Message {
	c := m
	if m.ExpiresAt != nil {
		t := *m.ExpiresAt
		c.ExpiresAt = &t
	}
	c.Content = cloneMap(m.Content)
	c.Attachments = cloneMap(m.Attachments)
	return c
}

// cloneMap 复制负载顶层，嵌套值共享
func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
