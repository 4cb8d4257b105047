package collaboration

import (
	"time"

	"github.com/google/uuid"
)

// 协作模式的默认响应预算
const (
	DefaultCollaborationResponseTime = 30 * time.Second
	DefaultDelegationResponseTime    = 60 * time.Second
)

// NewCollaborationRequest 协作请求：high 优先级，需要回复
// 每个请求生成新的 collaboration_id，并作为会话 id
func NewCollaborationRequest(senderID, recipientID, collaborationType, description string, data map[string]any) Message {
	collaborationID := uuid.NewString()
	msg := NewMessage(senderID, recipientID, MessageTypeCollaboration,
		"Collaboration Request: "+collaborationType,
		map[string]any{
			"collaboration_type": collaborationType,
			"task_description":   description,
			"task_data":          data,
			"collaboration_id":   collaborationID,
		})
	msg.ConversationID = collaborationID
	msg.Priority = PriorityHigh
	msg.RequiresResponse = true
	msg.ExpectedResponseTime = DefaultCollaborationResponseTime
	return msg
}

// NewDelegation 任务委派：high 优先级，需要回复；deadline 为零值时不设置
func NewDelegation(senderID, recipientID string, task map[string]any, deadline time.Time) Message {
	content := map[string]any{
		"delegated_task": task,
		"delegation_id":  uuid.NewString(),
	}
	if !deadline.IsZero() {
		content["deadline"] = deadline.UTC().Format(time.RFC3339)
	}
	title, _ := task["title"].(string)
	if title == "" {
		title = "Task"
	}
	msg := NewMessage(senderID, recipientID, MessageTypeDelegation, "Task Delegation: "+title, content)
	msg.Priority = PriorityHigh
	msg.RequiresResponse = true
	msg.ExpectedResponseTime = DefaultDelegationResponseTime
	return msg
}

// NewStatusReport 状态报告：normal 优先级，单向
func NewStatusReport(senderID, recipientID, status string, details map[string]any) Message {
	return NewMessage(senderID, recipientID, MessageTypeReport, "Status Report: "+status, map[string]any{
		"status":      status,
		"details":     details,
		"reported_at": time.Now().UTC().Format(time.RFC3339),
	})
}
