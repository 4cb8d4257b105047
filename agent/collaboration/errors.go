package collaboration

import (
	"fmt"

	"github.com/BaSui01/agentweaver/types"
)

// 哨兵错误，按错误码匹配
var (
	ErrInvalidMessage  = types.NewError(types.ErrInvalidDescriptor, "invalid message")
	ErrMessageExpired  = types.NewError(types.ErrMessageExpired, "message expired")
	ErrRateLimited     = types.NewError(types.ErrRateLimited, "sender rate limited")
	ErrUnknownAgent    = types.NewError(types.ErrUnknownAgent, "agent not registered")
	ErrMailboxFull     = types.NewError(types.ErrMailboxFull, "mailbox full")
	ErrMessageNotFound = types.NewError(types.ErrMessageUnknown, "message not found")
)

func unknownAgent(id string) error {
	return types.NewError(types.ErrUnknownAgent, fmt.Sprintf("agent %s not registered", id)).WithWorker(id)
}

func mailboxFull(id string, capacity int) error {
	return types.NewError(types.ErrMailboxFull,
		fmt.Sprintf("mailbox of %s holds %d unprocessed messages", id, capacity)).WithWorker(id)
}

func messageNotFound(agentID, messageID string) error {
	return types.NewError(types.ErrMessageUnknown,
		fmt.Sprintf("message %s not in inbox of %s", messageID, agentID)).WithWorker(agentID)
}

func invalidMessage(reason string) error {
	return types.NewError(types.ErrInvalidDescriptor, "invalid message: "+reason)
}
