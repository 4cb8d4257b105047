package collaboration

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/BaSui01/agentweaver/agent/persistence"
	"github.com/BaSui01/agentweaver/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// BroadcastPolicy 广播成功判定
type BroadcastPolicy string

const (
	// BroadcastBestEffort 至少一个副本投递即成功，失败的收件人不影响其他人
	BroadcastBestEffort BroadcastPolicy = "best_effort"
	// BroadcastAllOrNothing 任一收件人无法接收时不投递任何副本
	BroadcastAllOrNothing BroadcastPolicy = "all_or_nothing"
)

// Config 消息中心配置
type Config struct {
	BroadcastPolicy    BroadcastPolicy `json:"broadcast_policy" yaml:"broadcast_policy"`
	HistoryMax         int             `json:"history_max" yaml:"history_max"`                     // 全局历史上限，0 不限
	MailboxCapacity    int             `json:"mailbox_capacity" yaml:"mailbox_capacity"`           // 单个收件箱未处理消息上限，0 不限
	RateLimitPerSecond float64         `json:"rate_limit_per_second" yaml:"rate_limit_per_second"` // 每个发送者，0 不限
	Burst              int             `json:"burst" yaml:"burst"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		BroadcastPolicy: BroadcastBestEffort,
		HistoryMax:      10000,
	}
}

// Metrics 消息指标钩子
type Metrics interface {
	RecordMessage(msgType string)
	RecordBroadcast(recipients, delivered int)
}

type noopMetrics struct{}

func (noopMetrics) RecordMessage(string)     {}
func (noopMetrics) RecordBroadcast(int, int) {}

// Publisher 已投递消息的外部出口，例如 NATS
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Delivery 单个收件人的投递结果
// all_or_nothing 下 Delivered=false 且 Err 为空表示因其他收件人失败而撤回
type Delivery struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
	Delivered   bool   `json:"delivered"`
	Err         error  `json:"-"`
}

// BroadcastResult 发送结果，直发消息只有一个 Delivery
type BroadcastResult struct {
	Broadcast      bool            `json:"broadcast"`
	ConversationID string          `json:"conversation_id"`
	Policy         BroadcastPolicy `json:"policy"`
	Deliveries     []Delivery      `json:"deliveries"`
}

// DeliveredCount 成功投递的副本数
func (r BroadcastResult) DeliveredCount() int {
	n := 0
	for _, d := range r.Deliveries {
		if d.Delivered {
			n++
		}
	}
	return n
}

// OK 按策略判定是否成功；没有收件人的广播视为失败
func (r BroadcastResult) OK() bool {
	delivered := r.DeliveredCount()
	if !r.Broadcast || r.Policy != BroadcastAllOrNothing {
		return delivered > 0
	}
	return len(r.Deliveries) > 0 && delivered == len(r.Deliveries)
}

// mailbox 收件箱、发件箱与已处理 id 集合
type mailbox struct {
	inbox     []*Message
	outbox    []*Message
	processed map[string]struct{}
}

func newMailbox() *mailbox {
	return &mailbox{processed: make(map[string]struct{})}
}

func (mb *mailbox) pending(m *Message) bool {
	if m.Processed {
		return false
	}
	_, done := mb.processed[m.ID]
	return !done
}

func (mb *mailbox) pendingCount() int {
	n := 0
	for _, m := range mb.inbox {
		if mb.pending(m) {
			n++
		}
	}
	return n
}

// Hub 进程内 P2P 消息中心
type Hub struct {
	config Config

	mu            sync.RWMutex
	mailboxes     map[string]*mailbox
	order         []string
	history       []*Message
	byID          map[string]*Message
	conversations map[string][]string
	limiters      map[string]*rate.Limiter

	archive   persistence.MessageLog
	publisher Publisher
	metrics   Metrics
	logger    *zap.Logger
}

// Option 消息中心选项
type Option func(*Hub)

// WithArchive 归档每个已投递副本
func WithArchive(log persistence.MessageLog) Option {
	return func(h *Hub) { h.archive = log }
}

// WithPublisher 向外部总线转发已投递副本
func WithPublisher(p Publisher) Option {
	return func(h *Hub) { h.publisher = p }
}

// WithMetrics 指标钩子
func WithMetrics(m Metrics) Option {
	return func(h *Hub) {
		if m != nil {
			h.metrics = m
		}
	}
}

// NewHub 创建消息中心
func NewHub(config Config, logger *zap.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.BroadcastPolicy == "" {
		config.BroadcastPolicy = BroadcastBestEffort
	}
	h := &Hub{
		config:        config,
		mailboxes:     make(map[string]*mailbox),
		byID:          make(map[string]*Message),
		conversations: make(map[string][]string),
		limiters:      make(map[string]*rate.Limiter),
		metrics:       noopMetrics{},
		logger:        logger.With(zap.String("component", "message_hub")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// =============================================================================
// 🎯 注册
// =============================================================================

// Register 注册 Agent，已存在时不做任何事
func (h *Hub) Register(agentID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registerLocked(agentID)
}

func (h *Hub) registerLocked(agentID string) *mailbox {
	if mb, ok := h.mailboxes[agentID]; ok {
		return mb
	}
	mb := newMailbox()
	h.mailboxes[agentID] = mb
	h.order = append(h.order, agentID)
	h.logger.Debug("agent registered for messaging", zap.String("agent_id", agentID))
	return mb
}

// Unregister 删除邮箱；历史记录保留
func (h *Hub) Unregister(agentID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.mailboxes[agentID]; !ok {
		return false
	}
	delete(h.mailboxes, agentID)
	delete(h.limiters, agentID)
	h.order = slices.DeleteFunc(h.order, func(id string) bool { return id == agentID })
	return true
}

// IsRegistered 是否已注册
func (h *Hub) IsRegistered(agentID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.mailboxes[agentID]
	return ok
}

// Agents 按注册顺序返回 Agent id
func (h *Hub) Agents() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.order...)
}

// =============================================================================
// 📨 发送
// =============================================================================

// Send 发送消息，返回是否投递成功
// 广播的成功判定由 BroadcastPolicy 决定
func (h *Hub) Send(ctx context.Context, msg Message) (bool, error) {
	res, err := h.SendDetailed(ctx, msg)
	if err != nil {
		return false, err
	}
	return res.OK(), nil
}

// SendDetailed 发送消息并返回每个收件人的投递结果
// 校验失败、过期、限流以错误返回；收件人级别的失败记录在 Deliveries 中
func (h *Hub) SendDetailed(ctx context.Context, msg Message) (BroadcastResult, error) {
	if msg.SenderID == "" {
		return BroadcastResult{}, invalidMessage("sender_id is required")
	}
	if msg.RecipientID == "" {
		return BroadcastResult{}, invalidMessage("recipient_id is required")
	}

	now := time.Now()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	if msg.Priority == "" {
		msg.Priority = PriorityNormal
	}
	if msg.Type == "" {
		msg.Type = MessageTypeRequest
		if msg.IsBroadcast() {
			msg.Type = MessageTypeBroadcast
		}
	}
	if msg.IsExpired(now) {
		return BroadcastResult{}, types.NewError(types.ErrMessageExpired,
			fmt.Sprintf("message %s expired at %s", msg.ID, msg.ExpiresAt.Format(time.RFC3339)))
	}
	msg.Processed = false
	msg.ResponseSent = false

	h.mu.Lock()
	if !h.allowLocked(msg.SenderID) {
		h.mu.Unlock()
		return BroadcastResult{}, types.NewError(types.ErrRateLimited,
			fmt.Sprintf("sender %s exceeded %.2f messages/s", msg.SenderID, h.config.RateLimitPerSecond)).WithWorker(msg.SenderID)
	}

	var (
		res       BroadcastResult
		delivered []Message
	)
	if msg.IsBroadcast() {
		res, delivered = h.broadcastLocked(msg)
	} else {
		res = BroadcastResult{ConversationID: msg.Thread(), Policy: h.config.BroadcastPolicy}
		d := Delivery{RecipientID: msg.RecipientID, MessageID: msg.ID}
		copyMsg := msg.Clone()
		if err := h.deliverLocked(&copyMsg); err != nil {
			d.Err = err
		} else {
			d.Delivered = true
			delivered = append(delivered, copyMsg.Clone())
		}
		res.Deliveries = []Delivery{d}
	}
	h.mu.Unlock()

	if res.Broadcast {
		h.metrics.RecordBroadcast(len(res.Deliveries), len(delivered))
		h.logger.Info("broadcast sent",
			zap.String("sender_id", msg.SenderID),
			zap.String("conversation_id", res.ConversationID),
			zap.Int("recipients", len(res.Deliveries)),
			zap.Int("delivered", len(delivered)),
			zap.String("policy", string(res.Policy)),
		)
	}
	for _, d := range res.Deliveries {
		if d.Err != nil {
			h.logger.Warn("message delivery failed",
				zap.String("message_id", d.MessageID),
				zap.String("recipient_id", d.RecipientID),
				zap.Error(d.Err),
			)
		}
	}
	h.afterDelivery(ctx, delivered)
	return res, nil
}

// allowLocked 发送者限流
func (h *Hub) allowLocked(senderID string) bool {
	if h.config.RateLimitPerSecond <= 0 {
		return true
	}
	lim, ok := h.limiters[senderID]
	if !ok {
		burst := h.config.Burst
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(h.config.RateLimitPerSecond), burst)
		h.limiters[senderID] = lim
	}
	return lim.Allow()
}

// deliverLocked 直发：自动注册双方，写入发件箱、收件箱、历史与会话索引
func (h *Hub) deliverLocked(msg *Message) error {
	sender := h.registerLocked(msg.SenderID)
	recipient := h.registerLocked(msg.RecipientID)
	if h.config.MailboxCapacity > 0 && recipient.pendingCount() >= h.config.MailboxCapacity {
		return mailboxFull(msg.RecipientID, h.config.MailboxCapacity)
	}

	sender.outbox = append(sender.outbox, msg)
	recipient.inbox = append(recipient.inbox, msg)
	h.recordLocked(msg)

	h.logger.Debug("message delivered",
		zap.String("message_id", msg.ID),
		zap.String("sender_id", msg.SenderID),
		zap.String("recipient_id", msg.RecipientID),
		zap.String("type", string(msg.Type)),
		zap.String("priority", string(msg.Priority)),
	)
	return nil
}

// broadcastLocked 为除发送者外的每个已注册 Agent 生成独立副本
// 副本使用新 id，共享同一会话 id
func (h *Hub) broadcastLocked(msg Message) (BroadcastResult, []Message) {
	conversationID := msg.Thread()
	res := BroadcastResult{Broadcast: true, ConversationID: conversationID, Policy: h.config.BroadcastPolicy}

	h.registerLocked(msg.SenderID)
	var copies []*Message
	for _, agentID := range h.order {
		if agentID == msg.SenderID {
			continue
		}
		c := msg.Clone()
		c.ID = uuid.NewString()
		c.RecipientID = agentID
		c.ConversationID = conversationID
		copies = append(copies, &c)
		res.Deliveries = append(res.Deliveries, Delivery{RecipientID: agentID, MessageID: c.ID})
	}
	if len(copies) == 0 {
		h.logger.Warn("broadcast has no recipients", zap.String("sender_id", msg.SenderID))
		return res, nil
	}

	if h.config.BroadcastPolicy == BroadcastAllOrNothing && h.config.MailboxCapacity > 0 {
		rejected := false
		for i, c := range copies {
			if h.mailboxes[c.RecipientID].pendingCount() >= h.config.MailboxCapacity {
				res.Deliveries[i].Err = mailboxFull(c.RecipientID, h.config.MailboxCapacity)
				rejected = true
			}
		}
		if rejected {
			return res, nil
		}
	}

	var delivered []Message
	for i, c := range copies {
		if err := h.deliverLocked(c); err != nil {
			res.Deliveries[i].Err = err
			continue
		}
		res.Deliveries[i].Delivered = true
		delivered = append(delivered, c.Clone())
	}
	return res, delivered
}

// recordLocked 写入全局历史与会话索引，并按上限裁剪
func (h *Hub) recordLocked(msg *Message) {
	h.history = append(h.history, msg)
	h.byID[msg.ID] = msg
	thread := msg.Thread()
	h.conversations[thread] = append(h.conversations[thread], msg.ID)

	if h.config.HistoryMax > 0 && len(h.history) > h.config.HistoryMax {
		drop := len(h.history) - h.config.HistoryMax
		for _, old := range h.history[:drop] {
			h.forgetLocked(old)
		}
		h.history = append(h.history[:0:0], h.history[drop:]...)
	}
}

// forgetLocked 从 id 索引与会话索引中移除
func (h *Hub) forgetLocked(msg *Message) {
	delete(h.byID, msg.ID)
	thread := msg.Thread()
	ids := slices.DeleteFunc(h.conversations[thread], func(id string) bool { return id == msg.ID })
	if len(ids) == 0 {
		delete(h.conversations, thread)
	} else {
		h.conversations[thread] = ids
	}
}

// afterDelivery 锁外执行指标、归档与外部转发，失败只记录日志
func (h *Hub) afterDelivery(ctx context.Context, delivered []Message) {
	for _, m := range delivered {
		h.metrics.RecordMessage(string(m.Type))

		if h.archive != nil {
			if err := h.archive.Append(ctx, logEntry(m)); err != nil {
				h.logger.Warn("failed to archive message", zap.String("message_id", m.ID), zap.Error(err))
			}
		}
		if h.publisher != nil {
			if err := h.publisher.Publish(ctx, m); err != nil {
				h.logger.Warn("failed to publish message", zap.String("message_id", m.ID), zap.Error(err))
			}
		}
	}
}

func logEntry(m Message) persistence.LogEntry {
	payload, _ := json.Marshal(m)
	return persistence.LogEntry{
		ID:             m.ID,
		ConversationID: m.Thread(),
		SenderID:       m.SenderID,
		RecipientID:    m.RecipientID,
		Type:           string(m.Type),
		Priority:       string(m.Priority),
		Subject:        m.Subject,
		Payload:        payload,
		CreatedAt:      m.Timestamp,
	}
}

// Respond 回复 original 并标记已回复
func (h *Hub) Respond(ctx context.Context, agentID string, original Message, content map[string]any, subject string) (Message, error) {
	resp := original.CreateResponse(agentID, content, subject)
	ok, err := h.Send(ctx, resp)
	if err != nil {
		return Message{}, err
	}
	if !ok {
		return Message{}, fmt.Errorf("response to %s not delivered", original.ID)
	}
	if err := h.MarkResponded(agentID, original.ID); err != nil {
		return resp, err
	}
	return resp, nil
}

// =============================================================================
// 📥 读取
// =============================================================================

// Inbox 未处理且未过期的消息，按优先级再按时间升序；不会移除消息
func (h *Hub) Inbox(agentID string, msgTypes ...MessageType) []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	mb, ok := h.mailboxes[agentID]
	if !ok {
		return nil
	}
	now := time.Now()
	out := make([]Message, 0, len(mb.inbox))
	for _, m := range mb.inbox {
		if !mb.pending(m) || m.IsExpired(now) {
			continue
		}
		if len(msgTypes) > 0 && !slices.Contains(msgTypes, m.Type) {
			continue
		}
		out = append(out, m.Clone())
	}
	slices.SortStableFunc(out, func(a, b Message) int {
		if d := a.Priority.Rank() - b.Priority.Rank(); d != 0 {
			return d
		}
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out
}

// Outbox 已发送消息，按发送顺序
func (h *Hub) Outbox(agentID string) []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	mb, ok := h.mailboxes[agentID]
	if !ok {
		return nil
	}
	out := make([]Message, 0, len(mb.outbox))
	for _, m := range mb.outbox {
		out = append(out, m.Clone())
	}
	return out
}

// MarkProcessed 标记消息已处理，重复调用无副作用
func (h *Hub) MarkProcessed(agentID, messageID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	mb, ok := h.mailboxes[agentID]
	if !ok {
		return unknownAgent(agentID)
	}
	if _, done := mb.processed[messageID]; done {
		return nil
	}
	for _, m := range mb.inbox {
		if m.ID == messageID {
			m.Processed = true
			mb.processed[messageID] = struct{}{}
			return nil
		}
	}
	return messageNotFound(agentID, messageID)
}

// ProcessedIDs 已处理的消息 id，升序
func (h *Hub) ProcessedIDs(agentID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	mb, ok := h.mailboxes[agentID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(mb.processed))
	for id := range mb.processed {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// MarkResponded 标记收件箱中的消息已回复
func (h *Hub) MarkResponded(agentID, messageID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	mb, ok := h.mailboxes[agentID]
	if !ok {
		return unknownAgent(agentID)
	}
	for _, m := range mb.inbox {
		if m.ID == messageID {
			m.ResponseSent = true
			return nil
		}
	}
	return messageNotFound(agentID, messageID)
}

// Conversation 会话中的全部消息，按时间升序
func (h *Hub) Conversation(conversationID string) []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := h.conversations[conversationID]
	out := make([]Message, 0, len(ids))
	for _, id := range ids {
		if m, ok := h.byID[id]; ok {
			out = append(out, m.Clone())
		}
	}
	slices.SortStableFunc(out, func(a, b Message) int { return a.Timestamp.Compare(b.Timestamp) })
	return out
}

// History 全局消息历史，按投递顺序
func (h *Hub) History() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Message, 0, len(h.history))
	for _, m := range h.history {
		out = append(out, m.Clone())
	}
	return out
}

// =============================================================================
// 📊 统计与保留
// =============================================================================

// Stats 通信统计
type Stats struct {
	TotalMessages       int                 `json:"total_messages"`
	RegisteredAgents    int                 `json:"registered_agents"`
	ActiveConversations int                 `json:"active_conversations"`
	ByType              map[MessageType]int `json:"message_types"`
	ByPriority          map[Priority]int    `json:"message_priorities"`
	Unprocessed         map[string]int      `json:"unprocessed_by_agent"`
}

// Stats 返回通信统计
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Stats{
		TotalMessages:       len(h.history),
		RegisteredAgents:    len(h.mailboxes),
		ActiveConversations: len(h.conversations),
		ByType:              make(map[MessageType]int),
		ByPriority:          make(map[Priority]int),
		Unprocessed:         make(map[string]int, len(h.mailboxes)),
	}
	for _, m := range h.history {
		s.ByType[m.Type]++
		s.ByPriority[m.Priority]++
	}
	for id, mb := range h.mailboxes {
		s.Unprocessed[id] = mb.pendingCount()
	}
	return s
}

// Prune 删除早于 before 的历史，以及已处理的收件和旧的发件
// 未处理的收件不受影响，返回删除的历史条数
func (h *Hub) Prune(before time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.history[:0]
	removed := 0
	for _, m := range h.history {
		if m.Timestamp.Before(before) {
			h.forgetLocked(m)
			removed++
			continue
		}
		kept = append(kept, m)
	}
	clear(h.history[len(kept):])
	h.history = kept

	for _, mb := range h.mailboxes {
		mb.inbox = slices.DeleteFunc(mb.inbox, func(m *Message) bool {
			if m.Timestamp.Before(before) && !mb.pending(m) {
				delete(mb.processed, m.ID)
				return true
			}
			return false
		})
		mb.outbox = slices.DeleteFunc(mb.outbox, func(m *Message) bool { return m.Timestamp.Before(before) })
	}

	if removed > 0 {
		h.logger.Info("message history pruned", zap.Int("removed", removed))
	}
	return removed
}
