package collaboration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubjectPrefix NATS 主题前缀
const DefaultSubjectPrefix = "agent"

// NATSConfig NATS 桥接配置
type NATSConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	Embedded      bool   `json:"embedded" yaml:"embedded"` // 进程内启动 NATS 服务器
	URL           string `json:"url" yaml:"url"`
	Port          int    `json:"port" yaml:"port"` // 内嵌服务器端口，-1 随机
	SubjectPrefix string `json:"subject_prefix" yaml:"subject_prefix"`
}

// InboxSubject Agent 收件主题：<prefix>.<agent>.inbox
func InboxSubject(prefix, agentID string) string {
	return fmt.Sprintf("%s.%s.inbox", prefix, agentID)
}

// SendSubject 外部发送入口：<prefix>.send
func SendSubject(prefix string) string {
	return prefix + ".send"
}

// =============================================================================
// 内嵌服务器
// =============================================================================

// EmbeddedServer 单进程部署使用的 NATS 服务器
type EmbeddedServer struct {
	server *natsserver.Server
}

// StartEmbeddedServer 启动内嵌服务器并等待就绪
func StartEmbeddedServer(port int) (*EmbeddedServer, error) {
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	}
	ns, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create nats server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("nats server not ready")
	}
	return &EmbeddedServer{server: ns}, nil
}

// ClientURL 客户端连接地址
func (s *EmbeddedServer) ClientURL() string {
	return s.server.ClientURL()
}

// Close 关闭服务器
func (s *EmbeddedServer) Close() {
	s.server.Shutdown()
	s.server.WaitForShutdown()
}

// =============================================================================
// Bridge
// =============================================================================

// Bridge 把已投递消息以 JSON 发布到 NATS，并可把外部发送的消息转入 Hub
type Bridge struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

// NewBridge 连接 NATS
func NewBridge(url, prefix string, logger *zap.Logger) (*Bridge, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	conn, err := nats.Connect(url, nats.Name("agentweaver-hub"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Bridge{
		conn:   conn,
		prefix: prefix,
		logger: logger.With(zap.String("component", "nats_bridge")),
	}, nil
}

// Publish implements Publisher.
func (b *Bridge) Publish(_ context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return b.conn.Publish(InboxSubject(b.prefix, msg.RecipientID), data)
}

// Subscribe 订阅某个 Agent 的收件主题
func (b *Bridge) Subscribe(agentID string, handler func(Message)) (*nats.Subscription, error) {
	return b.conn.Subscribe(InboxSubject(b.prefix, agentID), func(m *nats.Msg) {
		var msg Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			b.logger.Warn("dropping undecodable message", zap.String("subject", m.Subject), zap.Error(err))
			return
		}
		handler(msg)
	})
}

// Relay 把发往 <prefix>.send 的消息交给 Hub 投递
func (b *Bridge) Relay(ctx context.Context, hub *Hub) (*nats.Subscription, error) {
	return b.conn.Subscribe(SendSubject(b.prefix), func(m *nats.Msg) {
		var msg Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			b.logger.Warn("dropping undecodable message", zap.String("subject", m.Subject), zap.Error(err))
			return
		}
		if _, err := hub.Send(ctx, msg); err != nil {
			b.logger.Warn("relayed message rejected", zap.String("message_id", msg.ID), zap.Error(err))
		}
	})
}

// Flush 等待已发布消息到达服务器
func (b *Bridge) Flush() error {
	return b.conn.Flush()
}

// Close 断开连接
func (b *Bridge) Close() {
	b.conn.Close()
}
