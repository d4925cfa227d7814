package realtime

import (
	"Chatline/internal/api/config"
	"Chatline/internal/pkg/consts"
	"Chatline/internal/pkg/logger"
	"Chatline/internal/pkg/metrics"
	"Chatline/internal/pkg/ratelimit"
	"context"
	"errors"
	log "log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Options 连接限制与超时
type Options struct {
	MaxFrameBytes   int64
	SendBuffer      int
	WriteTimeout    time.Duration
	PongWait        time.Duration
	MaxDecodeErrors int
	FramesPerSecond float64
	FrameBurst      int
	// Classify 将处理错误映射为 error 帧的 code 与 message
	Classify func(err error) (code, message string)
}

// OptionsFromConfig 由配置生成连接参数
func OptionsFromConfig(cfg config.RealtimeConfig) Options {
	return Options{
		MaxFrameBytes:   cfg.MaxFrameBytes,
		SendBuffer:      cfg.SendBuffer,
		WriteTimeout:    time.Duration(cfg.WriteTimeout) * time.Second,
		PongWait:        time.Duration(cfg.PongWait) * time.Second,
		MaxDecodeErrors: cfg.MaxDecodeErrors,
		FramesPerSecond: cfg.FramesPerSecond,
		FrameBurst:      cfg.FrameBurst,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = 16 * 1024
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.MaxDecodeErrors <= 0 {
		o.MaxDecodeErrors = 3
	}
	if o.Classify == nil {
		o.Classify = func(err error) (string, string) { return consts.CodeInternal, err.Error() }
	}
	return o
}

// Handler 处理一个客户端帧，返回的错误只发送给当前连接
type Handler func(ctx context.Context, c *Client, f Frame) error

// Client 一个 websocket 连接，读写各一个 goroutine
type Client struct {
	id       string
	userID   uint64
	username string

	conn    *websocket.Conn
	hub     *Hub
	opts    Options
	limiter *rate.Limiter

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uint64, username string, opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		id:       uuid.NewString(),
		userID:   userID,
		username: username,
		conn:     conn,
		hub:      hub,
		opts:     opts,
		limiter:  ratelimit.NewConnLimiter(opts.FramesPerSecond, opts.FrameBurst),
		send:     make(chan []byte, opts.SendBuffer),
		done:     make(chan struct{}),
	}
}

func (c *Client) ID() string       { return c.id }
func (c *Client) UserID() uint64   { return c.userID }
func (c *Client) Username() string { return c.username }
func (c *Client) Hub() *Hub        { return c.hub }

// Enqueue 非阻塞写入发送缓冲区
func (c *Client) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// SendError 向当前连接发送 error 帧
func (c *Client) SendError(requestID, code, message string) {
	if !c.Enqueue(encodeError(requestID, code, message)) {
		metrics.DroppedFrames.Inc()
	}
}

// Close 关闭连接，可重复调用
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Run 注册连接并阻塞直到连接断开
func (c *Client) Run(ctx context.Context, handle Handler) {
	ctx = logger.WithConn(ctx, c.id, c.userID)

	c.hub.Register(ctx, c)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	c.readPump(ctx, handle)

	c.Close()
	c.hub.Unregister(ctx, c)
	<-writerDone
}

func (c *Client) readPump(ctx context.Context, handle Handler) {
	c.conn.SetReadLimit(c.opts.MaxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	decodeErrors := 0
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) &&
				!errors.Is(err, websocket.ErrReadLimit) {
				log.WarnContext(ctx, "realtime read failed", "err", err)
			}
			if errors.Is(err, websocket.ErrReadLimit) {
				log.WarnContext(ctx, "realtime frame too large", "limit", c.opts.MaxFrameBytes)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))

		frame, err := DecodeFrame(data)
		if err != nil {
			decodeErrors++
			metrics.InboundEvents.WithLabelValues("malformed", "rejected").Inc()
			c.SendError("", consts.CodeValidation, "malformed frame")
			if decodeErrors >= c.opts.MaxDecodeErrors {
				log.WarnContext(ctx, "realtime connection closed after malformed frames", "count", decodeErrors)
				return
			}
			continue
		}

		if !c.limiter.Allow() {
			metrics.InboundEvents.WithLabelValues(frame.Type, "rate_limited").Inc()
			c.SendError(frame.RequestID, consts.CodeRateLimited, "too many frames")
			continue
		}

		// 客户端断开不影响已开始的持久化
		if err = handle(context.WithoutCancel(ctx), c, frame); err != nil {
			code, message := c.opts.Classify(err)
			metrics.InboundEvents.WithLabelValues(frame.Type, "error").Inc()
			c.SendError(frame.RequestID, code, message)
			continue
		}
		metrics.InboundEvents.WithLabelValues(frame.Type, "ok").Inc()
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.opts.WriteTimeout))
			return
		}
	}
}

// flush 关闭前尽量写出已入队的帧
func (c *Client) flush() {
	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}
