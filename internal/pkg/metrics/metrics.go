package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections 当前长连接数
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatline",
		Subsystem: "realtime",
		Name:      "connections",
		Help:      "Number of live websocket connections.",
	})

	// OnlineUsers 至少有一个连接的用户数
	OnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatline",
		Subsystem: "realtime",
		Name:      "online_users",
		Help:      "Number of users with at least one live connection.",
	})

	// InboundEvents 客户端事件，按类型与结果
	InboundEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatline",
		Subsystem: "realtime",
		Name:      "inbound_events_total",
		Help:      "Client frames handled, by event type and outcome.",
	}, []string{"event", "outcome"})

	// OutboundFrames 成功入队的下行帧
	OutboundFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatline",
		Subsystem: "realtime",
		Name:      "outbound_frames_total",
		Help:      "Server frames enqueued to connections, by event type.",
	}, []string{"event"})

	// DroppedFrames 发送缓冲区满被丢弃的帧
	DroppedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatline",
		Subsystem: "realtime",
		Name:      "dropped_frames_total",
		Help:      "Frames dropped because a connection send buffer was full.",
	})

	// MessagesSent 持久化的消息
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatline",
		Subsystem: "messages",
		Name:      "sent_total",
		Help:      "Messages persisted, by message type.",
	}, []string{"type"})

	// HTTPRequests REST 请求
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatline",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests, by route and status.",
	}, []string{"method", "route", "status"})

	// HTTPDuration REST 请求耗时
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chatline",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency, by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// JobRuns 定时任务执行结果
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatline",
		Subsystem: "cron",
		Name:      "job_runs_total",
		Help:      "Scheduled job runs, by job and outcome.",
	}, []string{"job", "outcome"})
)
