package logger

import (
	"Chatline/internal/api/config"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// SetupGin 注册 JSON 格式访问日志与 Recovery
func SetupGin(r *gin.Engine, cfg config.LogstashConfig) {
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Output:    LogWriter,
		SkipPaths: []string{"/metrics", "/api/ping"},
		Formatter: func(p gin.LogFormatterParams) string {
			var traceID string
			var userID uint64
			if p.Keys != nil {
				if id, ok := p.Keys[TraceIDKey].(string); ok {
					traceID = id
				}
				if id, ok := p.Keys[UserIDKey].(uint64); ok {
					userID = id
				}
			}

			return fmt.Sprintf(
				`{"time":"%s","level":"INFO","msg":"GIN_ACCESS","trace_id":"%s","user_id":%d,"log_token":"%s","target_index":"%s","method":"%s","path":"%s","status":%d,"latency":"%v","client_ip":"%s"}`+"\n",
				p.TimeStamp.Format(time.RFC3339),
				traceID,
				userID,
				cfg.Token,
				cfg.Index,
				p.Method,
				p.Path,
				p.StatusCode,
				p.Latency,
				p.ClientIP,
			)
		},
	}))

	r.Use(gin.Recovery())
}
