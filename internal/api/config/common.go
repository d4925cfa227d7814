package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Cfg 全局可访问的配置实例
var Cfg *Config

// LoadConfig 从文件加载配置并填充到 Cfg，环境变量 CHATLINE_* 覆盖文件中的值
func LoadConfig() error {
	// .env 不存在时忽略
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")

	viper.SetEnvPrefix("chatline")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	Cfg = &cfg

	return nil
}

// Default 返回只包含默认值的配置，测试与本地工具使用
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("mongo.database", "chatline")

	v.SetDefault("minio.presign_minute", 60)

	v.SetDefault("elastic.indices.message_index", "chatline-messages")

	v.SetDefault("kafka.message_topic", "chatline.message.events")
	v.SetDefault("kafka.group_id", "chatline-message-indexer")
	v.SetDefault("kafka.consumer.session_timeout", 10)
	v.SetDefault("kafka.consumer.heartbeat_interval", 3)
	v.SetDefault("kafka.consumer.rebalance_timeout", 60)
	v.SetDefault("kafka.consumer.max_processing_time", 5)

	v.SetDefault("logstash.index", "logstash-chatline")

	v.SetDefault("jwt.secret", "chatline-dev-secret")
	v.SetDefault("jwt.expiration_hours", 24)
	v.SetDefault("jwt.issuer", "Chatline")

	v.SetDefault("realtime.max_frame_bytes", 16*1024)
	v.SetDefault("realtime.frames_per_second", 20)
	v.SetDefault("realtime.frame_burst", 40)
	v.SetDefault("realtime.max_decode_errors", 3)
	v.SetDefault("realtime.send_buffer", 256)
	v.SetDefault("realtime.write_timeout", 10)
	v.SetDefault("realtime.pong_wait", 60)

	v.SetDefault("rate_limit.rps", 20)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("rate_limit.ttl", 10)

	v.SetDefault("cron.session_purge", "0 */30 * * * *")
	v.SetDefault("cron.media_cleanup", "0 0 * * * *")
	v.SetDefault("cron.session_max_idle", 24*30)
	v.SetDefault("cron.media_max_age", 24)
}
