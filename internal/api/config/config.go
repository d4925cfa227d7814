package config

// Config 配置主体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	DB        DBConfig        `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Elastic   ElasticConfig   `mapstructure:"elastic"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Logstash  LogstashConfig  `mapstructure:"logstash"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Cron      CronConfig      `mapstructure:"cron"`
}

// ServerConfig Server配置
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// DBConfig 数据库配置
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	MaxIdle     int    `mapstructure:"max_idle"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxLifetime int    `mapstructure:"max_lifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MongoConfig struct {
	URL      string `mapstructure:"url"`
	Database string `mapstructure:"database"`
}

// MinIOConfig MinIO配置
type MinIOConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Bucket        string `mapstructure:"bucket"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	PresignMinute int    `mapstructure:"presign_minute"`
}

// ElasticConfig Elastic配置
type ElasticConfig struct {
	Enable   bool           `mapstructure:"enable"`
	Address  string         `mapstructure:"address"`
	Username string         `mapstructure:"username"`
	Password string         `mapstructure:"password"`
	Indices  ElasticIndices `mapstructure:"indices"`
}

// ElasticIndices Elastic索引
type ElasticIndices struct {
	MessageIndex string `mapstructure:"message_index"`
}

type KafkaConfig struct {
	Enable       bool           `mapstructure:"enable"`
	Brokers      []string       `mapstructure:"brokers"`
	Sasl         SaslConfig     `mapstructure:"sasl"`
	Consumer     ConsumerConfig `mapstructure:"consumer"`
	MessageTopic string         `mapstructure:"message_topic"`
	GroupID      string         `mapstructure:"group_id"`
}

type SaslConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ConsumerConfig struct {
	SessionTimeout    int `mapstructure:"session_timeout"`
	HeartbeatInterval int `mapstructure:"heartbeat_interval"`
	RebalanceTimeout  int `mapstructure:"rebalance_timeout"`
	MaxProcessingTime int `mapstructure:"max_processing_time"`
}

// LogstashConfig 远程日志
type LogstashConfig struct {
	Address string `mapstructure:"address"`
	Index   string `mapstructure:"index"`
	Token   string `mapstructure:"token"`
}

type JWTConfig struct {
	Secret          string `mapstructure:"secret"`
	ExpirationHours int    `mapstructure:"expiration_hours"`
	Issuer          string `mapstructure:"issuer"`
}

// RealtimeConfig 长连接参数
type RealtimeConfig struct {
	MaxFrameBytes   int64   `mapstructure:"max_frame_bytes"`
	FramesPerSecond float64 `mapstructure:"frames_per_second"`
	FrameBurst      int     `mapstructure:"frame_burst"`
	MaxDecodeErrors int     `mapstructure:"max_decode_errors"`
	SendBuffer      int     `mapstructure:"send_buffer"`
	WriteTimeout    int     `mapstructure:"write_timeout"`
	PongWait        int     `mapstructure:"pong_wait"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
	TTL   int     `mapstructure:"ttl"`
}

// CronConfig 定时任务表达式
type CronConfig struct {
	SessionPurge   string `mapstructure:"session_purge"`
	MediaCleanup   string `mapstructure:"media_cleanup"`
	SessionMaxIdle int    `mapstructure:"session_max_idle"`
	MediaMaxAge    int    `mapstructure:"media_max_age"`
}
