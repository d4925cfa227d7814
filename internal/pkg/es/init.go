package es

import (
	"Chatline/internal/api/config"
	"Chatline/internal/pkg/logger"
	"context"
	log "log/slog"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
)

var Client *elasticsearch.TypedClient

var MessageIndex string

const (
	NotFoundCode = 404
	ConflictCode = 409
)

// InitClient 初始化 Elasticsearch 客户端并确保消息索引存在
func InitClient(elasticCfg config.ElasticConfig) error {
	MessageIndex = elasticCfg.Indices.MessageIndex

	cfg := elasticsearch.Config{
		Addresses: []string{elasticCfg.Address},
		Username:  elasticCfg.Username,
		Password:  elasticCfg.Password,
		Transport: logger.NewESTransport(http.DefaultTransport),
	}

	var err error
	Client, err = elasticsearch.NewTypedClient(cfg)
	if err != nil {
		log.Error("Cannot Connect to Elasticsearch", "err", err)
		return err
	}

	info, err := Client.Info().Do(context.Background())
	if err != nil {
		log.Error("Cannot Connect to Elasticsearch", "err", err)
		return err
	}
	log.Info("Connected to Elasticsearch", "version", info.Version.Int)

	return ensureMessageIndex(context.Background())
}

// ensureMessageIndex 索引不存在时按映射创建
func ensureMessageIndex(ctx context.Context) error {
	exists, err := Client.Indices.Exists(MessageIndex).Do(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = Client.Indices.Create(MessageIndex).Mappings(messageMapping()).Do(ctx)
	if err != nil {
		return err
	}
	log.Info("Created Elasticsearch index", "index", MessageIndex)
	return nil
}
