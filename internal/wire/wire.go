package wire

import (
	"Chatline/internal/api"
	"Chatline/internal/api/config"
	"Chatline/internal/api/handler"
	"Chatline/internal/job"
	"Chatline/internal/pkg/cron"
	"Chatline/internal/pkg/es"
	"Chatline/internal/pkg/kafka"
	"Chatline/internal/pkg/minio"
	"Chatline/internal/pkg/mongo"
	"Chatline/internal/pkg/ratelimit"
	"Chatline/internal/realtime"
	"Chatline/internal/repository"
	"Chatline/internal/service"
	"time"

	"github.com/gin-gonic/gin"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router      *gin.Engine
	DB          *gorm.DB
	Hub         *realtime.Hub
	CronMgr     *cron.Manager
	RateLimiter *ratelimit.Store
	// 未启用 Kafka 时为 nil
	KafkaManager  *kafka.ConsumerManager
	KafkaProducer *kafka.MessageProducer
}

func BuildApplication(db *gorm.DB, mongoDB *mongodrv.Database, cfg *config.Config) (*ApplicationContainer, error) {
	userRepo := repository.NewUserRepo(db)
	userBlockRepo := repository.NewUserBlockRepo(db)
	sessionRepo := repository.NewSessionRepo(db)
	loginHistoryRepo := repository.NewLoginHistoryRepo(db)

	convRepo := mongo.NewConversationRepo(mongoDB)
	messageRepo := mongo.NewMessageRepo(mongoDB)
	mediaRepo := mongo.NewMediaRepo(mongoDB)
	storage := minio.NewStorage()

	userService := service.NewUserService(userRepo)
	hub := realtime.NewHub(userService)

	container := &ApplicationContainer{
		DB:  db,
		Hub: hub,
	}

	// 搜索索引：Kafka 异步写入，未启用 Kafka 时同步写入
	var (
		index     service.MessageIndex
		publisher service.MessageEventPublisher
	)
	if cfg.Elastic.Enable && es.Client != nil {
		esRepo := es.NewMessageRepo(es.Client, es.MessageIndex)
		index = esRepo
		if cfg.Kafka.Enable {
			producer, err := kafka.NewMessageProducer(cfg.Kafka)
			if err != nil {
				return nil, err
			}
			kafkaMgr, err := kafka.NewConsumerManager(cfg.Kafka, esRepo)
			if err != nil {
				_ = producer.Close()
				return nil, err
			}
			publisher = producer
			container.KafkaProducer = producer
			container.KafkaManager = kafkaMgr
		} else {
			publisher = service.NewDirectIndexPublisher(esRepo)
		}
	}

	blockService := service.NewBlockService(userBlockRepo, userRepo)
	ledger := service.NewUnreadLedger(convRepo)
	authService := service.NewAuthService(sessionRepo, userRepo)
	sessionService := service.NewSessionService(sessionRepo, loginHistoryRepo, userRepo)
	mediaService := service.NewMediaService(mediaRepo, storage)
	conversationService := service.NewConversationService(convRepo, messageRepo, mediaRepo, userRepo, blockService, hub, storage)
	messageService := service.NewMessageService(
		convRepo, messageRepo, mediaRepo, userRepo, ledger, blockService, hub, storage, publisher, index,
	)

	container.RateLimiter = ratelimit.NewStore(
		cfg.RateLimit.RPS, cfg.RateLimit.Burst, time.Duration(cfg.RateLimit.TTL)*time.Minute,
	)

	handlers := &api.HandlersGroup{
		UserHandler:         handler.NewUserHandler(userService, blockService),
		ConversationHandler: handler.NewConversationHandler(conversationService),
		MessageHandler:      handler.NewMessageHandler(messageService),
		MediaHandler:        handler.NewMediaHandler(mediaService, messageService),
		SessionHandler:      handler.NewSessionHandler(sessionService),
		WSHandler: handler.NewWsHandler(
			hub, authService, conversationService, messageService, realtime.OptionsFromConfig(cfg.Realtime),
		),
		AuthService: authService,
		RateLimiter: container.RateLimiter,
	}
	container.Router = api.SetupRouter(handlers, cfg)

	container.CronMgr = cron.NewCronManager(
		cfg.Cron,
		job.NewSessionPurgeJob(sessionService, time.Duration(cfg.Cron.SessionMaxIdle)*time.Hour),
		job.NewMediaCleanupJob(mediaService, time.Duration(cfg.Cron.MediaMaxAge)*time.Hour),
	)

	return container, nil
}
