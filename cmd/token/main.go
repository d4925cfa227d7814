// token 为已有用户签发一个会话令牌，供本地联调使用
package main

import (
	"Chatline/internal/api/config"
	"Chatline/internal/pkg/database"
	"Chatline/internal/pkg/logger"
	"Chatline/internal/pkg/redis"
	"Chatline/internal/pkg/security"
	"Chatline/internal/repository"
	"Chatline/internal/service"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	userID   uint64
	clientIP string
)

var rootCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a session token for an existing user",
	Long: `token creates a session row for the given user and prints the signed JWT,
so a local client can connect to /ws and /api without a login flow.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if userID == 0 {
			return errors.New("--user is required")
		}
		return issue(cmd.Context(), userID, clientIP)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.Flags().Uint64VarP(&userID, "user", "u", 0, "user id to issue a token for")
	rootCmd.Flags().StringVar(&clientIP, "ip", "127.0.0.1", "client ip recorded on the session")
}

func issue(ctx context.Context, uid uint64, ip string) error {
	if err := config.LoadConfig(); err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cfg := config.Cfg
	logger.InitLogger(config.LogstashConfig{})
	security.Configure(cfg.JWT)

	db, err := database.NewGormDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		_ = database.Close(db)
	}()
	if cfg.Redis.Addr != "" {
		if err = redis.InitRedis(cfg.Redis); err != nil {
			log.Warn("redis unavailable, continuing without it", "err", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	sessions := service.NewSessionService(repository.NewSessionRepo(db), repository.NewLoginHistoryRepo(db), repository.NewUserRepo(db))
	token, session, err := sessions.IssueSession(ctx, uid, ip, "chatline-token-cli")
	if err != nil {
		return fmt.Errorf("issue session for user %d: %w", uid, err)
	}
	fmt.Printf("session %d expires %s\n%s\n", session.ID, session.ExpiresAt.Format(time.RFC3339), token)
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
