package handler

import (
	"Chatline/internal/api/dto"
	"Chatline/internal/api/middleware"
	"Chatline/internal/pkg/consts"
	"Chatline/internal/pkg/response"
	"Chatline/internal/pkg/util"
	"Chatline/internal/realtime"
	"Chatline/internal/service"
	"context"
	"fmt"
	log "log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WsHandler struct {
	hub     *realtime.Hub
	authSvc service.AuthService
	convSvc service.ConversationService
	msgSvc  service.MessageService
	opts    realtime.Options
}

func NewWsHandler(
	hub *realtime.Hub,
	authSvc service.AuthService,
	convSvc service.ConversationService,
	msgSvc service.MessageService,
	opts realtime.Options,
) *WsHandler {
	opts.Classify = classifyRealtimeError
	return &WsHandler{
		hub:     hub,
		authSvc: authSvc,
		convSvc: convSvc,
		msgSvc:  msgSvc,
		opts:    opts,
	}
}

// Connect 鉴权后升级为 websocket，阻塞直到连接断开
func (s *WsHandler) Connect(c *gin.Context) {
	identity, err := s.authSvc.Authenticate(c.Request.Context(), middleware.ExtractToken(c, true))
	if err != nil {
		log.WarnContext(c.Request.Context(), "ws auth failed", "err", err)
		response.Error(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.ErrorContext(c.Request.Context(), "ws upgrade failed", "user_id", identity.UserID, "err", err)
		return
	}

	client := realtime.NewClient(s.hub, conn, identity.UserID, identity.Username, s.opts)
	client.Run(context.WithoutCancel(c.Request.Context()), s.dispatch)
}

func (s *WsHandler) dispatch(ctx context.Context, c *realtime.Client, f realtime.Frame) error {
	switch f.Type {
	case consts.EventJoinRoom:
		var p dto.RoomPayload
		if err := decodePayload(f, &p); err != nil {
			return err
		}
		if err := s.convSvc.AuthorizeJoin(ctx, c.UserID(), p.ConversationID); err != nil {
			return err
		}
		s.hub.Join(c, p.ConversationID)
		return nil

	case consts.EventLeaveRoom:
		var p dto.RoomPayload
		if err := decodePayload(f, &p); err != nil {
			return err
		}
		s.hub.Leave(c, p.ConversationID)
		return nil

	case consts.EventSend:
		var p dto.SendMessageDTO
		if err := decodePayload(f, &p); err != nil {
			return err
		}
		var err error
		if p.ReplyTo != "" {
			_, err = s.msgSvc.Reply(ctx, c.UserID(), &p)
		} else {
			_, err = s.msgSvc.Send(ctx, c.UserID(), &p)
		}
		return err

	case consts.EventTyping:
		var p dto.TypingPayload
		if err := decodePayload(f, &p); err != nil {
			return err
		}
		if !s.hub.InRoom(c, p.ConversationID) {
			return service.ErrNotInRoom
		}
		s.hub.EmitToConversation(p.ConversationID, consts.EventUserTyping, dto.UserTypingDTO{
			UserID:         c.UserID(),
			Username:       c.Username(),
			ConversationID: p.ConversationID,
			IsTyping:       p.IsTyping,
		}, c.ID())
		return nil

	case consts.EventMarkAsRead:
		var p dto.RoomPayload
		if err := decodePayload(f, &p); err != nil {
			return err
		}
		return s.msgSvc.MarkAsRead(ctx, c.UserID(), p.ConversationID)

	default:
		return fmt.Errorf("%w: unknown event %q", service.ErrParamInvalid, f.Type)
	}
}

func decodePayload(f realtime.Frame, v any) error {
	if err := f.DecodePayload(v); err != nil {
		return fmt.Errorf("%w: %v", service.ErrParamInvalid, err)
	}
	if err := util.ValidateDTO(v); err != nil {
		return fmt.Errorf("%w: %v", service.ErrParamInvalid, err)
	}
	return nil
}

// classifyRealtimeError 未知错误只返回通用提示
func classifyRealtimeError(err error) (string, string) {
	status, known := service.CodeOf(err)
	if !known {
		log.Error("unhandled realtime error", "err", err)
		return service.RealtimeCode(status), service.UnExpectedError.Error()
	}
	return service.RealtimeCode(status), err.Error()
}
