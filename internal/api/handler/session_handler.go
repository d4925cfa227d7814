package handler

import (
	"Chatline/internal/api/dto"
	"Chatline/internal/api/middleware"
	"Chatline/internal/pkg/response"
	"Chatline/internal/service"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessionSvc service.SessionService
}

func NewSessionHandler(sessionSvc service.SessionService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc}
}

// List 当前用户的有效会话，标记本次请求所用的会话
func (s *SessionHandler) List(c *gin.Context) {
	sessions, err := s.sessionSvc.List(c.Request.Context(), c.GetUint64("user_id"), c.GetUint64("session_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, sessions)
}

func (s *SessionHandler) Revoke(c *gin.Context) {
	sessionID, err := uintParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err = s.sessionSvc.Revoke(c.Request.Context(), c.GetUint64("user_id"), sessionID, c.ClientIP(), c.Request.UserAgent()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *SessionHandler) Logout(c *gin.Context) {
	identity := middleware.Identity(c)
	if identity == nil {
		response.Error(c, service.ErrUnauthenticated)
		return
	}
	if err := s.sessionSvc.Logout(c.Request.Context(), identity, c.ClientIP(), c.Request.UserAgent()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// History 登录历史，可按 eventType 过滤
func (s *SessionHandler) History(c *gin.Context) {
	var req dto.LoginHistoryQueryDTO
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	page, err := s.sessionSvc.ListHistory(c.Request.Context(), c.GetUint64("user_id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, page)
}
