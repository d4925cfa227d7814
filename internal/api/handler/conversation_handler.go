package handler

import (
	"Chatline/internal/api/dto"
	"Chatline/internal/pkg/response"
	"Chatline/internal/service"

	"github.com/gin-gonic/gin"
)

type ConversationHandler struct {
	convSvc service.ConversationService
}

func NewConversationHandler(convSvc service.ConversationService) *ConversationHandler {
	return &ConversationHandler{convSvc: convSvc}
}

// List 会话列表，支持 filter 与 search
func (s *ConversationHandler) List(c *gin.Context) {
	userID := c.GetUint64("user_id")
	var req dto.ListConversationsDTO
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	list, err := s.convSvc.List(c.Request.Context(), userID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

// GetOrCreate 获取或创建单聊
func (s *ConversationHandler) GetOrCreate(c *gin.Context) {
	userID := c.GetUint64("user_id")
	var req dto.CreateConversationDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	conv, err := s.convSvc.GetOrCreateDirect(c.Request.Context(), userID, req.ParticipantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, conv)
}

func (s *ConversationHandler) CreateGroup(c *gin.Context) {
	userID := c.GetUint64("user_id")
	var req dto.CreateGroupDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	conv, err := s.convSvc.CreateGroup(c.Request.Context(), userID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessCreated(c, conv)
}

func (s *ConversationHandler) Archive(c *gin.Context) {
	res, err := s.convSvc.Archive(c.Request.Context(), c.GetUint64("user_id"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func (s *ConversationHandler) Unarchive(c *gin.Context) {
	res, err := s.convSvc.Unarchive(c.Request.Context(), c.GetUint64("user_id"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func (s *ConversationHandler) Delete(c *gin.Context) {
	if err := s.convSvc.Delete(c.Request.Context(), c.GetUint64("user_id"), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *ConversationHandler) UpdateGroupInfo(c *gin.Context) {
	var req dto.UpdateGroupInfoDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	conv, err := s.convSvc.UpdateGroupInfo(c.Request.Context(), c.GetUint64("user_id"), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, conv)
}

func (s *ConversationHandler) AddMembers(c *gin.Context) {
	var req dto.AddMembersDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	conv, err := s.convSvc.AddMembers(c.Request.Context(), c.GetUint64("user_id"), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, conv)
}

func (s *ConversationHandler) RemoveMember(c *gin.Context) {
	memberID, err := uintParam(c, "memberId")
	if err != nil {
		response.Error(c, err)
		return
	}
	conv, err := s.convSvc.RemoveMember(c.Request.Context(), c.GetUint64("user_id"), c.Param("id"), memberID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, conv)
}

func (s *ConversationHandler) PromoteToAdmin(c *gin.Context) {
	memberID, err := uintParam(c, "memberId")
	if err != nil {
		response.Error(c, err)
		return
	}
	conv, err := s.convSvc.PromoteToAdmin(c.Request.Context(), c.GetUint64("user_id"), c.Param("id"), memberID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, conv)
}

func (s *ConversationHandler) UpdateNotificationSettings(c *gin.Context) {
	var req dto.NotificationSettingsDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	res, err := s.convSvc.UpdateNotificationSettings(c.Request.Context(), c.GetUint64("user_id"), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
