package handler

import (
	"Chatline/internal/api/dto"
	"Chatline/internal/pkg/response"
	"Chatline/internal/service"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	msgSvc service.MessageService
}

func NewMessageHandler(msgSvc service.MessageService) *MessageHandler {
	return &MessageHandler{msgSvc: msgSvc}
}

// Search 在自己参与的会话中搜索消息
func (s *MessageHandler) Search(c *gin.Context) {
	var req dto.SearchMessagesDTO
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	res, err := s.msgSvc.Search(c.Request.Context(), c.GetUint64("user_id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// GetMessages 历史消息，同时清零未读
func (s *MessageHandler) GetMessages(c *gin.Context) {
	var req dto.GetMessagesDTO
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	list, err := s.msgSvc.GetMessages(c.Request.Context(), c.GetUint64("user_id"), c.Param("conversationId"), req.Limit, req.Skip)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

func (s *MessageHandler) Send(c *gin.Context) {
	var req dto.SendMessageDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	msg, err := s.msgSvc.Send(c.Request.Context(), c.GetUint64("user_id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessCreated(c, msg)
}

func (s *MessageHandler) Reply(c *gin.Context) {
	var req dto.SendMessageDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	msg, err := s.msgSvc.Reply(c.Request.Context(), c.GetUint64("user_id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessCreated(c, msg)
}

func (s *MessageHandler) Edit(c *gin.Context) {
	var req dto.EditMessageDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	msg, err := s.msgSvc.Edit(c.Request.Context(), c.GetUint64("user_id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, msg)
}

func (s *MessageHandler) Delete(c *gin.Context) {
	if err := s.msgSvc.Delete(c.Request.Context(), c.GetUint64("user_id"), c.Param("messageId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *MessageHandler) React(c *gin.Context) {
	var req dto.ReactMessageDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	msg, err := s.msgSvc.React(c.Request.Context(), c.GetUint64("user_id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, msg)
}

func (s *MessageHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	msg, err := s.msgSvc.UpdateStatus(c.Request.Context(), c.GetUint64("user_id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, msg)
}
