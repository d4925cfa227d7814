package handler

import (
	"Chatline/internal/api/dto"
	"Chatline/internal/pkg/response"
	"Chatline/internal/service"
	log "log/slog"

	"github.com/gin-gonic/gin"
)

type MediaHandler struct {
	mediaSvc service.MediaService
	msgSvc   service.MessageService
}

func NewMediaHandler(mediaSvc service.MediaService, msgSvc service.MessageService) *MediaHandler {
	return &MediaHandler{mediaSvc: mediaSvc, msgSvc: msgSvc}
}

// Upload multipart 字段 file，类型由内容嗅探决定
func (s *MediaHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	reader, err := file.Open()
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	defer func() { _ = reader.Close() }()

	media, err := s.mediaSvc.Upload(c.Request.Context(), c.GetUint64("user_id"), reader, file.Filename, file.Size)
	if err != nil {
		response.Error(c, err)
		return
	}

	log.InfoContext(c.Request.Context(), "media upload success", "media_id", media.ID, "type", media.Type, "size", media.Size)
	response.SuccessCreated(c, media)
}

func (s *MediaHandler) Get(c *gin.Context) {
	media, err := s.mediaSvc.Get(c.Request.Context(), c.GetUint64("user_id"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, media)
}

// Delete 仅上传者可删除，已发送的媒体同时从消息中移除
func (s *MediaHandler) Delete(c *gin.Context) {
	if err := s.msgSvc.DeleteMedia(c.Request.Context(), c.GetUint64("user_id"), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// ListConversation 会话内的媒体，最新的在前
func (s *MediaHandler) ListConversation(c *gin.Context) {
	var req dto.ListMediaDTO
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	list, err := s.msgSvc.ListConversationMedia(c.Request.Context(), c.GetUint64("user_id"), c.Param("id"), req.Limit, req.Skip)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}
