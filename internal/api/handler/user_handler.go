package handler

import (
	"Chatline/internal/api/dto"
	"Chatline/internal/pkg/response"
	"Chatline/internal/service"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userSvc  service.UserService
	blockSvc service.BlockService
}

func NewUserHandler(userSvc service.UserService, blockSvc service.BlockService) *UserHandler {
	return &UserHandler{
		userSvc:  userSvc,
		blockSvc: blockSvc,
	}
}

// ListUsers 除自己以外的所有用户
func (s *UserHandler) ListUsers(c *gin.Context) {
	userID := c.GetUint64("user_id")
	users, err := s.userSvc.ListUsers(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, users)
}

func (s *UserHandler) SearchUsers(c *gin.Context) {
	userID := c.GetUint64("user_id")
	var req dto.SearchUserDTO
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	users, err := s.userSvc.SearchUsers(c.Request.Context(), userID, req.Query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, users)
}

func (s *UserHandler) ListBlocked(c *gin.Context) {
	userID := c.GetUint64("user_id")
	users, err := s.blockSvc.ListBlocked(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, users)
}

func (s *UserHandler) GetUser(c *gin.Context) {
	id, err := uintParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	user, err := s.userSvc.GetUser(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// ToggleBlock 屏蔽或取消屏蔽
func (s *UserHandler) ToggleBlock(c *gin.Context) {
	userID := c.GetUint64("user_id")
	targetID, err := uintParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := s.blockSvc.ToggleBlock(c.Request.Context(), userID, targetID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
