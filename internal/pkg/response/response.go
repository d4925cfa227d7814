package response

import (
	"Chatline/internal/api/dto"
	"Chatline/internal/service"
	"errors"
	log "log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

const (
	Ok                  = http.StatusOK
	Created             = http.StatusCreated
	BadRequest          = http.StatusBadRequest
	Unauthorized        = http.StatusUnauthorized
	Forbidden           = http.StatusForbidden
	NotFound            = http.StatusNotFound
	TooManyRequests     = http.StatusTooManyRequests
	InternalServerError = http.StatusInternalServerError
)

// Success 成功返回封装
func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, dto.Response{
		Code:    Ok,
		Message: "success",
		Data:    data,
	})
}

// SuccessCreated 创建成功返回 201
func SuccessCreated(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusCreated, dto.Response{
		Code:    Created,
		Message: "created",
		Data:    data,
	})
}

// Fail 失败返回封装，HTTP 状态码与业务码一致
func Fail(c *gin.Context, businessCode int, message string) {
	c.AbortWithStatusJSON(businessCode, dto.Response{
		Code:    businessCode,
		Message: message,
		Data:    nil,
	})
}

// Error 处理错误
func Error(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		Fail(c, BadRequest, "invalid parameters: "+ve[0].Field())
		return
	}

	var unmarshalTypeError *json.UnmarshalTypeError
	if errors.As(err, &unmarshalTypeError) {
		Fail(c, BadRequest, "malformed json")
		return
	}

	code, known := service.CodeOf(err)
	if !known {
		log.ErrorContext(c.Request.Context(), "unhandled error", "err", err)
		Fail(c, code, service.UnExpectedError.Error())
		return
	}
	Fail(c, code, err.Error())
}
