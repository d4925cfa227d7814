package handler

import (
	"Chatline/internal/service"
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// bindError 校验错误原样返回，其余绑定错误归为参数错误
func bindError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return err
	}
	return fmt.Errorf("%w: %v", service.ErrParamInvalid, err)
}

// uintParam 解析路径中的数字 ID
func uintParam(c *gin.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %s", service.ErrInvalidID, name)
	}
	return id, nil
}
