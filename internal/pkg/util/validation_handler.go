package util

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	// 与 gin 绑定共用 binding 标签
	validate.SetTagName("binding")
}

// ValidateDTO 校验长连接载荷等非 gin 绑定的结构体
func ValidateDTO(dto any) error {
	if err := validate.Struct(dto); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			firstError := vErrs[0]
			return fmt.Errorf("field [%s] failed on rule [%s]", firstError.Field(), firstError.Tag())
		}
		return err
	}
	return nil
}
