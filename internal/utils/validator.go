package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	recordTypePattern = regexp.MustCompile(`^[a-z][a-z_]{0,31}$`)
	searchTypes       = map[string]bool{"combined": true, "keyword": true, "semantic": true, "sender": true}
)

// InitValidator 初始化验证器，同时向 gin 的绑定引擎注册自定义标签
func InitValidator() {
	validateOnce.Do(func() {
		validate = validator.New()
		registerCustom(validate)

		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			registerCustom(v)
		}
	})
}

func registerCustom(v *validator.Validate) {
	_ = v.RegisterValidation("record_type", validateRecordType)
	_ = v.RegisterValidation("search_type", validateSearchType)
}

// GetValidator 获取验证器实例
func GetValidator() *validator.Validate {
	InitValidator()
	return validate
}

// validateRecordType 记录类型为小写字母和下划线
func validateRecordType(fl validator.FieldLevel) bool {
	return recordTypePattern.MatchString(fl.Field().String())
}

// validateSearchType 搜索类型
func validateSearchType(fl validator.FieldLevel) bool {
	return searchTypes[fl.Field().String()]
}

// IsSearchType 判断是否为支持的搜索类型
func IsSearchType(s string) bool {
	return searchTypes[s]
}

// ValidateStruct 验证结构体
func ValidateStruct(s interface{}) error {
	if err := GetValidator().Struct(s); err != nil {
		return FormatValidationError(err)
	}
	return nil
}

// FormatValidationError 格式化验证错误
func FormatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		field := e.Field()
		param := e.Param()

		var message string
		switch e.Tag() {
		case "required":
			message = fmt.Sprintf("%s是必填字段", field)
		case "min":
			message = fmt.Sprintf("%s不能小于%s", field, param)
		case "max":
			message = fmt.Sprintf("%s不能大于%s", field, param)
		case "oneof":
			message = fmt.Sprintf("%s必须是以下之一: %s", field, param)
		case "record_type":
			message = fmt.Sprintf("%s不是有效的记录类型", field)
		case "search_type":
			message = fmt.Sprintf("%s必须是 combined、keyword、semantic 或 sender", field)
		default:
			message = fmt.Sprintf("%s验证失败: %s", field, e.Tag())
		}
		messages = append(messages, message)
	}

	return errors.New(strings.Join(messages, "; "))
}
