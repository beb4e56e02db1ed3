package api

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin/binding"

	"github.com/go-playground/validator/v10"
)

const (
	minAssetCodeLength = 2
	maxAssetCodeLength = 16
)

// validateMaxBytes в отличии от тэга max который проверяет длину рун, - проверят длину байт в поле.
func validateMaxBytes(fl validator.FieldLevel) bool {
	param := fl.Param() // получаем значение из тега
	maxBytes, err := strconv.Atoi(param)
	if err != nil {
		return false
	}

	str, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}

	return len(str) <= maxBytes
}

// validateAssetCode проверяет код актива или сети: только латинские буквы и цифры. Регистр не важен, сервисы
// приводят коды к верхнему.
func validateAssetCode(fl validator.FieldLevel) bool {
	str, ok := fl.Field().Interface().(string)
	if !ok || len(str) < minAssetCodeLength || len(str) > maxAssetCodeLength {
		return false
	}
	for _, r := range str {
		isLetter := (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
		if !isLetter && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func registerValidators() error {
	v, _ := binding.Validator.Engine().(*validator.Validate)
	if err := v.RegisterValidation("max_bytes", validateMaxBytes); err != nil {
		return fmt.Errorf("validator registration: %w", err)
	}
	if err := v.RegisterValidation("asset_code", validateAssetCode); err != nil {
		return fmt.Errorf("validator registration: %w", err)
	}
	return nil
}
