// Package validation проверяет входящие поля до любых изменений состояния
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var ErrInvalidInput = errors.New("invalid input")

var once sync.Once

// Register регистрирует собственные правила в валидаторе gin
func Register() {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("displayname", displayName)
		_ = v.RegisterValidation("roomcode", roomCode)
	})
}

// Struct проверяет payload и возвращает ошибку с понятным пользователю текстом
func Struct(payload any) error {
	Register()

	return Wrap(binding.Validator.ValidateStruct(payload))
}

// Wrap переводит ошибку биндинга gin в ErrInvalidInput с текстом для клиента
func Wrap(err error) error {
	if err == nil || errors.Is(err, ErrInvalidInput) {
		return err
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInput, describe(verrs[0]))
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
}

// Message возвращает текст для клиента без префикса
func Message(err error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, ErrInvalidInput.Error()+": "); ok {
		return rest
	}
	return msg
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Field '%s' is required", field)
	case "required_without":
		return fmt.Sprintf("Field '%s' is required without %s", field, strings.ToLower(fe.Param()))
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("Field '%s' is invalid: No more than %s items allowed", field, fe.Param())
		}
		return fmt.Sprintf("Field '%s' is invalid: Input exceeds maximum character limit of %s characters", field, fe.Param())
	case "displayname":
		return fmt.Sprintf("Field '%s' is invalid: Name must contain visible characters only", field)
	case "roomcode":
		return fmt.Sprintf("Field '%s' is invalid: Room code must be letters and digits", field)
	default:
		return fmt.Sprintf("Field '%s' is invalid", field)
	}
}

func displayName(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if strings.TrimSpace(s) == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

func roomCode(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}
