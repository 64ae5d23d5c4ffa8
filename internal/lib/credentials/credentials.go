// Package credentials содержит чистые функции проверки учётных данных:
// формат почты, правила сложности пароля и полное имя.
// Ошибки валидации локальны и никогда не доходят до сети.
package credentials

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Сообщения правил пароля в фиксированном порядке проверки.
const (
	MsgPasswordLength    = "Password must be at least 8 characters"
	MsgPasswordLowercase = "Password must contain a lowercase letter"
	MsgPasswordUppercase = "Password must contain an uppercase letter"
	MsgPasswordDigit     = "Password must contain a number"

	MsgEmailInvalid    = "Please enter a valid email address"
	MsgEmailRequired   = "Email is required"
	MsgPasswordNeeded  = "Password is required"
	MsgFullNameMissing = "Full name is required"
	MsgFullNameTooLong = "Full name must be at most 100 characters"
)

// MinPasswordLength — минимальная длина пароля.
const MinPasswordLength = 8

const maxFullNameLength = 100

// один '@', непустая локальная часть, хотя бы одна точка в домене.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateEmail сообщает, похожа ли строка на адрес почты.
func ValidateEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// PasswordResult — результат проверки пароля.
type PasswordResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors"`
}

// FirstError возвращает первое нарушенное правило, его и показывает интерфейс.
func (r PasswordResult) FirstError() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0]
}

// ValidatePassword перечисляет все нарушенные правила в порядке:
// длина, строчная буква, заглавная буква, цифра.
func ValidatePassword(s string) PasswordResult {
	var lower, upper, digit bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	errs := make([]string, 0, 4)
	if utf8.RuneCountInString(s) < MinPasswordLength {
		errs = append(errs, MsgPasswordLength)
	}
	if !lower {
		errs = append(errs, MsgPasswordLowercase)
	}
	if !upper {
		errs = append(errs, MsgPasswordUppercase)
	}
	if !digit {
		errs = append(errs, MsgPasswordDigit)
	}
	return PasswordResult{IsValid: len(errs) == 0, Errors: errs}
}

// ValidateFullName возвращает сообщение об ошибке или пустую строку.
func ValidateFullName(s string) string {
	name := strings.TrimSpace(s)
	if name == "" {
		return MsgFullNameMissing
	}
	if utf8.RuneCountInString(name) > maxFullNameLength {
		return MsgFullNameTooLong
	}
	return ""
}

// FieldErrors — ошибки валидации по полям формы.
type FieldErrors map[string]string

// Error реализует интерфейс error.
func (f FieldErrors) Error() string {
	parts := make([]string, 0, len(f))
	for _, field := range []string{"email", "password", "full_name", "preferred_language"} {
		if msg, ok := f[field]; ok {
			parts = append(parts, field+": "+msg)
		}
	}
	return strings.Join(parts, ", ")
}

func checkEmail(errs FieldErrors, email string) {
	switch {
	case strings.TrimSpace(email) == "":
		errs["email"] = MsgEmailRequired
	case !ValidateEmail(email):
		errs["email"] = MsgEmailInvalid
	}
}

// ValidateSignIn проверяет форму входа: для пароля требуется только наличие.
func ValidateSignIn(email, password string) FieldErrors {
	errs := FieldErrors{}
	checkEmail(errs, email)
	if password == "" {
		errs["password"] = MsgPasswordNeeded
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ValidateSignUp проверяет форму регистрации целиком.
func ValidateSignUp(email, password, fullName string) FieldErrors {
	errs := FieldErrors{}
	checkEmail(errs, email)
	if res := ValidatePassword(password); !res.IsValid {
		errs["password"] = res.FirstError()
	}
	if msg := ValidateFullName(fullName); msg != "" {
		errs["full_name"] = msg
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
