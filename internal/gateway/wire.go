package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

type userResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		FullName string `json:"full_name"`
	} `json:"user_metadata"`
}

func (u userResponse) toAuthUser() models.AuthUser {
	return models.AuthUser{ID: u.ID, Email: u.Email, FullName: u.UserMetadata.FullName}
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

// signUpResponse — либо сессия, либо сам пользователь (если нужна проверка почты).
type signUpResponse struct {
	tokenResponse
	userResponse
}

// UnmarshalJSON раскладывает ответ по обоим вариантам: поля user_metadata
// и id встречаются только в ответе без сессии.
func (r *signUpResponse) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &r.tokenResponse); err != nil {
		return err
	}
	return json.Unmarshal(data, &r.userResponse)
}

type errorResponse struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

// decodeError приводит тело ошибки провайдера к ProviderError.
// Провайдер отвечает в нескольких форматах: {code, error_code, msg},
// {error, error_description} и {code, message} у табличного API.
func decodeError(status int, body []byte) *models.ProviderError {
	perr := &models.ProviderError{Status: status}
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		perr.Message = http.StatusText(status)
		return perr
	}

	perr.Code = er.ErrorCode
	if perr.Code == "" && len(er.Code) > 0 {
		var code string
		if json.Unmarshal(er.Code, &code) == nil {
			perr.Code = code
		} else if n, err := strconv.Atoi(string(er.Code)); err == nil && n != status {
			perr.Code = strconv.Itoa(n)
		}
	}
	if perr.Code == "" {
		perr.Code = er.Error
	}

	for _, msg := range []string{er.Msg, er.Message, er.ErrorDescription, er.Error} {
		if msg != "" {
			perr.Message = msg
			break
		}
	}
	if perr.Message == "" {
		perr.Message = http.StatusText(status)
	}
	return perr
}
