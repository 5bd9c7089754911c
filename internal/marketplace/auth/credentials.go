package auth

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/morikuni/failure/v2"
)

var validate = validator.New()

// Credentials: данные приложения продавца для обмена refresh token на access token.
type Credentials struct {
	ClientID     string `validate:"required"`
	ClientSecret string `validate:"required"`
	RefreshToken string `validate:"required"`
}

func (c Credentials) Validate() error {
	if err := validate.Struct(c); err != nil {
		return failure.Wrap(err, failure.WithCode(ErrMissingCredentials),
			failure.Message("marketplace credentials are not configured"),
		)
	}
	return nil
}

// identity: ключ кэша. Разные приложения продавца получают разные токены.
func (c Credentials) identity() string {
	return c.ClientID
}

// AuthToken живёт только в памяти процесса.
type AuthToken struct {
	Value     string
	ExpiresAt time.Time
}

// Grant: ответ сервера авторизации.
type Grant struct {
	AccessToken string
	ExpiresIn   time.Duration
}
