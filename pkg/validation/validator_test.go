package validation

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,pwd"`
	Year     int    `json:"year" validate:"omitempty,studyyear"`
}

func TestToDetails_UsesJSONNamesAndAliases(t *testing.T) {
	v := validator.New()
	Register(v)

	err := v.Struct(signupForm{Email: "nope", Password: "12345", Year: 13})
	require.Error(t, err)

	details := ToDetails(err)
	assert.Equal(t, "must be a valid email", details["email"])
	assert.Equal(t, "must be at least 6 characters long", details["password"])
	assert.Equal(t, "must be between 1 and 12", details["year"])
}

func TestToDetails_Valid(t *testing.T) {
	v := validator.New()
	Register(v)
	assert.NoError(t, v.Struct(signupForm{Email: "a@b.edu", Password: "123456", Year: 2}))
	assert.Nil(t, ToDetails(nil))
}

func TestToDetails_Fallback(t *testing.T) {
	assert.Equal(t, map[string]string{"payload": "invalid payload"}, ToDetails(errors.New("boom")))
}
