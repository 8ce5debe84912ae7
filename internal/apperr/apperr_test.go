package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		Invalid("x"):                     http.StatusBadRequest,
		NotFound("x"):                    http.StatusNotFound,
		Conflict("badge_id", "x"):        http.StatusConflict,
		InvalidState("x"):                http.StatusInternalServerError,
		Storage("x", errors.New("down")): http.StatusServiceUnavailable,
		errors.New("plain"):              http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}

func TestCodeSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("ledger.Register -> %w", Conflict("trimester", "already paid"))
	assert.Equal(t, CodeConflict, CodeOf(err))
	assert.True(t, HasCode(err, CodeConflict))
	assert.ErrorIs(t, err, &Error{Code: CodeConflict})
	assert.ErrorIs(t, err, &Error{Code: CodeConflict, Field: "trimester"})
	assert.NotErrorIs(t, err, &Error{Code: CodeConflict, Field: "photo"})
	assert.False(t, HasCode(nil, CodeConflict))
}

func TestStorageUnwraps(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Storage("find person", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "STORAGE_UNAVAILABLE")
}

func TestFromValidation(t *testing.T) {
	err := FromValidation(validation.Errors{
		"surname":  errors.New("cannot be blank"),
		"badge_id": errors.New("cannot be blank"),
	})
	var appErr *Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, CodeInvalidArgument, appErr.Code)
	assert.Equal(t, "badge_id", appErr.Field)

	assert.Nil(t, FromValidation(nil))
	assert.True(t, HasCode(FromValidation(errors.New("bad")), CodeInvalidArgument))
}
