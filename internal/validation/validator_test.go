package validation

import (
	"errors"
	"testing"

	"foodgram/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type amountInput struct {
	ID     uint `json:"id" validate:"required"`
	Amount int  `json:"amount" validate:"gte=1"`
}

type sampleRequest struct {
	Name        string        `json:"name" validate:"required,max=10"`
	Username    string        `json:"username" validate:"username"`
	Email       string        `json:"email" validate:"required,email"`
	CookingTime int           `json:"cooking_time" validate:"gte=1"`
	Items       []amountInput `json:"ingredients" validate:"min=1,dive"`
}

func TestValidateStruct_Valid(t *testing.T) {
	req := sampleRequest{
		Name:        "soup",
		Username:    "chef",
		Email:       "chef@example.com",
		CookingTime: 5,
		Items:       []amountInput{{ID: 1, Amount: 2}},
	}
	assert.NoError(t, ValidateStruct(&req))
}

func TestValidateStruct_FieldMessages(t *testing.T) {
	req := sampleRequest{
		Name:        "a very long recipe name",
		Username:    "me",
		Email:       "nope",
		CookingTime: 0,
		Items:       []amountInput{{ID: 1, Amount: 0}},
	}

	err := ValidateStruct(&req)
	require.Error(t, err)

	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.CodeValidation, appErr.Code)
	assert.Equal(t, "name must be at most 10 characters", appErr.Fields["name"])
	assert.Contains(t, appErr.Fields, "username")
	assert.Equal(t, "email must be a valid email address", appErr.Fields["email"])
	assert.Equal(t, "cooking_time must be greater than or equal to 1", appErr.Fields["cooking_time"])
	assert.Equal(t, "amount must be greater than or equal to 1", appErr.Fields["ingredients[0].amount"])
}

func TestValidateStruct_EmptyCollection(t *testing.T) {
	req := sampleRequest{Name: "x", Username: "u", Email: "u@example.com", CookingTime: 1}

	err := ValidateStruct(&req)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "ingredients must contain at least 1 item(s)", appErr.Fields["ingredients"])
}
