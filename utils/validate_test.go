package utils

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tallerpro.mx/shop/pkg/apperr"
)

type sampleInput struct {
	Name  string   `json:"name" validate:"required,max=5"`
	Email string   `json:"email" validate:"omitempty,email"`
	Kind  string   `json:"kind" validate:"oneof=car motorcycle"`
	Tags  []string `json:"tags" validate:"min=1"`
}

func TestValidate_ReportsJSONFieldNames(t *testing.T) {
	err := Validate(sampleInput{Name: "toolong", Email: "nope", Kind: "boat"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.NotValid))

	var verr *apperr.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "must be at most 5 characters", verr.Fields["name"])
	assert.Equal(t, "must be a valid email address", verr.Fields["email"])
	assert.Equal(t, "must be one of: car, motorcycle", verr.Fields["kind"])
	assert.Equal(t, "must contain at least 1 items", verr.Fields["tags"])
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, Validate(sampleInput{Name: "ok", Kind: "car", Tags: []string{"x"}}))
}
