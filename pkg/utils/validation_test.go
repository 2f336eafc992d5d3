package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createRequest struct {
	Title    string `json:"title" validate:"required,max=10"`
	Category string `json:"category" validate:"omitempty,oneof=edit praise question"`
}

func TestValidateStructPasses(t *testing.T) {
	err := ValidateStruct(createRequest{Title: "My Story", Category: "praise"})
	assert.NoError(t, err)
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	err := ValidateStruct(createRequest{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "title is required")
}

func TestValidateStructJoinsMultipleFailures(t *testing.T) {
	err := ValidateStruct(createRequest{Title: "far too long a title", Category: "rant"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "title must be at most 10 characters")
	assert.Contains(t, err.Error(), "category must be one of: edit praise question")
}
