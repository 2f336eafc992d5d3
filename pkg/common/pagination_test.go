package common

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPaginationParamsDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/stories", nil)

	params := ExtractPaginationParams(r)

	assert.Equal(t, 1, params.Page)
	assert.Equal(t, 20, params.PageSize)
	assert.Equal(t, "desc", params.Order)
}

func TestExtractPaginationParamsClampsPageSize(t *testing.T) {
	r := httptest.NewRequest("GET", "/stories?page=3&page_size=5000", nil)

	params := ExtractPaginationParams(r)

	assert.Equal(t, 3, params.Page)
	assert.Equal(t, maxPageSize, params.PageSize)
	assert.Equal(t, 2*maxPageSize, params.CalculateOffset())
}

func TestExtractPaginationParamsIgnoresBadValues(t *testing.T) {
	r := httptest.NewRequest("GET", "/stories?page=-1&page_size=abc&order=sideways", nil)

	params := ExtractPaginationParams(r)

	assert.Equal(t, 1, params.Page)
	assert.Equal(t, 20, params.PageSize)
	assert.Equal(t, "desc", params.Order)
}

func TestBuildPaginationMeta(t *testing.T) {
	meta := BuildPaginationMeta(2, 10, 25)

	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNext)
	assert.True(t, meta.HasPrev)

	last := BuildPaginationMeta(3, 10, 25)
	assert.False(t, last.HasNext)
}
