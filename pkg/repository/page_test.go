package repository

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequestNormalize(t *testing.T) {
	assert.Equal(t, PageRequest{Page: 0, Size: DefaultPageSize}, PageRequest{Page: -1}.Normalize())
	assert.Equal(t, PageRequest{Page: 2, Size: MaxPageSize}, PageRequest{Page: 2, Size: 1000}.Normalize())
	assert.Equal(t, 20, PageRequest{Page: 2, Size: 10}.Offset())
}

func TestPageRequestNormalize_HugePage(t *testing.T) {
	p := PageRequest{Page: math.MaxInt / 5, Size: 10}.Normalize()
	assert.Equal(t, 10, p.Size)
	assert.Positive(t, p.Offset())
	assert.Positive(t, p.Offset()+p.Size, "offset plus size must not overflow")
}

func TestNewPage(t *testing.T) {
	p := NewPage([]int{1, 2, 3}, PageRequest{Page: 0, Size: 3}, 7)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, int64(7), p.TotalItems)

	empty := NewPage[int](nil, PageRequest{Page: 0, Size: 10}, 0)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 0, empty.TotalPages)

	mapped := MapPage(p, strconv.Itoa)
	assert.Equal(t, []string{"1", "2", "3"}, mapped.Items)
	assert.Equal(t, p.TotalPages, mapped.TotalPages)
}
