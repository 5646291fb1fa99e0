package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGoToClampsOutOfRange(t *testing.T) {
	s := New(20, 45)

	assert.False(t, s.GoTo(0))
	assert.Equal(t, 1, s.Page)

	assert.False(t, s.GoTo(-3))
	assert.Equal(t, 1, s.Page)

	assert.False(t, s.GoTo(4))
	assert.Equal(t, 1, s.Page)

	assert.True(t, s.GoTo(3))
	assert.Equal(t, 3, s.Page)
}

func TestNextPreviousBounds(t *testing.T) {
	s := New(20, 45)

	assert.False(t, s.Previous())
	assert.Equal(t, 1, s.Page)

	assert.True(t, s.Next())
	assert.True(t, s.Next())
	assert.Equal(t, 3, s.Page)

	assert.False(t, s.Next())
	assert.Equal(t, 3, s.Page)
}

func TestGoToInput(t *testing.T) {
	s := New(10, 100)

	assert.True(t, s.GoToInput(" 7 "))
	assert.Equal(t, 7, s.Page)

	assert.False(t, s.GoToInput("abc"))
	assert.Equal(t, 7, s.Page)

	assert.False(t, s.GoToInput("11"))
	assert.Equal(t, 7, s.Page)

	assert.False(t, s.GoToInput(""))
	assert.Equal(t, 7, s.Page)
}

func TestShowingRange(t *testing.T) {
	s := New(20, 45)
	s.GoTo(2)
	assert.Equal(t, "Showing 21 to 40 of 45", s.Showing())

	s.GoTo(3)
	assert.Equal(t, "Showing 41 to 45 of 45", s.Showing())
}

func TestShowingEmpty(t *testing.T) {
	s := New(20, 0)
	start, end := s.Range()
	assert.Equal(t, 0, start)
	assert.Equal(t, 0, end)
	assert.Equal(t, "Showing 0 to 0 of 0", s.Showing())
	assert.Equal(t, 1, s.TotalPages())
}

func TestSetTotalClampsPage(t *testing.T) {
	s := New(10, 100)
	s.GoTo(10)

	s.SetTotal(25)
	assert.Equal(t, 3, s.Page)

	s.SetTotal(0)
	assert.Equal(t, 1, s.Page)
}

func TestTotalPagesCeiling(t *testing.T) {
	assert.Equal(t, 3, New(20, 45).TotalPages())
	assert.Equal(t, 1, New(20, 20).TotalPages())
	assert.Equal(t, 2, New(20, 21).TotalPages())
	assert.Equal(t, 1, New(20, 0).TotalPages())
}
