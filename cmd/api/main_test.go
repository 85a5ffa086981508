package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLimit(t *testing.T) {
	assert.Equal(t, 50, parseLimit("", 50))
	assert.Equal(t, 10, parseLimit("10", 50))
	assert.Equal(t, 0, parseLimit("0", 50), "zero means unlimited")
	assert.Equal(t, 50, parseLimit("-1", 50), "negative values keep the fallback")
	assert.Equal(t, 50, parseLimit("abc", 50))
}
