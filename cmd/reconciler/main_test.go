package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSkipFailed(t *testing.T) {
	// 未显式传参时取配置值
	assert.False(t, resolveSkipFailed(false, false, false))
	assert.True(t, resolveSkipFailed(false, false, true))

	// 显式传参覆盖配置，包括用 -skip-failed=false 强制中止式重建
	assert.True(t, resolveSkipFailed(true, true, false))
	assert.False(t, resolveSkipFailed(true, false, true))
}
