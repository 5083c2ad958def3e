package auth

import (
	"testing"

	"github.com/goliatone/go-logger/glog"
	"github.com/stretchr/testify/assert"
)

func TestFormatArgs(t *testing.T) {
	assert.Equal(t, "", formatArgs(nil))
	assert.Equal(t, " a=1 b=two", formatArgs([]any{"a", 1, "b", "two"}))
	assert.Equal(t, " a=1 dangling", formatArgs([]any{"a", 1, "dangling"}))
}

func TestNormalizeLogger(t *testing.T) {
	assert.IsType(t, defLogger{}, normalizeLogger(nil))

	logger := &captureLogger{}
	assert.Same(t, logger, normalizeLogger(logger))
}

func TestGlogSatisfiesLogger(t *testing.T) {
	base := glog.NewLogger(glog.WithName("auth-test"))
	var logger Logger = base.GetLogger("store")
	assert.NotNil(t, normalizeLogger(logger))
}
