package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetCapturesStructuredFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(zap.NewNop()) })

	Infow("memory swept", "removed", 3)
	Debugf("hidden %d", 1)
	Error("archive failed", assert.AnError)

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "memory swept", entries[0].Message)
		assert.EqualValues(t, 3, entries[0].ContextMap()["removed"])
		assert.Equal(t, "archive failed", entries[1].Message)
	}
}
