package log_test

import (
	"bytes"
	"testing"

	"github.com/dukex/nodebase/pkg/log"
	"github.com/stretchr/testify/assert"
)

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer

	logger := log.New(&buf, "warn", "text")
	logger.Info("hidden")
	logger.Warn("shown", "node_id", "n1")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "node_id=n1")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer

	log.New(&buf, "debug", "json").Debug("event", "execution_id", "e1")

	assert.Contains(t, buf.String(), `"execution_id":"e1"`)
}
