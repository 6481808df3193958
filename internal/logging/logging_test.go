package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_New_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf, "librarium", "production")

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "librarium", line["app"])
	assert.Equal(t, "logger initialized", line["msg"])
}

func Test_New_DevelopmentIsVerboseText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf, "librarium", "development")

	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.Contains(t, buf.String(), `msg="logger initialized"`)
}
