package drop

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citychests/vault-drop/pkg/testutil"
)

func TestConfigureLogging(t *testing.T) {
	testutil.CaptureLogs(t)

	buf := &bytes.Buffer{}
	ConfigureLogging(&Environment{LogLevel: "WARN", LogFormat: "json"}, buf)
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())

	logrus.StandardLogger().WithField("type", "drop/test").Info("hidden")
	logrus.StandardLogger().WithField("type", "drop/test").Warn("shown")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "drop/test", entry["type"])

	// An unknown level keeps the previous one.
	ConfigureLogging(&Environment{LogLevel: "loud", LogFormat: "text"}, buf)
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logrus.StandardLogger().Formatter)
}

func TestOrchestrator_LogsProgress(t *testing.T) {
	e := setup(t)
	hook := testutil.CaptureLogs(t)

	_, err := e.run(t)
	require.NoError(t, err)

	var messages []string
	for _, entry := range hook.AllEntries() {
		if entry.Level <= logrus.InfoLevel {
			messages = append(messages, entry.Message)
		}
	}
	assert.Equal(t, []string{
		"Initializing config",
		"Creating mint record",
		"minted to vault",
		"mint confirmed",
	}, messages)

	hook.Reset()
	_, err = e.run(t)
	require.NoError(t, err)
	for _, entry := range hook.AllEntries() {
		assert.NotEqual(t, "Initializing config", entry.Message)
	}
}
