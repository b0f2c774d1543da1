package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("debug", &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	Component(log, "compile").WithField("dialect", "mysql").Debug("compiled")
	assert.Contains(t, buf.String(), "component=compile")
	assert.Contains(t, buf.String(), "dialect=mysql")
}

func TestNewDefaultsToWarn(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("", &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())

	log.Info("hidden")
	assert.Empty(t, buf.String())
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New("loud", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestOrDiscard(t *testing.T) {
	entry := OrDiscard(nil, "apply")
	require.NotNil(t, entry)
	assert.Equal(t, "apply", entry.Data["component"])

	var buf bytes.Buffer
	log, err := New("info", &buf)
	require.NoError(t, err)
	own := Component(log, "own")
	assert.Same(t, own, OrDiscard(own, "apply"))
}
