// SPDX-License-Identifier: EPL-2.0

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Levels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l, err := New(Config{Level: "warn", Output: &buf})
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("shown", "key", 1)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "key=1")
}

func TestNew_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l, err := New(Config{Format: "json", Prefix: "engine", Output: &buf})
	require.NoError(t, err)

	l.Info("started", "rate", 96000)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &rec))
	assert.Equal(t, "started", rec["msg"])
	assert.Equal(t, "engine", rec["prefix"])
	assert.EqualValues(t, 96000, rec["rate"])
}

func TestNew_Invalid(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Config{Format: "xml"})
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { Discard().Error("nothing") })
}
