package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeDeviceObject(t *testing.T) {
	out := NormalizeDevice(json.RawMessage(`{"os":"macos","browser":"safari"}`))
	require.Equal(t, "macos safari", out)
}

func TestNormalizeDevicePartialObject(t *testing.T) {
	require.Equal(t, "chrome", NormalizeDevice(json.RawMessage(`{"browser":"chrome"}`)))
	require.Equal(t, "linux", NormalizeDevice(json.RawMessage(`{"os":"linux"}`)))
}

func TestNormalizeDeviceEmptyObjectFallsBackToLiteral(t *testing.T) {
	out := NormalizeDevice(json.RawMessage(`{"model":"SM-G998B"}`))
	require.Equal(t, `{"model":"SM-G998B"}`, out)
}

func TestNormalizeDeviceString(t *testing.T) {
	require.Equal(t, "iPhone 15", NormalizeDevice(json.RawMessage(`"iPhone 15"`)))
}

func TestNormalizeDeviceAbsent(t *testing.T) {
	require.Equal(t, "", NormalizeDevice(nil))
	require.Equal(t, "", NormalizeDevice(json.RawMessage(`null`)))
}
