package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigureLogging(t *testing.T) {
	require.NoError(t, ConfigureLogging("debug"))
	require.NoError(t, ConfigureLogging("DEBUG"))
	require.NoError(t, ConfigureLogging(" Warn "))
	require.NoError(t, ConfigureLogging(""))
}
