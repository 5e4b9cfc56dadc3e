package env

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeviceIDStable(t *testing.T) {
	id, err := DeviceID()
	if err != nil {
		t.Skipf("no machine id: %v", err)
	}
	require.Len(t, id, DeviceIDLen)
	again, err := DeviceID()
	require.NoError(t, err)
	require.Equal(t, id, again)
}
