package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/rudder"
	"github.com/arloliu/rudder/types"
)

func TestNewKnownProviders(t *testing.T) {
	for _, name := range []string{"mysql", "postgres"} {
		provider, err := New(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, provider.Type())
	}
}

func TestNewReturnsFreshInstances(t *testing.T) {
	first, err := New("mysql")
	require.NoError(t, err)
	second, err := New("mysql")
	require.NoError(t, err)

	// Per-pool thresholds must not leak between instances.
	require.NoError(t, first.Configure(map[string]string{ThresholdProp: "5000"}))

	source := &stubSource{
		name: "ds-1",
		rows: map[string][]types.Row{
			mysqlShowSlaveStatus: {{mysqlSecondsBehindCol: int64(100)}},
		},
	}

	status, err := second.LoadReplicaStatus(t.Context(), source)
	require.NoError(t, err)
	assert.True(t, status.Eligible, "the second instance still has the threshold disabled")
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("oracle")
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
}

func TestTypes(t *testing.T) {
	names := Types()
	assert.Contains(t, names, "mysql")
	assert.Contains(t, names, "postgres")
	assert.IsIncreasing(t, names)
}

func TestRegisterNilFactoryPanics(t *testing.T) {
	assert.Panics(t, func() { Register("broken", nil) })
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register("mysql", func() rudder.DiscoveryProvider { return NewMySQL() })
	})
}
