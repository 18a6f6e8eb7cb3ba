package configuration

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *Configuration {
	t.Helper()
	c := &Configuration{}
	t.Setenv("LOG_PATH", filepath.Join(t.TempDir(), "app.log"))
	return c
}

func TestLoad_Defaults(t *testing.T) {
	c := testConfig(t)
	require.NoError(t, c.load(nil))
	t.Cleanup(c.Unload)

	require.Equal(t, StoreBackendFile, c.Store.Backend)
	require.Equal(t, PersistenceRequired, c.Store.PersistenceMode)
	require.Equal(t, 5, c.Governance.ProposalDueDays)
	require.Equal(t, 50000.0, c.ChangeControl.BudgetAbsoluteThreshold)
	require.Equal(t, "localhost:3400", c.SocketAddress)
	require.NotNil(t, c.Logger())
}

func TestLoad_InvalidStoreBackend(t *testing.T) {
	c := testConfig(t)
	t.Setenv("STORE_BACKEND", "dynamo")
	require.ErrorContains(t, c.load(nil), "STORE_BACKEND")
}

func TestLoad_InvalidPersistenceMode(t *testing.T) {
	c := testConfig(t)
	t.Setenv("STORE_PERSISTENCE_MODE", "maybe")
	require.ErrorContains(t, c.load(nil), "STORE_PERSISTENCE_MODE")
}

func TestLoad_NormalizesCasing(t *testing.T) {
	c := testConfig(t)
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("STORE_PERSISTENCE_MODE", "Best-Effort")
	require.NoError(t, c.load(nil))
	t.Cleanup(c.Unload)
	require.Equal(t, StoreBackendMemory, c.Store.Backend)
	require.Equal(t, PersistenceBestEffort, c.Store.PersistenceMode)
}
