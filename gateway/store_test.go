package gateway

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "config.json"))

	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Domains)
}

func TestStore_SaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	store := NewStore(path)

	cfg, err := store.Load()
	require.NoError(t, err)
	cfg.Domains = append(cfg.Domains, "https://example.com")
	require.NoError(t, store.Save(cfg))

	reloaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com"}, reloaded.Domains)
}

func TestStore_SaveRemovesBackupOnSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	store := NewStore(path)

	cfg, err := store.Load()
	require.NoError(t, err)
	require.NoError(t, store.Save(cfg))
	require.NoError(t, store.Save(cfg))

	_, err = os.Stat(path + ".bak")
	assert.True(t, os.IsNotExist(err))
}

func TestVault_PutGetDelete(t *testing.T) {
	dir := t.TempDir()
	v, err := NewVault(filepath.Join(dir, "vault.json"))
	require.NoError(t, err)

	require.NoError(t, v.Put("tok-1", "zone-a"))
	label, ok := v.Get("tok-1")
	require.True(t, ok)
	assert.Equal(t, "zone-a", label)

	require.NoError(t, v.Delete("tok-1"))
	_, ok = v.Get("tok-1")
	assert.False(t, ok)
}

func TestVault_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.json")

	v, err := NewVault(path)
	require.NoError(t, err)
	require.NoError(t, v.Put("tok-1", "zone-a"))

	reopened, err := NewVault(path)
	require.NoError(t, err)
	label, ok := reopened.Get("tok-1")
	require.True(t, ok)
	assert.Equal(t, "zone-a", label)
}

func TestExport_WriteAllJSON(t *testing.T) {
	dir := t.TempDir()
	e := NewExport(dir)

	path, err := e.WriteAll("json", []string{"https://a.com", "https://b.com"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cf_all_domains.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://a.com")
}

func TestExport_WriteTokenScopedCSV(t *testing.T) {
	dir := t.TempDir()
	e := NewExport(dir)

	path, err := e.WriteTokenScoped("tok-1", "csv", []string{"https://a.com"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cf_domains_tok-1.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "domain")
	assert.Contains(t, string(data), "https://a.com")
}

func TestExport_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	e := NewExport(dir)

	_, err := e.WriteAll("xml", []string{"https://a.com"})
	assert.Error(t, err)
}
