package persona

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tribune/internal/store"
)

func newFileStore(t *testing.T) (*FileStore, string, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "tribune.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	path := filepath.Join(dir, "persona.json")
	fs, err := NewFileStore(path, st)
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })
	return fs, path, st
}

func TestFileStoreBootstrap(t *testing.T) {
	fs, path, _ := newFileStore(t)

	p := fs.Current()
	require.NotNil(t, p)
	assert.Equal(t, Default().Handle, p.Handle)
	assert.NotEmpty(t, fs.Hash())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk Persona
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, p.Handle, onDisk.Handle)
}

func TestFileStoreUpdate(t *testing.T) {
	fs, _, st := newFileStore(t)

	p := Default()
	p.Mission = "Ship one pilot per quarter."
	v1, err := fs.Update(p, "sharper mission")
	require.NoError(t, err)
	assert.Equal(t, 1, v1)

	assert.Equal(t, "Ship one pilot per quarter.", fs.Current().Mission)

	t.Run("version snapshot lands in the store", func(t *testing.T) {
		rec, err := st.PersonaVersion(v1)
		require.NoError(t, err)
		assert.Equal(t, fs.Hash(), rec.Hash)

		var stored Persona
		require.NoError(t, json.Unmarshal([]byte(rec.Body), &stored))
		assert.Equal(t, "Ship one pilot per quarter.", stored.Mission)
	})

	t.Run("invalid persona rejected before any write", func(t *testing.T) {
		before := fs.Hash()
		bad := Default()
		bad.Handle = "not a handle"
		_, err := fs.Update(bad, "broken")
		require.Error(t, err)
		assert.Equal(t, before, fs.Hash())
	})
}

func TestFileStoreRollback(t *testing.T) {
	fs, _, _ := newFileStore(t)

	first := Default()
	first.Mission = "Mission one."
	v1, err := fs.Update(first, "v1")
	require.NoError(t, err)

	second := Default()
	second.Mission = "Mission two."
	_, err = fs.Update(second, "v2")
	require.NoError(t, err)
	require.Equal(t, "Mission two.", fs.Current().Mission)

	require.NoError(t, fs.Rollback(v1))
	assert.Equal(t, "Mission one.", fs.Current().Mission)

	assert.Error(t, fs.Rollback(999))
}

func TestFileStoreDiff(t *testing.T) {
	fs, _, _ := newFileStore(t)

	first := Default()
	first.Mission = "Mission one."
	v1, err := fs.Update(first, "v1")
	require.NoError(t, err)

	second := Default()
	second.Mission = "Mission two."
	second.Handle = "tribune_two"
	v2, err := fs.Update(second, "v2")
	require.NoError(t, err)

	changes, err := fs.Diff(v1, v2)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "handle", changes[0].Field)
	assert.Equal(t, "mission", changes[1].Field)
	assert.Equal(t, `"Mission one."`, changes[1].From)
	assert.Equal(t, `"Mission two."`, changes[1].To)

	t.Run("identical versions diff empty", func(t *testing.T) {
		changes, err := fs.Diff(v1, v1)
		require.NoError(t, err)
		assert.Empty(t, changes)
	})

	t.Run("missing version errors", func(t *testing.T) {
		_, err := fs.Diff(v1, 999)
		assert.Error(t, err)
	})
}

func TestFileStoreHotReload(t *testing.T) {
	fs, path, _ := newFileStore(t)

	edited := Default()
	edited.Mission = "Edited by the operator."
	data, err := json.MarshalIndent(edited, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	assert.Eventually(t, func() bool {
		return fs.Current().Mission == "Edited by the operator."
	}, 3*time.Second, 20*time.Millisecond)

	t.Run("corrupt edit keeps the cached persona", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, "Edited by the operator.", fs.Current().Mission)
	})
}
