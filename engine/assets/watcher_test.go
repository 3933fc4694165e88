package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reloadTimeout = 5 * time.Second

// replace swaps the file in one step so the watcher never sees it half written.
func replace(t *testing.T, path string, data []byte) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, data, 0o644))
	require.NoError(t, os.Rename(tmp, path))
}

func TestSceneWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.toml")
	require.NoError(t, os.WriteFile(path, []byte(demoScene), 0o644))

	sw, err := NewSceneWatcher(path)
	require.NoError(t, err)
	defer sw.Close()
	require.Len(t, sw.Current().Objects, 2)

	updated := demoScene + "\n[[object]]\nmesh = \"triangle\"\n"
	replace(t, path, []byte(updated))

	select {
	case scene := <-sw.Updates():
		assert.Len(t, scene.Objects, 3)
	case <-time.After(reloadTimeout):
		t.Fatal("no reload after the scene file changed")
	}
	assert.Len(t, sw.Current().Objects, 3)
}

func TestSceneWatcherKeepsLastGoodScene(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.toml")
	require.NoError(t, os.WriteFile(path, []byte(demoScene), 0o644))

	sw, err := NewSceneWatcher(path)
	require.NoError(t, err)
	defer sw.Close()

	// unrelated files in the directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.toml"), []byte("garbage ="), 0o644))
	replace(t, path, []byte("[[object]\n"))

	select {
	case err := <-sw.Errors():
		assert.Error(t, err)
	case <-time.After(reloadTimeout):
		t.Fatal("broken scene was not reported")
	}
	assert.Len(t, sw.Current().Objects, 2)
}

func TestSceneWatcherRequiresValidScene(t *testing.T) {
	_, err := NewSceneWatcher(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestSceneWatcherClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.toml")
	require.NoError(t, os.WriteFile(path, []byte(demoScene), 0o644))
	sw, err := NewSceneWatcher(path)
	require.NoError(t, err)
	require.NoError(t, sw.Close())
	assert.Error(t, sw.Close())
}
