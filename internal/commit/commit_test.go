package commit

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func artifact(path, content string, mode os.FileMode) Artifact {
	return Artifact{
		Path:    path,
		Content: []byte(content),
		UID:     os.Getuid(),
		GID:     os.Getgid(),
		Mode:    mode,
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestApply_CreatesThenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "example.com.zone")
	c := New()

	res, err := c.Apply(artifact(path, "zone v1\n", 0o640))
	require.NoError(t, err)
	assert.Equal(t, Changed, res)
	assert.Equal(t, "zone v1\n", readFile(t, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	res, err = c.Apply(artifact(path, "zone v1\n", 0o640))
	require.NoError(t, err)
	assert.Equal(t, Unchanged, res)

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, os.SameFile(info, after), "unchanged commit must not replace the file")

	_, err = os.Lstat(TempPath(path))
	assert.True(t, errors.Is(err, os.ErrNotExist), "no temp file may remain")
}

func TestApply_ModeDifferenceRewrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits")
	c := New()

	_, err := c.Apply(artifact(path, "x", 0o644))
	require.NoError(t, err)

	res, err := c.Apply(artifact(path, "x", 0o600))
	require.NoError(t, err)
	assert.Equal(t, Changed, res)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestApply_RenameFailureLeavesTargetIntact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vhost.conf")
	require.NoError(t, os.WriteFile(path, []byte("old content\n"), 0o644))

	c := New()
	injected := errors.New("injected rename failure")
	c.rename = func(string, string) error { return injected }

	res, err := c.Apply(artifact(path, "new content\n", 0o644))
	require.Error(t, err)
	assert.ErrorIs(t, err, injected)
	assert.Equal(t, Unchanged, res)
	assert.Equal(t, "old content\n", readFile(t, path))

	c.rename = os.Rename
	res, err = c.Apply(artifact(path, "new content\n", 0o644))
	require.NoError(t, err)
	assert.Equal(t, Changed, res)
	assert.Equal(t, "new content\n", readFile(t, path))
}

func TestApply_OverwritesOrphanedTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jail.local")
	require.NoError(t, os.WriteFile(TempPath(path), []byte("half written"), 0o600))

	res, err := New().Apply(artifact(path, "[sshd]\n", 0o644))
	require.NoError(t, err)
	assert.Equal(t, Changed, res)
	assert.Equal(t, "[sshd]\n", readFile(t, path))

	_, err = os.Lstat(TempPath(path))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestApply_TempSymlinkIsNotFollowed(t *testing.T) {
	dir := t.TempDir()
	victim := filepath.Join(dir, "victim")
	require.NoError(t, os.WriteFile(victim, []byte("keep me"), 0o644))

	path := filepath.Join(dir, "target")
	require.NoError(t, os.Symlink(victim, TempPath(path)))

	_, err := New().Apply(artifact(path, "payload", 0o644))
	require.NoError(t, err)
	assert.Equal(t, "keep me", readFile(t, victim))
	assert.Equal(t, "payload", readFile(t, path))
}

func TestApply_Backup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "group")
	backup := filepath.Join(dir, "group-")
	require.NoError(t, os.WriteFile(path, []byte("root:x:0:\n"), 0o600))
	require.NoError(t, os.Chmod(path, 0o600))

	a := artifact(path, "root:x:0:\nstaff:x:1000:\n", 0o644)
	a.BackupPath = backup

	res, err := New().Apply(a)
	require.NoError(t, err)
	assert.Equal(t, Changed, res)
	assert.Equal(t, "root:x:0:\nstaff:x:1000:\n", readFile(t, path))
	assert.Equal(t, "root:x:0:\n", readFile(t, backup))

	info, err := os.Stat(backup)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "backup keeps the replaced file's mode")
}

func TestApply_BackupSkippedForNewFile(t *testing.T) {
	dir := t.TempDir()
	a := artifact(filepath.Join(dir, "group"), "root:x:0:\n", 0o644)
	a.BackupPath = filepath.Join(dir, "group-")

	_, err := New().Apply(a)
	require.NoError(t, err)
	_, err = os.Stat(a.BackupPath)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestApply_Absent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retired.conf")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	c := New()

	res, err := c.Apply(Artifact{Path: path, Absent: true})
	require.NoError(t, err)
	assert.Equal(t, Changed, res)

	res, err = c.Apply(Artifact{Path: path, Absent: true})
	require.NoError(t, err)
	assert.Equal(t, Unchanged, res)
}

func TestApply_RelativePathRejected(t *testing.T) {
	_, err := New().Apply(artifact("relative/path", "x", 0o644))
	assert.Error(t, err)
}

func TestSymlink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "localtime")
	c := New()

	res, err := c.Symlink(path, "/usr/share/zoneinfo/UTC")
	require.NoError(t, err)
	assert.Equal(t, Changed, res)

	res, err = c.Symlink(path, "/usr/share/zoneinfo/UTC")
	require.NoError(t, err)
	assert.Equal(t, Unchanged, res)

	res, err = c.Symlink(path, "/usr/share/zoneinfo/Europe/Berlin")
	require.NoError(t, err)
	assert.Equal(t, Changed, res)

	target, err := os.Readlink(path)
	require.NoError(t, err)
	assert.Equal(t, "/usr/share/zoneinfo/Europe/Berlin", target)
}

func TestSymlink_ReplacesRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "localtime")
	require.NoError(t, os.WriteFile(path, []byte("TZif"), 0o644))

	res, err := New().Symlink(path, "/usr/share/zoneinfo/UTC")
	require.NoError(t, err)
	assert.Equal(t, Changed, res)

	info, err := os.Lstat(path)
	require.NoError(t, err)
	assert.True(t, info.Mode()&os.ModeSymlink != 0)
}

func TestEnsureDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects")
	c := New()

	res, err := c.EnsureDirectory(path, os.Getuid(), os.Getgid(), 0o2770)
	require.NoError(t, err)
	assert.Equal(t, Changed, res)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o770), info.Mode().Perm())
	assert.True(t, info.Mode()&os.ModeSetgid != 0)

	res, err = c.EnsureDirectory(path, os.Getuid(), os.Getgid(), 0o2770)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, res)

	require.NoError(t, os.Chmod(path, 0o755))
	res, err = c.EnsureDirectory(path, os.Getuid(), os.Getgid(), 0o2770)
	require.NoError(t, err)
	assert.Equal(t, Changed, res)
}

func TestEnsureDirectory_RefusesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := New().EnsureDirectory(path, os.Getuid(), os.Getgid(), 0o755)
	assert.Error(t, err)
}

func TestTrimDirectory_FullyOwned(t *testing.T) {
	dir := t.TempDir()
	c := New()
	for _, name := range []string{"a", "b", "c"} {
		_, err := c.Apply(artifact(filepath.Join(dir, name), name+"\n", 0o644))
		require.NoError(t, err)
	}
	before := map[string]os.FileInfo{}
	for _, name := range []string{"a", "c"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		before[name] = info
	}

	// Re-applying the kept artifacts is a no-op, then trim removes b.
	for _, name := range []string{"a", "c"} {
		res, err := c.Apply(artifact(filepath.Join(dir, name), name+"\n", 0o644))
		require.NoError(t, err)
		assert.Equal(t, Unchanged, res)
	}
	removed, err := c.TrimDirectory(dir, []string{"a", "c"}, TrimOptions{FullyOwned: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, removed)

	_, err = os.Stat(filepath.Join(dir, "b"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	for name, info := range before {
		after, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.True(t, os.SameFile(info, after), "%s must be untouched", name)
		assert.Equal(t, info.ModTime(), after.ModTime())
	}
}

func TestTrimDirectory_AllowList(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"named.ca", "old.zone", "new.zone"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	removed, err := New().TrimDirectory(dir, []string{"new.zone"}, TrimOptions{
		Allow:      []string{"named.ca"},
		FullyOwned: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"old.zone"}, removed)
	assert.FileExists(t, filepath.Join(dir, "named.ca"))
}

func TestTrimDirectory_OnlyPreviousWhenNotFullyOwned(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"ours", "theirs"} {
		require.NoError(t, os.Mkdir(filepath.Join(dir, name), 0o755))
	}

	removed, err := New().TrimDirectory(dir, nil, TrimOptions{Previous: []string{"ours"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"ours"}, removed)
	assert.DirExists(t, filepath.Join(dir, "theirs"))
}

func TestTrimDirectory_KeepNonEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "busy"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "busy", "data"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "idle"), 0o755))

	c := New()
	removed, err := c.TrimDirectory(dir, nil, TrimOptions{
		Previous:     []string{"busy", "idle"},
		KeepNonEmpty: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"idle"}, removed)
	assert.DirExists(t, filepath.Join(dir, "busy"))

	removed, err = c.TrimDirectory(dir, nil, TrimOptions{Previous: []string{"busy"}})
	assert.Error(t, err, "non-empty directories are reported unless KeepNonEmpty is set")
	assert.Empty(t, removed)
}

func TestTrimDirectory_MissingDir(t *testing.T) {
	removed, err := New().TrimDirectory(filepath.Join(t.TempDir(), "nope"), nil, TrimOptions{FullyOwned: true})
	require.NoError(t, err)
	assert.Empty(t, removed)
}
