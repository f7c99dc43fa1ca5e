package registry

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormatGroups_RoundTripIsByteExact(t *testing.T) {
	data := []byte("root:x:0:\nwheel:x:10:admin,ops\nstaff::1000:alice\n")

	groups, err := ParseGroups(data)
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, Group{Name: "wheel", Password: "x", GID: 10, Members: []string{"admin", "ops"}}, groups[1])
	assert.Empty(t, groups[2].Password)

	assert.Equal(t, data, FormatGroups(groups))
}

func TestParseGroups_Errors(t *testing.T) {
	for name, input := range map[string]string{
		"too few fields": "root:x:0\n",
		"bad gid":        "root:x:zero:\n",
		"empty name":     ":x:0:\n",
		"negative gid":   "root:x:-1:\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseGroups([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestCarryPasswords(t *testing.T) {
	existing := []Group{{Name: "staff", Password: "$6$hash", GID: 1000}}
	desired := []Group{
		{Name: "staff", GID: 1000, Members: []string{"alice"}},
		{Name: "web", GID: 1001},
	}

	out := CarryPasswords(existing, desired)
	assert.Equal(t, "$6$hash", out[0].Password)
	assert.Equal(t, "x", out[1].Password)
	assert.Empty(t, desired[0].Password, "desired must not be mutated")
}

func TestSyncShadows(t *testing.T) {
	shadows := []Shadow{
		{Name: "root", Password: "*"},
		{Name: "staff", Password: "!", Admins: []string{"boss"}, Members: []string{"alice"}},
		{Name: "old", Password: "!"},
		{Name: "stray", Password: "!"},
	}
	groups := []Group{
		{Name: "root", GID: 0},
		{Name: "staff", GID: 1000, Members: []string{"alice", "bob"}},
		{Name: "web", GID: 1001, Members: []string{"www"}},
	}
	changes := []Change{{Kind: ChangeRemove, Name: "old", ID: 1002}}

	out := SyncShadows(shadows, groups, changes, testRange)

	assert.Equal(t,
		"root:*::\nstaff:!:boss:alice,bob\nstray:!::\nweb:!::www\n",
		string(FormatShadows(out)))
	assert.Equal(t, []string{"alice"}, shadows[1].Members, "input must not be mutated")
}

func TestReadShadows_MissingVersusEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gshadow")
	_, err := ReadShadows(path)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, os.WriteFile(path, nil, 0o600))
	shadows, err := ReadShadows(path)
	require.NoError(t, err)
	assert.Empty(t, shadows)
}

func TestLock_ReleaseAndReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".pwd.lock")

	first, err := Lock(path)
	require.NoError(t, err)

	require.NoError(t, first.Unlock())

	second, err := Lock(path)
	require.NoError(t, err)
	require.NoError(t, second.Unlock())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLock_ConcurrentUsersInProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".pwd.lock")

	var holders, maxHolders atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := Lock(path)
			if !assert.NoError(t, err) {
				return
			}
			n := holders.Add(1)
			for {
				m := maxHolders.Load()
				if n <= m || maxHolders.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			holders.Add(-1)
			assert.NoError(t, l.Unlock())
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxHolders.Load())
}
