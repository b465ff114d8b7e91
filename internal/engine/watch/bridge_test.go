package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu     sync.Mutex
	events []FileEvent
}

func (c *collector) consume(ch <-chan FileEvent) {
	for ev := range ch {
		c.mu.Lock()
		c.events = append(c.events, ev)
		c.mu.Unlock()
	}
}

func (c *collector) count(kind EventKind, path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.events {
		if ev.Kind == kind && ev.Path == path {
			n++
		}
	}
	return n
}

func newTestBridge(t *testing.T, root string, debounce time.Duration) (*Bridge, *collector) {
	t.Helper()
	b, err := New(root, debounce)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	c := &collector{}
	go c.consume(b.Events())
	return b, c
}

func TestCreateEmitsImmediately(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "proj"), 0755))
	_, c := newTestBridge(t, root, 50*time.Millisecond)

	path := filepath.Join(root, "proj", "sess.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))

	require.Eventually(t, func() bool {
		return c.count(Created, path) >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWriteBurstCoalescesIntoOneModify(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "proj"), 0755))
	path := filepath.Join(root, "proj", "sess.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))

	_, c := newTestBridge(t, root, 100*time.Millisecond)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = f.WriteString("{}\n")
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool {
		return c.count(Modified, path) >= 1
	}, 2*time.Second, 10*time.Millisecond)
	// The burst fit inside one debounce window.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, c.count(Modified, path))
}

func TestRemoveEmitsImmediately(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "proj"), 0755))
	path := filepath.Join(root, "proj", "sess.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))

	_, c := newTestBridge(t, root, 50*time.Millisecond)
	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		return c.count(Removed, path) >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewProjectDirectoryIsAttached(t *testing.T) {
	root := t.TempDir()
	_, c := newTestBridge(t, root, 50*time.Millisecond)

	dir := filepath.Join(root, "fresh")
	require.NoError(t, os.Mkdir(dir, 0755))
	// Give the bridge a beat to attach the new directory.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "sess.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))

	require.Eventually(t, func() bool {
		return c.count(Created, path) >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNonSessionFilesAreIgnored(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "proj"), 0755))
	_, c := newTestBridge(t, root, 50*time.Millisecond)

	stray := filepath.Join(root, "proj", "notes.txt")
	require.NoError(t, os.WriteFile(stray, []byte("x"), 0644))

	time.Sleep(300 * time.Millisecond)
	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Empty(t, c.events)
}

func TestFailedSignalsAfterClose(t *testing.T) {
	root := t.TempDir()
	b, _ := newTestBridge(t, root, 50*time.Millisecond)

	require.NoError(t, b.Close())

	select {
	case <-b.Failed():
	case <-time.After(2 * time.Second):
		t.Fatal("Failed() did not signal after the watcher stopped")
	}
}
