package terraform

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/ghostmind-dev/run-sub002/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore emulates the gcloud storage commands against an in-memory map.
type fakeStore struct {
	objects  map[string]string
	commands []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]string{}}
}

func (s *fakeStore) lock() *Lock {
	l := NewLock("state-bucket", "locks")
	l.capture = func(ctx context.Context, c *shell.Command) (string, error) {
		s.commands = append(s.commands, c.String())
		fields := strings.Fields(c.String())
		obj := fields[len(fields)-1]
		if content, ok := s.objects[obj]; ok {
			return content, nil
		}
		return "", fmt.Errorf("gcloud: exit status 1: No URLs matched: %s", obj)
	}
	l.run = func(ctx context.Context, c *shell.Command) error {
		s.commands = append(s.commands, c.String())
		fields := strings.Fields(c.String())
		switch fields[2] {
		case "cp":
			s.objects[fields[4]] = "holder-id 2026-01-01T00:00:00Z"
		case "rm":
			obj := fields[3]
			if _, ok := s.objects[obj]; !ok {
				return fmt.Errorf("gcloud: exit status 1: No URLs matched: %s", obj)
			}
			delete(s.objects, obj)
		}
		return nil
	}
	return l
}

func TestLockObjectPath(t *testing.T) {
	l := NewLock("state-bucket", "locks/")
	assert.Equal(t, "gs://state-bucket/locks/core.tflock", l.object("core"))

	l = NewLock("state-bucket", "")
	assert.Equal(t, "gs://state-bucket/core.tflock", l.object("core"))
}

func TestLockLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	l := store.lock()

	t.Run("unlocked component reports empty holder", func(t *testing.T) {
		holder, err := l.Holder(ctx, "core")
		require.NoError(t, err)
		assert.Empty(t, holder)
	})

	t.Run("acquire writes the lock object", func(t *testing.T) {
		require.NoError(t, l.Acquire(ctx, "core", "holder-id"))
		assert.Contains(t, store.objects, "gs://state-bucket/locks/core.tflock")
	})

	t.Run("second acquire names the holder", func(t *testing.T) {
		err := l.Acquire(ctx, "core", "someone-else")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "holder-id")
	})

	t.Run("release clears the lock", func(t *testing.T) {
		require.NoError(t, l.Release(ctx, "core"))
		holder, err := l.Holder(ctx, "core")
		require.NoError(t, err)
		assert.Empty(t, holder)
	})

	t.Run("releasing an unheld lock is not an error", func(t *testing.T) {
		require.NoError(t, l.Release(ctx, "core"))
	})
}
