package terraform

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ghostmind-dev/run-sub002/shell"
)

// Lock manages per-component remote-state lock files in a GCS bucket,
// driven through `gcloud storage`.
type Lock struct {
	Bucket string
	Prefix string

	run     func(ctx context.Context, c *shell.Command) error
	capture func(ctx context.Context, c *shell.Command) (string, error)
}

func NewLock(bucket, prefix string) *Lock {
	return &Lock{
		Bucket:  bucket,
		Prefix:  prefix,
		run:     func(ctx context.Context, c *shell.Command) error { return c.Run(ctx) },
		capture: func(ctx context.Context, c *shell.Command) (string, error) { return c.Capture(ctx) },
	}
}

func (l *Lock) object(component string) string {
	parts := []string{"gs://" + l.Bucket}
	if l.Prefix != "" {
		parts = append(parts, strings.Trim(l.Prefix, "/"))
	}
	parts = append(parts, component+".tflock")
	return strings.Join(parts, "/")
}

// Holder returns the contents of the lock file, or "" when unlocked.
func (l *Lock) Holder(ctx context.Context, component string) (string, error) {
	out, err := l.capture(ctx, shell.New("gcloud", "storage", "cat", l.object(component)))
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("read lock %s: %w", l.object(component), err)
	}
	return strings.TrimSpace(out), nil
}

// Acquire creates the lock file. The existence check and the copy are two
// separate gcloud calls, so a concurrent acquire can race; good enough for
// the single-team workflows this serves.
func (l *Lock) Acquire(ctx context.Context, component, id string) error {
	holder, err := l.Holder(ctx, component)
	if err != nil {
		return err
	}
	if holder != "" {
		return fmt.Errorf("component %q is locked by %s (run terraform unlock to clear)", component, holder)
	}

	tmp, err := os.CreateTemp("", "run-tflock-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	fmt.Fprintf(tmp, "%s %s\n", id, time.Now().UTC().Format(time.RFC3339))
	tmp.Close()

	if err := l.run(ctx, shell.New("gcloud", "storage", "cp", tmp.Name(), l.object(component)).Quiet()); err != nil {
		return fmt.Errorf("acquire lock %s: %w", l.object(component), err)
	}
	return nil
}

// Release removes the lock file. Releasing an unheld lock is not an error.
func (l *Lock) Release(ctx context.Context, component string) error {
	if err := l.run(ctx, shell.New("gcloud", "storage", "rm", l.object(component)).Quiet()); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("release lock %s: %w", l.object(component), err)
	}
	return nil
}

func isNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "No URLs matched") ||
		strings.Contains(msg, "not found") ||
		strings.Contains(msg, "404")
}
