// Package tunnel spawns and tracks the SSH port forwards declared in
// meta.json. Runtime state (pids, endpoints) persists across CLI
// invocations in the user's state directory.
package tunnel

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/adrg/xdg"
	"github.com/ghostmind-dev/run-sub002/meta"
	"github.com/rs/xid"
)

const stateDirName = "run"

// Runtime is the persisted record of one spawned tunnel.
type Runtime struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	PID       int       `json:"pid"`
	Local     string    `json:"local"`
	Remote    string    `json:"remote"`
	Via       string    `json:"via"`
	StartedAt time.Time `json:"started_at"`
}

// Manager owns the tunnel state file and the ssh processes it records.
type Manager struct {
	statePath string

	start func(ctx context.Context, spec meta.TunnelSpec) (int, error)
	dial  func(addr string, timeout time.Duration) error
	alive func(pid int) bool
	kill  func(pid int) error
}

func NewManager() (*Manager, error) {
	statePath, err := xdg.StateFile(filepath.Join(stateDirName, "tunnels.json"))
	if err != nil {
		return nil, fmt.Errorf("state file: %w", err)
	}
	return &Manager{
		statePath: statePath,
		start:     startSSH,
		dial:      dialTCP,
		alive:     processAlive,
		kill:      func(pid int) error { return syscall.Kill(pid, syscall.SIGTERM) },
	}, nil
}

// SSHArgs builds the ssh command line for a forward spec.
func SSHArgs(spec meta.TunnelSpec) []string {
	remoteHost := spec.RemoteHost
	if remoteHost == "" {
		remoteHost = "localhost"
	}
	forward := fmt.Sprintf("%d:%s:%d", spec.LocalPort, remoteHost, spec.RemotePort)
	return []string{
		"-N",
		"-L", forward,
		"-o", "ExitOnForwardFailure=yes",
		"-o", "ServerAliveInterval=30",
		spec.Via,
	}
}

// startSSH spawns ssh detached in its own session so the forward outlives
// the CLI process.
func startSSH(ctx context.Context, spec meta.TunnelSpec) (int, error) {
	cmd := exec.Command("ssh", SSHArgs(spec)...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start ssh: %w", err)
	}
	pid := cmd.Process.Pid
	// Reap the child when it exits during our lifetime.
	go cmd.Wait()
	return pid, nil
}

func dialTCP(addr string, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return err
	}
	conn.Close()
	return nil
}

func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

// Up starts the named tunnel unless a live one with the same name already
// exists, then waits until the local port accepts connections.
func (m *Manager) Up(ctx context.Context, name string, spec meta.TunnelSpec) (Runtime, error) {
	state, err := m.load()
	if err != nil {
		return Runtime{}, err
	}
	if rt, ok := state[name]; ok && m.alive(rt.PID) {
		return rt, nil
	}

	pid, err := m.start(ctx, spec)
	if err != nil {
		return Runtime{}, err
	}

	rt := Runtime{
		ID:        xid.New().String(),
		Name:      name,
		PID:       pid,
		Local:     fmt.Sprintf("127.0.0.1:%d", spec.LocalPort),
		Remote:    fmt.Sprintf("%s:%d", remoteHost(spec), spec.RemotePort),
		Via:       spec.Via,
		StartedAt: time.Now().UTC(),
	}

	if err := m.waitListening(ctx, rt.Local); err != nil {
		m.kill(pid)
		return Runtime{}, fmt.Errorf("tunnel %q: %w", name, err)
	}

	state[name] = rt
	if err := m.persist(state); err != nil {
		return Runtime{}, err
	}
	return rt, nil
}

func remoteHost(spec meta.TunnelSpec) string {
	if spec.RemoteHost == "" {
		return "localhost"
	}
	return spec.RemoteHost
}

// waitListening polls the local endpoint until it accepts a connection.
func (m *Manager) waitListening(ctx context.Context, addr string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := m.dial(addr, time.Second); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("local port %s never came up: %w", addr, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Down terminates the named tunnel and prunes it from the state file.
// Unknown names are an error; a dead pid is pruned silently.
func (m *Manager) Down(name string) error {
	state, err := m.load()
	if err != nil {
		return err
	}
	rt, ok := state[name]
	if !ok {
		return fmt.Errorf("no tunnel %q in state", name)
	}
	if m.alive(rt.PID) {
		if err := m.kill(rt.PID); err != nil {
			return fmt.Errorf("kill tunnel %q (pid %d): %w", name, rt.PID, err)
		}
	}
	delete(state, name)
	return m.persist(state)
}

// Status returns all recorded tunnels with their liveness, pruning entries
// whose process is gone.
func (m *Manager) Status() ([]Runtime, []string, error) {
	state, err := m.load()
	if err != nil {
		return nil, nil, err
	}

	var live []Runtime
	var dead []string
	for name, rt := range state {
		if m.alive(rt.PID) {
			live = append(live, rt)
		} else {
			dead = append(dead, name)
			delete(state, name)
		}
	}
	if len(dead) > 0 {
		if err := m.persist(state); err != nil {
			return nil, nil, err
		}
	}

	sort.Slice(live, func(i, j int) bool { return live[i].Name < live[j].Name })
	sort.Strings(dead)
	return live, dead, nil
}

func (m *Manager) load() (map[string]Runtime, error) {
	raw, err := os.ReadFile(m.statePath)
	if os.IsNotExist(err) {
		return map[string]Runtime{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tunnel state: %w", err)
	}
	state := map[string]Runtime{}
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("parse tunnel state %s: %w", m.statePath, err)
	}
	return state, nil
}

func (m *Manager) persist(state map[string]Runtime) error {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.statePath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(m.statePath, raw, 0o600)
}
