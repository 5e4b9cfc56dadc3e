// Package connectivity brings the network link up with stored credentials
// and keeps it up.
package connectivity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/elx/pkg/display"
	"github.com/robotalks/elx/pkg/nvs"
)

// State of the Manager.
type State int

// States
const (
	Idle State = iota
	Initializing
	WaitingForCredentials
	Connecting
	Connected
)

var stateNames = map[State]string{
	Idle:                  "idle",
	Initializing:          "initializing",
	WaitingForCredentials: "waiting for credentials",
	Connecting:            "connecting",
	Connected:             "connected",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Defaults
const (
	DefaultBackoff      = 3 * time.Second
	DefaultPollInterval = 30 * time.Second
)

// Credentials of the wifi network.
type Credentials struct {
	SSID     string
	Password string
}

// Network is the link controller.
type Network interface {
	// Start starts the controller, called once.
	Start() error
	Started() bool
	// BringUp connects with credentials, returns nil when the link is up.
	BringUp(ctx context.Context, creds Credentials) error
	IsLinkUp() bool
	// WaitForDisconnect returns when the link goes down.
	WaitForDisconnect(ctx context.Context) error
}

// CredentialStore provides stored credentials.
type CredentialStore interface {
	Fetch(nvs.Key) (string, bool, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Manager runs the connection state machine. Only one attempt is in flight
// at any time.
type Manager struct {
	Network      Network
	Store        CredentialStore
	Display      *display.Mailbox
	Backoff      time.Duration
	PollInterval time.Duration
	Sleep        SleepFunc

	lock      sync.RWMutex
	state     State
	attempts  int
	lastErr   error
	readyCh   chan struct{}
	readyOnce sync.Once
	changedCh chan struct{}
}

// NewManager creates a Manager.
func NewManager(network Network, store CredentialStore, disp *display.Mailbox) *Manager {
	return &Manager{
		Network:      network,
		Store:        store,
		Display:      disp,
		Backoff:      DefaultBackoff,
		PollInterval: DefaultPollInterval,
		Sleep:        Sleep,
		readyCh:      make(chan struct{}),
		changedCh:    make(chan struct{}, 1),
	}
}

// Name implements framework.Named.
func (m *Manager) Name() string {
	return "connectivity"
}

// State returns the current state.
func (m *Manager) State() State {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.state
}

// Attempts returns the number of connection attempts made.
func (m *Manager) Attempts() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.attempts
}

// LastError returns the error of the last failed attempt.
func (m *Manager) LastError() error {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.lastErr
}

// Ready is closed the first time the link is up.
func (m *Manager) Ready() <-chan struct{} {
	return m.readyCh
}

// IsReady indicates the link is up now.
func (m *Manager) IsReady() bool {
	return m.State() == Connected
}

// CredentialsChanged wakes up the manager waiting for credentials.
// It never blocks.
func (m *Manager) CredentialsChanged() {
	select {
	case m.changedCh <- struct{}{}:
	default:
	}
}

func (m *Manager) setState(s State) {
	m.lock.Lock()
	prev := m.state
	m.state = s
	m.lock.Unlock()
	if prev == s {
		return
	}
	glog.Infof("connectivity: %s -> %s", prev, s)
	if s == Connected {
		m.readyOnce.Do(func() { close(m.readyCh) })
	}
	if m.Display != nil {
		if !m.Display.TrySend(display.Status("WiFi %s", s)) {
			glog.Warning("connectivity: display mailbox full, status dropped")
		}
	}
}

// Start implements framework.Starter, it starts the network controller once.
func (m *Manager) Start(context.Context) error {
	m.setState(Initializing)
	if m.Network.Started() {
		return nil
	}
	return m.Network.Start()
}

func (m *Manager) credentials() (creds Credentials, err error) {
	var ok bool
	if creds.SSID, ok, err = m.Store.Fetch(nvs.WifiSsid); err != nil {
		return
	}
	if !ok || creds.SSID == "" {
		return creds, ErrMissingCredentials
	}
	if creds.Password, ok, err = m.Store.Fetch(nvs.WifiPassword); err != nil {
		return
	}
	if !ok {
		return creds, ErrMissingCredentials
	}
	return
}

func (m *Manager) backoff(ctx context.Context) error {
	glog.V(1).Infof("connectivity: retry in %s", m.Backoff)
	return m.Sleep(ctx, m.Backoff)
}

func (m *Manager) waitForCredentials(ctx context.Context) error {
	m.setState(WaitingForCredentials)
	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	polled := make(chan error, 1)
	go func() {
		polled <- m.Sleep(pollCtx, m.PollInterval)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.changedCh:
	case <-polled:
	}
	return nil
}

// connect makes one attempt, returns nil when the link is up.
func (m *Manager) connect(ctx context.Context) error {
	creds, err := m.credentials()
	if errors.Is(err, ErrMissingCredentials) {
		return err
	}
	m.setState(Connecting)
	m.lock.Lock()
	m.attempts++
	attempt := m.attempts
	m.lock.Unlock()
	if err == nil {
		err = m.Network.BringUp(ctx, creds)
	}
	if err != nil {
		aerr := &AttemptError{Attempt: attempt, Err: err}
		m.lock.Lock()
		m.lastErr = aerr
		m.lock.Unlock()
		return aerr
	}
	glog.Infof("connectivity: connected to %q on attempt %d", creds.SSID, attempt)
	return nil
}

// Run implements framework.Runnable.
func (m *Manager) Run(ctx context.Context) error {
	if m.State() == Idle {
		if err := m.Start(ctx); err != nil {
			return err
		}
	}
	defer m.setState(Idle)
	for {
		err := m.connect(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		switch {
		case errors.Is(err, ErrMissingCredentials):
			glog.Warning("connectivity: no credentials stored, waiting for provisioning")
			if err := m.waitForCredentials(ctx); err != nil {
				return err
			}
			continue
		case err != nil:
			glog.Warningf("connectivity: %v", err)
		default:
			m.setState(Connected)
			err := m.Network.WaitForDisconnect(ctx)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				glog.Warningf("connectivity: link down: %v", err)
			} else {
				glog.Warning("connectivity: link down")
			}
			m.setState(Connecting)
		}
		if err := m.backoff(ctx); err != nil {
			return err
		}
	}
}
