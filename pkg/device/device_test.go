package device

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/elx/pkg/connectivity"
	"github.com/robotalks/elx/pkg/display"
	"github.com/robotalks/elx/pkg/link"
	"github.com/robotalks/elx/pkg/msgs"
	"github.com/robotalks/elx/pkg/nvs"
)

func TestConfigLoadFileWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "elxd.toml")
	conf := NewConfig()
	conf.DeviceID = "dev1"
	require.NoError(t, conf.LoadFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `device_id = "dev1"`)
	require.Contains(t, string(data), `backoff = "3s"`)

	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		`device_id = "dev2"`,
		`backoff = "250ms"`,
		`[flash]`,
		`image = "other.bin"`,
	}, "\n")), 0644))
	loaded := NewConfig()
	require.NoError(t, loaded.LoadFile(path))
	require.Equal(t, "dev2", loaded.DeviceID)
	require.Equal(t, 250*time.Millisecond, loaded.Backoff.Duration)
	require.Equal(t, "other.bin", loaded.Flash.Image)
	require.Equal(t, nvs.DefaultRange, loaded.Flash.Range())
}

func TestConfigValidate(t *testing.T) {
	conf := NewConfig()
	conf.DeviceID = "dev1"
	require.NoError(t, conf.Validate())
	invalid := []func(*Config){
		func(c *Config) { c.DeviceID = "" },
		func(c *Config) { c.Link = "" },
		func(c *Config) { c.Flash.Image = "" },
		func(c *Config) { c.Backoff.Duration = 0 },
		func(c *Config) { c.Timezone = "Mars/Olympus" },
	}
	for n, fn := range invalid {
		c := *conf
		fn(&c)
		require.Error(t, c.Validate(), "case %d", n)
	}
}

type fakeNetwork struct {
	lock    sync.Mutex
	started bool
	upCh    chan connectivity.Credentials
}

func (n *fakeNetwork) Start() error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.started = true
	return nil
}

func (n *fakeNetwork) Started() bool {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.started
}

func (n *fakeNetwork) BringUp(ctx context.Context, creds connectivity.Credentials) error {
	n.upCh <- creds
	return nil
}

func (n *fakeNetwork) IsLinkUp() bool { return true }

func (n *fakeNetwork) WaitForDisconnect(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

type screen struct {
	lock   sync.Mutex
	states []display.State
}

func (s *screen) Render(st display.State) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.states = append(s.states, st)
	return nil
}

func (s *screen) hasStatus(text string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, st := range s.states {
		if st.Status == text {
			return true
		}
	}
	return false
}

type deviceTestEnv struct {
	t       *testing.T
	device  *Device
	network *fakeNetwork
	screen  *screen
	client  *link.Client
}

func newDeviceTestEnv(t *testing.T) *deviceTestEnv {
	conf := NewConfig()
	conf.DeviceID = "dev1"
	conf.Link = ""
	conf.Backoff.Duration = 10 * time.Millisecond
	conf.PollInterval.Duration = time.Hour
	flash := nvs.MustNewMemFlash(nvs.DefaultRange.End(), nvs.DefaultWordSize, nvs.DefaultPageSize)
	env := &deviceTestEnv{
		t:       t,
		network: &fakeNetwork{upCh: make(chan connectivity.Credentials, 4)},
		screen:  &screen{},
	}
	env.device = Assemble(conf, flash, env.network, env.screen)

	hostConn, deviceConn := net.Pipe()
	env.client = link.NewClient(link.New(hostConn))
	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- env.device.Run(ctx) }()
	go env.device.ServeStream(ctx, deviceConn)
	go env.client.Run(ctx)
	t.Cleanup(func() {
		cancel()
		hostConn.Close()
		deviceConn.Close()
		select {
		case err := <-runErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("device stopped: %v", err)
			}
		case <-time.After(time.Second):
			t.Error("device not stopped")
		}
		env.device.Close()
	})
	return env
}

func (e *deviceTestEnv) do(msg msgs.SerializableMessage) (msgs.SerializableMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return e.client.Do(msg).Wait(ctx)
}

func TestDeviceProvisioning(t *testing.T) {
	env := newDeviceTestEnv(t)
	require.Eventually(t, func() bool {
		return env.device.Connectivity.State() == connectivity.WaitingForCredentials
	}, time.Second, 5*time.Millisecond)

	reply, err := env.do(&msgs.SetApiKey{Provider: msgs.ProviderEntsoe, Key: "k1"})
	require.NoError(t, err)
	require.Equal(t, msgs.NewCommandOK(), reply)
	val, ok, err := env.device.Storage.Fetch(nvs.EntsoeApiKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "k1", val)

	_, err = env.do(&msgs.SetWifiCredentials{SSID: "home", Password: "pw"})
	require.NoError(t, err)
	select {
	case creds := <-env.network.upCh:
		require.Equal(t, connectivity.Credentials{SSID: "home", Password: "pw"}, creds)
	case <-time.After(time.Second):
		t.Fatal("network not brought up")
	}
	select {
	case <-env.device.Connectivity.Ready():
	case <-time.After(time.Second):
		t.Fatal("not ready")
	}

	_, err = env.do(&msgs.DisplayCommand{Text: "12.3 c/kWh"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return env.screen.hasStatus("12.3 c/kWh")
	}, time.Second, 5*time.Millisecond)
}

func TestDeviceRejectsInvalidCommand(t *testing.T) {
	env := newDeviceTestEnv(t)
	err := env.client.Link().Send(&msgs.DisplayCommand{Text: strings.Repeat("x", msgs.MaxStringLen+1)})
	require.ErrorIs(t, err, msgs.ErrFieldTooLong)
	_, err = env.do(&msgs.DisplayCommand{Text: "ok"})
	require.NoError(t, err)
}
