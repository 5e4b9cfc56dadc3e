package sh

import (
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/elx/pkg/link"
	"github.com/robotalks/elx/pkg/msgs"
)

type shellTestEnv struct {
	shell    *Shell
	received chan msgs.SerializableMessage
}

func newShellTestEnv(t *testing.T) *shellTestEnv {
	env := &shellTestEnv{received: make(chan msgs.SerializableMessage, 8)}
	ctx, cancel := context.WithCancel(context.Background())
	var conns []net.Conn
	conf := NewConfig()
	conf.Timeout = time.Second
	env.shell = New(conf)
	env.shell.Open = func(url string) (io.ReadWriteCloser, error) {
		hostConn, deviceConn := net.Pipe()
		conns = append(conns, hostConn, deviceConn)
		device := link.New(deviceConn)
		device.Handler = link.HandleMessageFunc(func(ctx context.Context, msg msgs.SerializableMessage) {
			env.received <- msg
			var reply msgs.SerializableMessage = msgs.NewCommandOK()
			if cmd, ok := msg.(*msgs.DisplayCommand); ok && cmd.Text == "fail" {
				reply = msgs.NewCommandErrFromMsg("rejected")
			}
			if err := device.Send(reply); err != nil {
				t.Error(err)
			}
		})
		go device.Run(ctx)
		return hostConn, nil
	}
	t.Cleanup(func() {
		env.shell.Disconnect()
		cancel()
		for _, c := range conns {
			c.Close()
		}
	})
	return env
}

func (e *shellTestEnv) next(t *testing.T) msgs.SerializableMessage {
	select {
	case msg := <-e.received:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no command received")
	}
	return nil
}

func TestShellNotConnected(t *testing.T) {
	env := newShellTestEnv(t)
	_, err := env.shell.Do(&msgs.DisplayCommand{Text: "x"})
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestShellCommands(t *testing.T) {
	env := newShellTestEnv(t)
	require.NoError(t, env.shell.Shell.Process("connect", "tcp://device:7070"))
	require.NotNil(t, env.shell.Conn)

	require.NoError(t, env.shell.Shell.Process("wifi", "home", "my", "secret"))
	require.Equal(t, &msgs.SetWifiCredentials{SSID: "home", Password: "my secret"}, env.next(t))

	require.NoError(t, env.shell.Shell.Process("apikey", "Fingrid", "k1"))
	require.Equal(t, &msgs.SetApiKey{Provider: msgs.ProviderFingrid, Key: "k1"}, env.next(t))

	require.NoError(t, env.shell.Shell.Process("display", "hello", "world"))
	require.Equal(t, &msgs.DisplayCommand{Text: "hello world"}, env.next(t))

	_, err := env.shell.Do(&msgs.DisplayCommand{Text: "fail"})
	var cmdErr *msgs.CommandErr
	require.ErrorAs(t, err, &cmdErr)
	require.Equal(t, "rejected", cmdErr.Reason)

	require.NoError(t, env.shell.Shell.Process("disconnect"))
	require.Nil(t, env.shell.Conn)
}

func TestFormatReply(t *testing.T) {
	env := newShellTestEnv(t)
	out, err := env.shell.FormatReply(msgs.NewCommandOK())
	require.NoError(t, err)
	require.Equal(t, "OK", out)
	out, err = env.shell.FormatReply(&msgs.CommandErr{Reason: "bad"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "CommandErr "), out)
	require.Contains(t, out, `reason:"bad"`)

	env.shell.OutputJSON = true
	out, err = env.shell.FormatReply(&msgs.CommandErr{Reason: "bad"})
	require.NoError(t, err)
	require.Equal(t, `{"reason":"bad"}`, out)
}
