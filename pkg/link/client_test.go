package link

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/elx/pkg/msgs"
)

type clientTestEnv struct {
	t      *testing.T
	client *Client
	device *Link
}

func newClientTestEnv(t *testing.T) *clientTestEnv {
	hostConn, deviceConn := net.Pipe()
	env := &clientTestEnv{
		t:      t,
		client: NewClient(New(hostConn)),
		device: New(deviceConn),
	}
	env.device.Name = "device"
	env.device.Handler = HandleMessageFunc(func(ctx context.Context, msg msgs.SerializableMessage) {
		var reply msgs.SerializableMessage = msgs.NewCommandOK()
		if cmd, ok := msg.(*msgs.DisplayCommand); ok && cmd.Text == "fail" {
			reply = msgs.NewCommandErrFromMsg("display busy")
		}
		if err := env.device.Send(reply); err != nil {
			t.Error(err)
		}
	})
	ctx, cancel := context.WithCancel(context.Background())
	go env.device.Run(ctx)
	go env.client.Run(ctx)
	t.Cleanup(func() {
		cancel()
		hostConn.Close()
		deviceConn.Close()
	})
	return env
}

func (e *clientTestEnv) wait(cmd *Command) Result {
	select {
	case r := <-cmd.ResultChan():
		return r
	case <-time.After(time.Second):
		e.t.Fatalf("no result for %v", cmd.Request)
	}
	return Result{}
}

func TestClientReplyOrder(t *testing.T) {
	env := newClientTestEnv(t)
	cmds := []*Command{
		env.client.Do(&msgs.SetApiKey{Provider: msgs.ProviderFingrid, Key: "A"}),
		env.client.Do(&msgs.DisplayCommand{Text: "fail"}),
		env.client.Do(&msgs.SetWifiCredentials{SSID: "net", Password: "pw"}),
	}
	r := env.wait(cmds[0])
	require.NoError(t, r.Err)
	require.Equal(t, msgs.NewCommandOK(), r.Reply)

	r = env.wait(cmds[1])
	var cmdErr *msgs.CommandErr
	require.ErrorAs(t, r.Err, &cmdErr)
	require.Equal(t, "display busy", cmdErr.Reason)

	r = env.wait(cmds[2])
	require.NoError(t, r.Err)
	require.Zero(t, env.client.Pending())
}

func TestClientInvalidCommand(t *testing.T) {
	env := newClientTestEnv(t)
	cmd := env.client.Do(&msgs.DisplayCommand{Text: string(make([]byte, msgs.MaxStringLen+1))})
	r := env.wait(cmd)
	require.ErrorIs(t, r.Err, msgs.ErrFieldTooLong)
	require.Zero(t, env.client.Pending())
}

func TestClientPendingFailOnClose(t *testing.T) {
	hostConn, deviceConn := net.Pipe()
	defer deviceConn.Close()
	client := NewClient(New(hostConn))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- client.Run(ctx)
	}()
	// drain what the client writes, never reply.
	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := deviceConn.Read(buf); err != nil {
				return
			}
		}
	}()
	cmd := client.Do(&msgs.DisplayCommand{Text: "hi"})
	cancel()
	defer hostConn.Close()
	_, err := cmd.Wait(context.Background())
	require.ErrorIs(t, err, ErrLinkClosed)
	require.ErrorIs(t, <-done, context.Canceled)
}
