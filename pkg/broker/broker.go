// Package broker dispatches commands received from the host.
package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/elx/pkg/display"
	"github.com/robotalks/elx/pkg/framework"
	"github.com/robotalks/elx/pkg/msgs"
	"github.com/robotalks/elx/pkg/nvs"
)

// ErrUnsupportedCommand indicates the message is not a known command.
var ErrUnsupportedCommand = errors.New("unsupported command")

// Mailbox carries messages between the serial task and the broker.
type Mailbox = framework.Mailbox[msgs.SerializableMessage]

// NewMailbox creates a message mailbox of default capacity.
func NewMailbox() *Mailbox {
	return framework.NewMailbox[msgs.SerializableMessage](framework.DefaultMailboxCapacity)
}

// KV is the persistent storage used by the broker.
type KV interface {
	Store(nvs.Key, string) error
}

// Broker handles one command at a time and replies exactly once per command.
type Broker struct {
	Inbox   *Mailbox
	Outbox  *Mailbox
	Store   KV
	Display *display.Mailbox
	// OnCredentials is called after wifi credentials are stored, must not
	// block.
	OnCredentials func()
}

// Name implements framework.Named.
func (b *Broker) Name() string {
	return "broker"
}

// Run implements framework.Runnable.
func (b *Broker) Run(ctx context.Context) error {
	for {
		msg, err := b.Inbox.Receive(ctx)
		if err != nil {
			return err
		}
		reply := b.Handle(ctx, msg)
		if err := b.Outbox.Send(ctx, reply); err != nil {
			return err
		}
	}
}

// Handle executes one command and returns the reply.
func (b *Broker) Handle(ctx context.Context, msg msgs.SerializableMessage) msgs.SerializableMessage {
	err := b.handle(ctx, msg)
	if err != nil {
		glog.Warningf("broker: %s failed: %v", msgName(msg), err)
		if nvs.IsKind(err, nvs.Corrupted) && b.Display != nil {
			if !b.Display.TrySend(display.Status("Storage corrupted")) {
				glog.Warning("broker: display mailbox full, status dropped")
			}
		}
		return msgs.NewCommandErr(err)
	}
	glog.V(1).Infof("broker: %s ok", msgName(msg))
	return msgs.NewCommandOK()
}

func (b *Broker) handle(ctx context.Context, msg msgs.SerializableMessage) error {
	switch m := msg.(type) {
	case *msgs.SetWifiCredentials:
		// the ssid is stored last, credentials are never complete
		// without the matching password.
		if err := b.Store.Store(nvs.WifiPassword, m.Password); err != nil {
			return err
		}
		if err := b.Store.Store(nvs.WifiSsid, m.SSID); err != nil {
			return err
		}
		if b.OnCredentials != nil {
			b.OnCredentials()
		}
		return nil
	case *msgs.SetApiKey:
		key, err := apiKeyOf(m.Provider)
		if err != nil {
			return err
		}
		return b.Store.Store(key, m.Key)
	case *msgs.DisplayCommand:
		if b.Display == nil {
			return errors.New("no display")
		}
		return b.Display.Send(ctx, display.StatusText{Text: m.Text})
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedCommand, msgName(msg))
}

func apiKeyOf(p msgs.Provider) (nvs.Key, error) {
	switch p {
	case msgs.ProviderFingrid:
		return nvs.FingridApiKey, nil
	case msgs.ProviderEntsoe:
		return nvs.EntsoeApiKey, nil
	}
	return 0, fmt.Errorf("%w: %d", msgs.ErrUnknownProvider, int32(p))
}

func msgName(msg msgs.SerializableMessage) string {
	return fmt.Sprintf("%T", msg)
}
