package device

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/elx/pkg/broker"
	"github.com/robotalks/elx/pkg/connectivity"
	"github.com/robotalks/elx/pkg/display"
	"github.com/robotalks/elx/pkg/framework"
	"github.com/robotalks/elx/pkg/link"
	"github.com/robotalks/elx/pkg/network/mqtt"
	"github.com/robotalks/elx/pkg/nvs"
	"github.com/robotalks/elx/pkg/transport"
)

// Device is the assembled set of device tasks.
type Device struct {
	Config       *Config
	Storage      *nvs.Handle
	Inbox        *broker.Mailbox
	Outbox       *broker.Mailbox
	Display      *display.Mailbox
	Screen       *display.Task
	Clock        *display.Clock
	Broker       *broker.Broker
	Connectivity *connectivity.Manager

	store   *nvs.Store
	closers []io.Closer
}

// New opens the flash image, the MQTT network and assembles the device.
// Screen lines are written to stdout.
func New(conf *Config) (*Device, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	fc := conf.Flash
	flash, err := nvs.OpenFileFlash(fc.Image, fc.Size, fc.WordSize, fc.PageSize)
	if err != nil {
		return nil, fmt.Errorf("open flash %s: %w", fc.Image, err)
	}
	network := mqtt.NewNetwork(conf.MQTTBrokerURL, "elx:"+conf.DeviceID)
	status := mqtt.NewStatusPublisher(network, conf.DeviceID)
	d := Assemble(conf, flash, network, display.Renderers{&display.TextRenderer{Writer: os.Stdout}, status})
	d.closers = append(d.closers, network, flash)
	return d, nil
}

// MustNew creates Device and fails on error.
func (c *Config) MustNew() *Device {
	d, err := New(c)
	if err != nil {
		glog.Fatalln(err)
	}
	return d
}

// Assemble wires the tasks on flash and network. The storage range is
// taken from flash, so it panics if the range is already taken.
func Assemble(conf *Config, flash nvs.Flash, network connectivity.Network, renderer display.Renderer) *Device {
	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		glog.Warningf("timezone %q: %v, using UTC", conf.Timezone, err)
		loc = time.UTC
	}
	d := &Device{
		Config:  conf,
		Inbox:   broker.NewMailbox(),
		Outbox:  broker.NewMailbox(),
		Display: display.NewMailbox(),
	}
	d.store = nvs.Take(flash, conf.Flash.Range())
	d.Storage = nvs.NewHandle(d.store)
	d.Screen = display.NewTask(d.Display, renderer)
	d.Clock = display.NewClock(d.Display, loc)
	d.Connectivity = connectivity.NewManager(network, d.Storage, d.Display)
	if conf.Backoff.Duration > 0 {
		d.Connectivity.Backoff = conf.Backoff.Duration
	}
	if conf.PollInterval.Duration > 0 {
		d.Connectivity.PollInterval = conf.PollInterval.Duration
	}
	d.Broker = &broker.Broker{
		Inbox:         d.Inbox,
		Outbox:        d.Outbox,
		Store:         d.Storage,
		Display:       d.Display,
		OnCredentials: d.Connectivity.CredentialsChanged,
	}
	return d
}

// Runnables returns the device tasks, in start order.
func (d *Device) Runnables() []framework.Runnable {
	runners := []framework.Runnable{d.Screen, d.Clock, d.Broker, d.Connectivity}
	if d.Config.Link != "" {
		runners = append(runners, framework.NamedRun("link", framework.RunFunc(d.serveLink)))
	}
	return runners
}

// Run starts all tasks and waits until they stop.
func (d *Device) Run(ctx context.Context) error {
	runner := framework.NewRunnerWith(ctx)
	if err := runner.Start(d.Runnables()...); err != nil {
		return err
	}
	return runner.Wait()
}

func (d *Device) serveLink(ctx context.Context) error {
	return transport.Serve(ctx, d.Config.Link, func(stream io.ReadWriteCloser) {
		if err := d.ServeStream(ctx, stream); err != nil && ctx.Err() == nil {
			glog.Warningf("link: %v", err)
		}
	})
}

// ServeStream runs the serial task on one host byte stream until the
// stream ends.
func (d *Device) ServeStream(ctx context.Context, rw io.ReadWriter) error {
	l := link.New(rw)
	l.Name = "serial"
	err := broker.NewSerial(l, d.Inbox, d.Outbox).Run(ctx)
	stats := l.Stats()
	glog.Infof("link: closed, received %d, sent %d, dropped %d, recovered %d",
		stats.Received, stats.Sent, stats.Dropped, stats.Recovered)
	return err
}

// Close releases the storage range and closes the flash and the network.
func (d *Device) Close() error {
	d.store.Release()
	var firstErr error
	for _, c := range d.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
