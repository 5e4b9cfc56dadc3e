package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/robotalks/elx/pkg/connectivity"
)

var (
	// ErrNotStarted indicates BringUp is called before Start.
	ErrNotStarted = errors.New("network not started")
	// ErrLinkDown indicates the session is not connected.
	ErrLinkDown = errors.New("link down")
)

// DefaultConnectTimeout bounds a single connect attempt.
const DefaultConnectTimeout = 10 * time.Second

// Network brings up an MQTT session as the device network link. The SSID
// and password are presented as the session username and password.
type Network struct {
	BrokerURL      string
	ClientID       string
	ConnectTimeout time.Duration

	// WillTopic is retained with WillPayload by the broker when the
	// session is lost, relative to the topic prefix.
	WillTopic   string
	WillPayload []byte

	// OnConnect is called with the new connected Queue.
	OnConnect func(*Queue)

	lock    sync.RWMutex
	started bool
	queue   *Queue
	lostCh  chan struct{}
}

// NewNetwork creates a Network for the broker URL.
func NewNetwork(brokerURL, clientID string) *Network {
	return &Network{
		BrokerURL:      brokerURL,
		ClientID:       clientID,
		ConnectTimeout: DefaultConnectTimeout,
	}
}

// Start implements connectivity.Network.
func (n *Network) Start() error {
	if _, _, err := ClientOptionsFromURL(n.BrokerURL); err != nil {
		return fmt.Errorf("broker url %q: %w", n.BrokerURL, err)
	}
	n.lock.Lock()
	n.started = true
	n.lock.Unlock()
	return nil
}

// Started implements connectivity.Network.
func (n *Network) Started() bool {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return n.started
}

// Queue returns the Queue of the current session, nil if never connected.
func (n *Network) Queue() *Queue {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return n.queue
}

func (n *Network) options(creds connectivity.Credentials) (*paho.ClientOptions, string, error) {
	opts, prefix, err := ClientOptionsFromURL(n.BrokerURL)
	if err != nil {
		return nil, "", err
	}
	opts.SetUsername(creds.SSID)
	opts.SetPassword(creds.Password)
	if n.ClientID != "" {
		opts.SetClientID(n.ClientID)
	}
	if n.WillTopic != "" {
		opts.SetBinaryWill(prefix+n.WillTopic, n.WillPayload, 1, true)
	}
	if n.ConnectTimeout > 0 {
		opts.SetConnectTimeout(n.ConnectTimeout)
	}
	return opts, prefix, nil
}

// BringUp implements connectivity.Network.
func (n *Network) BringUp(ctx context.Context, creds connectivity.Credentials) error {
	if !n.Started() {
		return ErrNotStarted
	}
	opts, prefix, err := n.options(creds)
	if err != nil {
		return err
	}
	lostCh := make(chan struct{})
	var lostOnce sync.Once
	q := NewQueue(opts, prefix)
	q.OnDisconnect = func(*Queue) {
		lostOnce.Do(func() { close(lostCh) })
	}

	n.lock.Lock()
	if prev := n.queue; prev != nil {
		prev.Close()
	}
	n.queue, n.lostCh = q, lostCh
	n.lock.Unlock()

	glog.Infof("mqtt: connecting %s as %q", n.BrokerURL, creds.SSID)
	token := q.Connect()
	if err := waitToken(ctx, token); err != nil {
		q.Close()
		return err
	}
	if h := n.OnConnect; h != nil {
		h(q)
	}
	return nil
}

func waitToken(ctx context.Context, token paho.Token) error {
	doneCh := make(chan struct{})
	go func() {
		token.Wait()
		close(doneCh)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-doneCh:
		return token.Error()
	}
}

// IsLinkUp implements connectivity.Network.
func (n *Network) IsLinkUp() bool {
	q := n.Queue()
	return q != nil && q.IsConnected()
}

// WaitForDisconnect implements connectivity.Network.
func (n *Network) WaitForDisconnect(ctx context.Context) error {
	n.lock.RLock()
	q, lostCh := n.queue, n.lostCh
	n.lock.RUnlock()
	if q == nil || !q.IsConnected() {
		return ErrLinkDown
	}
	select {
	case <-ctx.Done():
		q.Close()
		return ctx.Err()
	case <-lostCh:
		return nil
	}
}

// Close disconnects the current session.
func (n *Network) Close() error {
	if q := n.Queue(); q != nil {
		return q.Close()
	}
	return nil
}
