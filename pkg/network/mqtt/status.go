package mqtt

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/elx/pkg/display"
)

// StatusReport is the retained payload on the status topic.
type StatusReport struct {
	Online     bool      `json:"online"`
	On         bool      `json:"on"`
	Status     string    `json:"status"`
	Background string    `json:"background"`
	Brightness uint8     `json:"brightness"`
	Time       time.Time `json:"time,omitempty"`
}

// StatusTopic returns the status topic of a device.
func StatusTopic(deviceID string) string {
	return deviceID + "/status"
}

// StatusPublisher is a display.Renderer mirroring the screen to the status
// topic of the device. Clock only updates are not published.
type StatusPublisher struct {
	Network  *Network
	DeviceID string

	lock    sync.Mutex
	report  *StatusReport
	payload []byte
}

// NewStatusPublisher creates a StatusPublisher and hooks it to the session
// events of network, including the offline will.
func NewStatusPublisher(network *Network, deviceID string) *StatusPublisher {
	p := &StatusPublisher{Network: network, DeviceID: deviceID}
	will, _ := json.Marshal(&StatusReport{Online: false})
	network.WillTopic, network.WillPayload = StatusTopic(deviceID), will
	onConnect := network.OnConnect
	network.OnConnect = func(q *Queue) {
		if onConnect != nil {
			onConnect(q)
		}
		p.flush(q)
	}
	return p
}

// Render implements display.Renderer.
func (p *StatusPublisher) Render(s display.State) error {
	report := &StatusReport{
		Online:     true,
		On:         s.On,
		Status:     s.Status,
		Background: s.Background.String(),
		Brightness: s.Brightness,
	}
	p.lock.Lock()
	if p.report != nil && *p.report == *report {
		p.lock.Unlock()
		return nil
	}
	p.report = report
	report.Time = s.Time
	payload, err := json.Marshal(report)
	if err != nil {
		p.lock.Unlock()
		return err
	}
	report.Time = time.Time{}
	p.payload = payload
	p.lock.Unlock()

	if q := p.Network.Queue(); q != nil && q.IsConnected() {
		p.publish(q, payload)
	}
	return nil
}

// Last returns the last payload rendered.
func (p *StatusPublisher) Last() []byte {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.payload
}

func (p *StatusPublisher) flush(q *Queue) {
	if payload := p.Last(); payload != nil {
		p.publish(q, payload)
	}
}

func (p *StatusPublisher) publish(q *Queue, payload []byte) {
	glog.V(2).Infof("PUB %q %s", StatusTopic(p.DeviceID), payload)
	q.PubWith(StatusTopic(p.DeviceID), payload, 1, true)
}
