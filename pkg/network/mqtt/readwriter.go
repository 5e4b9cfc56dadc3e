package mqtt

import (
	"io"
	"sync"
)

// Topics of the byte link between host and device.
const (
	RxTopicSuffix = "/rx"
	TxTopicSuffix = "/tx"
)

// ReadWriter carries link packets over a pair of topics.
type ReadWriter struct {
	Queue    *Queue
	SubTopic string
	PubTopic string

	packetCh  chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
	sub       *Subscription
}

// NewPacketReadWriter creates the ReadWriter.
func NewPacketReadWriter(q *Queue) *ReadWriter {
	return &ReadWriter{
		Queue:    q,
		packetCh: make(chan []byte, 16),
		closeCh:  make(chan struct{}),
	}
}

// WithTopics specifies the topics and subscribes.
func (p *ReadWriter) WithTopics(sub, pub string) *ReadWriter {
	p.SubTopic, p.PubTopic = sub, pub
	p.sub = p.Queue.Sub(p.SubTopic, p.handleMsg)
	return p
}

// ForHost uses the topics of the host end:
// SubTopic = device/tx
// PubTopic = device/rx
func (p *ReadWriter) ForHost(deviceID string) *ReadWriter {
	return p.WithTopics(deviceID+TxTopicSuffix, deviceID+RxTopicSuffix)
}

// ForDevice uses the topics of the device end:
// SubTopic = device/rx
// PubTopic = device/tx
func (p *ReadWriter) ForDevice(deviceID string) *ReadWriter {
	return p.WithTopics(deviceID+RxTopicSuffix, deviceID+TxTopicSuffix)
}

// ReadPacket implements transport.PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.closeCh:
		return nil, io.EOF
	}
}

// WritePacket implements transport.PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Queue.PubWith(p.PubTopic, pkt, 1, false)
	token.Wait()
	return token.Error()
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closeCh)
		if p.sub != nil {
			err = p.sub.Close()
		}
	})
	return err
}

func (p *ReadWriter) handleMsg(_ string, payload []byte) {
	pkt := append([]byte(nil), payload...)
	select {
	case p.packetCh <- pkt:
	case <-p.closeCh:
	}
}
