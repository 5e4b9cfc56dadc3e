package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/elx/pkg/framework"
	"github.com/robotalks/elx/pkg/network/mqtt"
)

var (
	// ErrUnsupportedScheme indicates the URL scheme has no transport.
	ErrUnsupportedScheme = errors.New("unsupported scheme")
)

// Endpoint is a parsed transport URL.
type Endpoint struct {
	Scheme   string
	URL      *url.URL
	Port     string // serial device path
	BaudRate uint
	DeviceID string // mqtt device id
}

// ParseEndpoint parses a transport URL:
//
//	serial:///dev/ttyUSB0?baud=115200
//	tcp://host:port
//	ws://host:port/path
//	mqtt://broker:1883/prefix/?device=id
func ParseEndpoint(rawURL string) (*Endpoint, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	ep := &Endpoint{Scheme: u.Scheme, URL: u}
	switch u.Scheme {
	case "serial":
		ep.Port = u.Path
		if ep.Port == "" {
			ep.Port = u.Opaque
		}
		if ep.Port == "" {
			return nil, fmt.Errorf("%s: missing port", rawURL)
		}
		ep.BaudRate = DefaultBaudRate
		if baud := u.Query().Get("baud"); baud != "" {
			n, err := strconv.ParseUint(baud, 10, 32)
			if err != nil || n == 0 {
				return nil, fmt.Errorf("%s: invalid baud %q", rawURL, baud)
			}
			ep.BaudRate = uint(n)
		}
	case "tcp", "ws", "wss":
		if u.Host == "" {
			return nil, fmt.Errorf("%s: missing host", rawURL)
		}
	case "mqtt", "mqtts":
		if ep.DeviceID = u.Query().Get("device"); ep.DeviceID == "" {
			return nil, fmt.Errorf("%s: missing device", rawURL)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return ep, nil
}

// Open opens the host end of the byte stream at rawURL.
func Open(rawURL string) (io.ReadWriteCloser, error) {
	ep, err := ParseEndpoint(rawURL)
	if err != nil {
		return nil, err
	}
	return ep.Open()
}

// Open opens the host end of the byte stream.
func (ep *Endpoint) Open() (io.ReadWriteCloser, error) {
	switch ep.Scheme {
	case "serial":
		return OpenSerial(ep.Port, ep.BaudRate)
	case "tcp":
		return net.Dial("tcp", ep.URL.Host)
	case "ws", "wss":
		origin := "http://" + ep.URL.Host
		if ep.Scheme == "wss" {
			origin = "https://" + ep.URL.Host
		}
		return DialWebSocket(ep.URL.String(), origin)
	}
	return ep.openMQTT(false)
}

func (ep *Endpoint) openMQTT(device bool) (io.ReadWriteCloser, error) {
	u := *ep.URL
	q := u.Query()
	q.Del("device")
	u.RawQuery = q.Encode()
	queue, err := mqtt.NewQueueFromURL(u.String())
	if err != nil {
		return nil, err
	}
	token := queue.Connect()
	if token.Wait(); token.Error() != nil {
		return nil, token.Error()
	}
	rw := mqtt.NewPacketReadWriter(queue)
	if device {
		rw.ForDevice(ep.DeviceID)
	} else {
		rw.ForHost(ep.DeviceID)
	}
	return NewStream(rw, closers{rw, queue}), nil
}

type closers []io.Closer

func (c closers) Close() error {
	var firstErr error
	for _, closer := range c {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ServeFunc serves one stream until it's exhausted.
type ServeFunc func(io.ReadWriteCloser)

// Serve accepts device end streams at rawURL and serves them one at a time
// until ctx is done. A serial port or an MQTT session is a single stream.
func Serve(ctx context.Context, rawURL string, serve ServeFunc) error {
	ep, err := ParseEndpoint(rawURL)
	if err != nil {
		return err
	}
	switch ep.Scheme {
	case "tcp":
		return serveTCP(ctx, ep.URL.Host, serve)
	case "ws":
		path := ep.URL.Path
		if path == "" {
			path = "/"
		}
		return ServeWebSocket(ctx, ep.URL.Host, path, serve)
	case "serial":
		stream, err := OpenSerial(ep.Port, ep.BaudRate)
		if err != nil {
			return err
		}
		return serveOne(ctx, stream, serve)
	case "mqtt", "mqtts":
		stream, err := ep.openMQTT(true)
		if err != nil {
			return err
		}
		return serveOne(ctx, stream, serve)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedScheme, ep.Scheme)
}

func serveOne(ctx context.Context, stream io.ReadWriteCloser, serve ServeFunc) error {
	return framework.RunWithContextCloser(ctx, stream, func() error {
		serve(stream)
		return nil
	})
}

func serveTCP(ctx context.Context, addr string, serve ServeFunc) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	glog.Infof("transport: listening tcp %s", ln.Addr())
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		glog.Infof("transport: accepted %s", conn.RemoteAddr())
		if err := serveOne(ctx, conn, serve); err != nil {
			return err
		}
	}
}

// ServeWebSocket serves websocket connections on addr at path, one at a
// time. Connections arriving while one is served wait for it.
func ServeWebSocket(ctx context.Context, addr, path string, serve ServeFunc) error {
	var lock sync.Mutex
	mux := http.NewServeMux()
	mux.Handle(path, WebSocketHandler(func(stream io.ReadWriteCloser) {
		lock.Lock()
		defer lock.Unlock()
		serveOne(ctx, stream, serve)
	}))
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		server.Close()
	}()
	glog.Infof("transport: listening ws://%s%s", addr, path)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
