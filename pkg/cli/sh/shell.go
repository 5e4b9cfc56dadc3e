// Package sh provides the host shell provisioning a device over its link.
package sh

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/elx/pkg/link"
	"github.com/robotalks/elx/pkg/msgs"
	"github.com/robotalks/elx/pkg/transport"
)

// ErrNotConnected indicates no device is connected.
var ErrNotConnected = errors.New("not connected")

// Config of the shell.
type Config struct {
	// LinkURL is connected on start if not empty.
	LinkURL string
	Timeout time.Duration
}

var defaultConfig = Config{
	Timeout: 2 * time.Second,
}

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&ConnectCmd,
		&DisconnectCmd,
		&WifiCmd,
		&ApiKeyCmd,
		&DisplayCmd,
		&StatsCmd,
	}
)

func init() {
	if val := os.Getenv("ELX_LINK"); val != "" {
		defaultConfig.LinkURL = val
	}
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.LinkURL, "link", defaultConfig.LinkURL, "Device link URL")
	flag.DurationVar(&defaultConfig.Timeout, "timeout", defaultConfig.Timeout, "Command timeout")
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Conn is a connected device link.
type Conn struct {
	URL    string
	Ctx    context.Context
	Cancel func()
	Stream io.ReadWriteCloser
	Client *link.Client
}

// Close disconnects.
func (c *Conn) Close() error {
	c.Cancel()
	return c.Stream.Close()
}

// Opener opens the byte stream of a URL.
type Opener func(url string) (io.ReadWriteCloser, error)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Config *Config
	Open   Opener
	Conn   *Conn
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

// New creates a new shell.
func New(conf *Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
		Open:   transport.Open,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Connect opens the link at url, replacing the current one.
func (s *Shell) Connect(url string) error {
	stream, err := s.Open(url)
	if err != nil {
		return err
	}
	conn := &Conn{URL: url, Stream: stream, Client: link.NewClient(link.New(stream))}
	conn.Client.Link().Name = url
	conn.Ctx, conn.Cancel = context.WithCancel(context.Background())
	s.Disconnect()
	s.Conn = conn
	go func() {
		if err := conn.Client.Run(conn.Ctx); err != nil && conn.Ctx.Err() == nil {
			glog.Warningf("link %s: %v", url, err)
		}
	}()
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", url))
	return nil
}

// Disconnect disconnects current device.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		s.Conn.Close()
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Do sends a command and waits for the reply.
func (s *Shell) Do(msg msgs.SerializableMessage) (msgs.SerializableMessage, error) {
	if s.Conn == nil {
		return nil, ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(s.Conn.Ctx, s.Config.Timeout)
	defer cancel()
	reply, err := s.Conn.Client.Do(msg).Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("command timeout")
	}
	return reply, err
}

// FormatReply formats a reply for display.
func (s *Shell) FormatReply(reply msgs.SerializableMessage) (string, error) {
	if s.OutputJSON {
		out, err := json.Marshal(reply)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	if _, ok := reply.(*msgs.CommandOK); ok {
		return "OK", nil
	}
	return fmt.Sprintf("%s %s", reflect.Indirect(reflect.ValueOf(reply)).Type().Name(), reply.String()), nil
}

// DoCommand runs a command and prints the result.
func DoCommand(c *ishell.Context, msg msgs.SerializableMessage) error {
	s := ShellFrom(c)
	reply, err := s.Do(msg)
	if err != nil {
		c.Err(err)
		return err
	}
	out, err := s.FormatReply(reply)
	if err != nil {
		c.Err(err)
		return err
	}
	c.Println(out)
	return nil
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if url := s.Config.LinkURL; url != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", url)
		}
		if err := s.Connect(url); err != nil {
			glog.Fatalf("connect %q failed: %v", url, err)
		}
	}
	defer s.Disconnect()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			glog.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	glog.Fatalln("command expected")
}

func usage(c *ishell.Context, n int) bool {
	if len(c.Args) < n {
		c.Err(fmt.Errorf("usage: %s %s", c.Cmd.Name, c.Cmd.Help))
		return false
	}
	return true
}

var (
	// ConnectCmd connects a device.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "URL",
		Func: func(c *ishell.Context) {
			if !usage(c, 1) {
				return
			}
			if err := ShellFrom(c).Connect(c.Args[0]); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current device.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// WifiCmd provisions wifi credentials.
	WifiCmd = ishell.Cmd{
		Name: "wifi",
		Help: "SSID PASSWORD",
		Func: func(c *ishell.Context) {
			if !usage(c, 1) {
				return
			}
			cmd := &msgs.SetWifiCredentials{SSID: c.Args[0]}
			if len(c.Args) > 1 {
				cmd.Password = strings.Join(c.Args[1:], " ")
			}
			DoCommand(c, cmd)
		},
	}

	// ApiKeyCmd provisions a price API key.
	ApiKeyCmd = ishell.Cmd{
		Name: "apikey",
		Help: "fingrid|entsoe KEY",
		Func: func(c *ishell.Context) {
			if !usage(c, 2) {
				return
			}
			provider, err := msgs.ParseProvider(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			DoCommand(c, &msgs.SetApiKey{Provider: provider, Key: c.Args[1]})
		},
	}

	// DisplayCmd shows a text on the device.
	DisplayCmd = ishell.Cmd{
		Name: "display",
		Help: "TEXT",
		Func: func(c *ishell.Context) {
			if !usage(c, 1) {
				return
			}
			DoCommand(c, &msgs.DisplayCommand{Text: strings.Join(c.Args, " ")})
		},
	}

	// StatsCmd prints link counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if s.Conn == nil {
				c.Err(ErrNotConnected)
				return
			}
			stats := s.Conn.Client.Link().Stats()
			if s.OutputJSON {
				out, _ := json.Marshal(&stats)
				c.Println(string(out))
				return
			}
			c.Printf("received %d sent %d dropped %d overflows %d recovered %d\n",
				stats.Received, stats.Sent, stats.Dropped, stats.Overflows, stats.Recovered)
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(NewConfig()).Run(flag.Args()...)
}
