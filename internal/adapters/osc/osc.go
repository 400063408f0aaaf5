// Package osc sends chat lines to an OSC chatbox and listens for inbound OSC
// messages.
package osc

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/hypebeast/go-osc/osc"

	"github.com/bft-labs/obsrelay/internal/ports"
)

// ChatboxAddress is the OSC address chat lines are sent to.
const ChatboxAddress = "/chatbox/input"

// ChatClient implements ports.ChatSender over OSC.
type ChatClient struct {
	client *osc.Client
	target string
	logger ports.Logger
}

// NewChatClient creates a client sending to target ("host:port").
func NewChatClient(target string, logger ports.Logger) (*ChatClient, error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return nil, fmt.Errorf("osc target %q: %w", target, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("osc target %q: bad port: %w", target, err)
	}
	return &ChatClient{client: osc.NewClient(host, port), target: target, logger: logger}, nil
}

// SendChat sends text to the chatbox and submits it immediately.
func (c *ChatClient) SendChat(text string) error {
	msg := osc.NewMessage(ChatboxAddress)
	msg.Append(text)
	msg.Append(true)
	if err := c.client.Send(msg); err != nil {
		return fmt.Errorf("osc send to %s: %w", c.target, err)
	}
	c.logger.Debug("chatbox line sent", ports.String("target", c.target), ports.String("text", text))
	return nil
}

// Handler receives inbound OSC messages.
type Handler func(address string, args []any)

// Listener serves inbound OSC messages on a UDP socket.
type Listener struct {
	addr    string
	handler Handler
	logger  ports.Logger

	mu   sync.Mutex
	conn net.PacketConn
}

// NewListener creates a listener for addr. A nil handler logs each message.
func NewListener(addr string, handler Handler, logger ports.Logger) *Listener {
	l := &Listener{addr: addr, handler: handler, logger: logger}
	if l.handler == nil {
		l.handler = func(address string, args []any) {
			logger.Info("osc message", ports.String("address", address), ports.Any("args", args))
		}
	}
	return l
}

// Listen binds the socket and returns the bound address.
func (l *Listener) Listen() (net.Addr, error) {
	conn, err := net.ListenPacket("udp", l.addr)
	if err != nil {
		return nil, fmt.Errorf("osc listen %s: %w", l.addr, err)
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	l.logger.Info("osc listener ready", ports.String("address", conn.LocalAddr().String()))
	return conn.LocalAddr(), nil
}

// Serve dispatches messages until Close. Listen must be called first.
func (l *Listener) Serve() error {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn == nil {
		return errors.New("osc listener not bound")
	}

	d := osc.NewStandardDispatcher()
	if err := d.AddMsgHandler("*", func(msg *osc.Message) {
		l.handler(msg.Address, msg.Arguments)
	}); err != nil {
		return err
	}
	server := &osc.Server{Addr: l.addr, Dispatcher: d}
	err := server.Serve(conn)
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Close stops Serve.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	return err
}
