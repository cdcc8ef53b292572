package app

import (
	"context"

	"go.uber.org/zap"
)

// NetworkClient holds a connection that is opened once dependencies are set
// and closed when the container stops.
type NetworkClient struct {
	url       string
	log       *zap.Logger
	connected bool
}

func NewNetworkClient(url string, log *zap.Logger) *NetworkClient {
	log.Debug("network client constructed", zap.String("url", url))
	return &NetworkClient{url: url, log: log}
}

func (c *NetworkClient) URL() string     { return c.url }
func (c *NetworkClient) Connected() bool { return c.connected }

func (c *NetworkClient) connect() {
	c.connected = true
	c.log.Info("connect", zap.String("url", c.url))
}

// Call sends message to the connected server.
func (c *NetworkClient) Call(message string) {
	c.log.Info("call", zap.String("url", c.url), zap.String("message", message))
}

func (c *NetworkClient) disconnect() {
	c.connected = false
	c.log.Info("close", zap.String("url", c.url))
}

// Init connects and sends the greeting message.
func (c *NetworkClient) Init(context.Context) error {
	c.connect()
	c.Call("initial connection message")
	return nil
}

// Close disconnects.
func (c *NetworkClient) Close() error {
	c.disconnect()
	return nil
}
