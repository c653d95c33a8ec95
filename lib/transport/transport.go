// Copyright 2026 The Updraft Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport maintains the agent's data-plane connection: a
// TLS MQTT subscription to the sensor topic. The connection is
// independent of the update cycle but shares the process lifetime —
// when the supervisor exec()s a new version, the broker sees this
// client drop and the new process image connects fresh.
//
// Connection establishment retries a bounded number of times and then
// gives up; a broker that cannot be reached at startup is a fatal
// configuration problem, not something to retry forever.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/updraft-systems/updraft/lib/clock"
)

// connectAttempts is how many times Connect tries to reach the broker
// before giving up.
const connectAttempts = 5

// connectRetryDelay is the fixed pause between connection attempts.
const connectRetryDelay = 5 * time.Second

// Config describes the broker connection.
type Config struct {
	// Host and Port locate the broker. The connection always uses TLS.
	Host string
	Port int

	// Topic is the sensor data topic to subscribe to.
	Topic string

	// Username and Password authenticate against the broker.
	Username string
	Password string

	// CACertPath is the PEM file holding the CA that signed the
	// broker's certificate. Verification is mandatory.
	CACertPath string

	// ClientID identifies this agent to the broker.
	ClientID string
}

// Handler receives each message published on the subscribed topic.
type Handler func(topic string, payload []byte)

// Client is a connected MQTT subscription.
type Client struct {
	client mqtt.Client
	logger *slog.Logger
}

// Connect establishes the broker connection and subscribes to the
// configured topic, retrying up to connectAttempts times with a fixed
// delay. The returned error after the final attempt is fatal to the
// agent: no update loop should start without a data plane.
func Connect(ctx context.Context, config Config, handler Handler, clk clock.Clock, logger *slog.Logger) (*Client, error) {
	tlsConfig, err := newTLSConfig(config.CACertPath)
	if err != nil {
		return nil, err
	}

	options := mqtt.NewClientOptions().
		AddBroker(brokerURL(config.Host, config.Port)).
		SetClientID(config.ClientID).
		SetUsername(config.Username).
		SetPassword(config.Password).
		SetTLSConfig(tlsConfig).
		SetAutoReconnect(false).
		SetCleanSession(true)

	options.SetOnConnectHandler(func(connected mqtt.Client) {
		logger.Info("connected to broker", "host", config.Host, "port", config.Port)
		token := connected.Subscribe(config.Topic, 0, func(_ mqtt.Client, message mqtt.Message) {
			handler(message.Topic(), message.Payload())
		})
		token.Wait()
		if err := token.Error(); err != nil {
			logger.Error("subscribing to sensor topic", "topic", config.Topic, "error", err)
			return
		}
		logger.Info("subscribed to sensor topic", "topic", config.Topic)
	})
	options.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Error("broker connection lost", "error", err)
	})

	client := mqtt.NewClient(options)

	var lastError error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		token := client.Connect()
		token.Wait()
		if lastError = token.Error(); lastError == nil {
			return &Client{client: client, logger: logger}, nil
		}
		logger.Error("broker connection attempt failed",
			"attempt", attempt,
			"max_attempts", connectAttempts,
			"error", lastError,
		)
		if attempt == connectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-clk.After(connectRetryDelay):
		}
	}
	return nil, fmt.Errorf("connecting to broker %s:%d after %d attempts: %w",
		config.Host, config.Port, connectAttempts, lastError)
}

// Close disconnects from the broker, allowing a short grace period for
// in-flight acknowledgements.
func (c *Client) Close() {
	c.client.Disconnect(250)
	c.logger.Info("disconnected from broker")
}

// brokerURL formats the TLS broker address for paho.
func brokerURL(host string, port int) string {
	return fmt.Sprintf("ssl://%s:%d", host, port)
}

// newTLSConfig builds a TLS configuration that verifies the broker
// against the CA certificate at caCertPath.
func newTLSConfig(caCertPath string) (*tls.Config, error) {
	pem, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("reading CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("CA certificate %s contains no usable certificates", caCertPath)
	}
	return &tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	}, nil
}
