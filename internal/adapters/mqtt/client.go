package mqtt

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/eclipse/paho.golang/paho"
	"go.uber.org/zap"
)

// connect dials the broker and completes the MQTT handshake, retrying with
// exponential backoff. A refused CONNACK is not retried.
func connect(ctx context.Context, cfg Config, clientID string, log *zap.Logger, onPublish func(paho.PublishReceived) (bool, error)) (*paho.Client, error) {
	return backoff.Retry(ctx, func() (*paho.Client, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", cfg.Broker)
		if err != nil {
			return nil, fmt.Errorf("mqtt dial %s: %w", cfg.Broker, err)
		}

		pc := paho.ClientConfig{
			ClientID: clientID,
			Conn:     conn,
			OnClientError: func(err error) {
				log.Warn("mqtt client error", zap.Error(err))
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				log.Warn("mqtt server disconnect", zap.Uint8("reason", d.ReasonCode))
			},
		}
		if onPublish != nil {
			pc.OnPublishReceived = []func(paho.PublishReceived) (bool, error){onPublish}
		}
		client := paho.NewClient(pc)

		cp := &paho.Connect{
			ClientID:   clientID,
			KeepAlive:  cfg.KeepAlive,
			CleanStart: true,
		}
		if cfg.Username != "" {
			cp.Username = cfg.Username
			cp.UsernameFlag = true
			cp.Password = []byte(cfg.Password)
			cp.PasswordFlag = true
		}
		ack, err := client.Connect(ctx, cp)
		if err != nil {
			_ = conn.Close()
			if ack != nil && ack.ReasonCode >= 0x80 {
				return nil, backoff.Permanent(fmt.Errorf("mqtt connect refused: reason %d", ack.ReasonCode))
			}
			return nil, fmt.Errorf("mqtt connect: %w", err)
		}
		return client, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(cfg.ConnectRetries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("mqtt connect failed, retrying", zap.Error(err), zap.Duration("backoff", next))
		}),
	)
}

func disconnect(client *paho.Client) error {
	if client == nil {
		return nil
	}
	return client.Disconnect(&paho.Disconnect{ReasonCode: 0})
}
