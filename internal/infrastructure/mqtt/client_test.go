package mqtt

import (
	"context"
	"errors"
	"strings"
	"testing"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/doorlink/intercom-core/internal/infrastructure/config"
)

func testMQTTConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "localhost",
			Port:     1883,
			ClientID: "intercomd-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     60,
		},
	}
}

// newDisconnectedClient builds a Client that has never connected, for
// exercising validation paths without a broker.
func newDisconnectedClient(cfg config.MQTTConfig) *Client {
	return &Client{
		cfg:  cfg,
		paho: pahomqtt.NewClient(brokerOptions(cfg)),
		subs: make(map[string]subscription),
	}
}

func TestTopics(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"access event", Topics{}.AccessEvent(), "intercom/event/access"},
		{"door state", Topics{}.DoorState(1), "intercom/door/1/state"},
		{"all door commands", Topics{}.AllDoorCommands(), "intercom/command/door/+"},
		{"enrollment", Topics{}.Enrollment("u-1"), "intercom/enrollment/u-1"},
		{"system status", Topics{}.SystemStatus(), "intercom/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("topic = %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestBrokerOptions(t *testing.T) {
	cfg := testMQTTConfig()
	opts := brokerOptions(cfg)

	if len(opts.Servers) != 1 {
		t.Fatalf("broker count = %d, want 1", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "tcp://localhost:1883" {
		t.Errorf("broker URL = %q, want tcp://localhost:1883", got)
	}
	if opts.ClientID != "intercomd-test" {
		t.Errorf("client id = %q, want intercomd-test", opts.ClientID)
	}
	if !opts.AutoReconnect {
		t.Error("auto-reconnect disabled, want enabled")
	}
}

func TestBrokerOptionsTLS(t *testing.T) {
	cfg := testMQTTConfig()
	cfg.Broker.TLS = true

	opts := brokerOptions(cfg)
	if got := opts.Servers[0].Scheme; got != "ssl" {
		t.Errorf("broker scheme = %q, want ssl", got)
	}
	if opts.TLSConfig == nil {
		t.Fatal("TLS config not set")
	}
}

func TestStatusPayload(t *testing.T) {
	online := statusPayload("intercomd-test", "online", "")
	if !strings.Contains(online, `"status":"online"`) || !strings.Contains(online, "intercomd-test") {
		t.Errorf("online payload = %s, want status online with client id", online)
	}
	if strings.Contains(online, "reason") {
		t.Errorf("online payload = %s, want no reason field", online)
	}

	offline := statusPayload("intercomd-test", "offline", "graceful_shutdown")
	if !strings.Contains(offline, `"status":"offline"`) || !strings.Contains(offline, "graceful_shutdown") {
		t.Errorf("offline payload = %s, want graceful offline status", offline)
	}
}

func TestPublishValidation(t *testing.T) {
	c := newDisconnectedClient(testMQTTConfig())

	tests := []struct {
		name    string
		topic   string
		payload []byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), ErrInvalidTopic},
		{"oversized payload", "intercom/event/access", make([]byte, maxPayloadSize+1), ErrPublishFailed},
		{"not connected", "intercom/event/access", []byte("x"), ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.PublishEvent(tt.topic, tt.payload)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("PublishEvent() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := newDisconnectedClient(testMQTTConfig())

	handler := func(_ string, _ []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty topic) error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("intercom/#", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("intercom/#", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("intercom/#", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() while disconnected error = %v, want ErrNotConnected", err)
	}

	if len(c.subs) != 0 {
		t.Errorf("tracked subscriptions = %d, want 0 after failed subscribes", len(c.subs))
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	c := newDisconnectedClient(testMQTTConfig())

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}
