package influxdb

import (
	"errors"
	"testing"

	"github.com/edgracilla/chikka-gateway/internal/infrastructure/config"
)

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestNilSafeWhenNeverConnected(t *testing.T) {
	c := &Client{}

	// Disconnected writes are silent no-ops.
	c.WriteAdmission("639178888888", "accepted", "")
	c.WriteDelivery("639178888888", "SEND", "ok", 0)
	c.WriteCorrelation("deviceinfo", "timeout", 0)
	c.Flush()

	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero-value client error = %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true for zero-value client")
	}
}
