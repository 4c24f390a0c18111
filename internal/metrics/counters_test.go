package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRegistersNamespacedCounters(t *testing.T) {
	c := New("broker-0")
	c.SendProduceRequestOk.Inc(1)
	c.SendProduceRequestOk.Inc(2)

	require.EqualValues(t, 3, c.SendProduceRequestOk.Count())

	found := false
	c.Registry().Each(func(name string, _ interface{}) {
		if name == "broker-0.send_produce_request_ok" {
			found = true
		}
	})
	require.True(t, found)
}

func TestTwoCountersDoNotShareRegistries(t *testing.T) {
	a := New("broker-a")
	b := New("broker-b")

	a.ConnectorConnectFail.Inc(1)
	require.EqualValues(t, 0, b.ConnectorConnectFail.Count())
}
