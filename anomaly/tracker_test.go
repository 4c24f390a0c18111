package anomaly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTrackerReportsFirstOccurrenceImmediately(t *testing.T) {
	tr := New(time.Minute)
	now := time.Now()
	require.True(t, tr.ShouldReport("broker-a", now))
}

func TestTrackerSuppressesWithinWindow(t *testing.T) {
	tr := New(time.Minute)
	now := time.Now()
	require.True(t, tr.ShouldReport("broker-a", now))
	require.False(t, tr.ShouldReport("broker-a", now.Add(30*time.Second)))
}

func TestTrackerReportsAgainAfterWindowElapses(t *testing.T) {
	tr := New(time.Minute)
	now := time.Now()
	require.True(t, tr.ShouldReport("broker-a", now))
	require.True(t, tr.ShouldReport("broker-a", now.Add(2*time.Minute)))
}

func TestTrackerKeysAreIndependent(t *testing.T) {
	tr := New(time.Minute)
	now := time.Now()
	require.True(t, tr.ShouldReport("broker-a", now))
	require.True(t, tr.ShouldReport("broker-b", now))
}
