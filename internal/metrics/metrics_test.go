package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	require.NotPanics(t, Init)
	require.NotNil(t, ScrapeCycles)
	require.NotNil(t, NavTransitions)
}

func TestObserveTransition(t *testing.T) {
	Init()

	before := testutil.ToFloat64(NavTransitions.WithLabelValues("login", "error"))
	ObserveTransition("login", errors.New("boom"))
	after := testutil.ToFloat64(NavTransitions.WithLabelValues("login", "error"))
	require.Equal(t, before+1, after)

	before = testutil.ToFloat64(NavTransitions.WithLabelValues("login", "ok"))
	ObserveTransition("login", nil)
	after = testutil.ToFloat64(NavTransitions.WithLabelValues("login", "ok"))
	require.Equal(t, before+1, after)
}

func TestObserveCycle(t *testing.T) {
	Init()

	before := testutil.ToFloat64(ScrapeCycles.WithLabelValues("ok"))
	ObserveCycle(1500*time.Millisecond, nil)
	after := testutil.ToFloat64(ScrapeCycles.WithLabelValues("ok"))
	require.Equal(t, before+1, after)
}

// ObserveTransition must be a no-op before Init so unit tests of other
// packages do not need the registry.
func TestObserveSafeWithoutInit(t *testing.T) {
	require.NotPanics(t, func() {
		ObserveTransition("login", nil)
		ObserveCycle(time.Second, nil)
	})
}
