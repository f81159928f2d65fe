package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestVotesCastTotal(t *testing.T) {
	before := testutil.ToFloat64(VotesCastTotal.WithLabelValues("QUESTION", "UP"))
	VotesCastTotal.WithLabelValues("QUESTION", "UP").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(VotesCastTotal.WithLabelValues("QUESTION", "UP")))
}

func TestCircuitBreakerState(t *testing.T) {
	CircuitBreakerState.WithLabelValues("ai").Set(2)
	assert.Equal(t, float64(2), testutil.ToFloat64(CircuitBreakerState.WithLabelValues("ai")))
}
