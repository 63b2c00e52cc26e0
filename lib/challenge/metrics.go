package challenge

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	issued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vox_challenges_issued",
		Help: "The total number of spoken challenges issued",
	}, []string{"kind"})

	claims = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vox_challenge_claims",
		Help: "Attempts to claim a challenge for verification by outcome",
	}, []string{"result"})

	// TimeTaken is the time between issuing a challenge and the client
	// submitting its answer (milliseconds).
	TimeTaken = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vox_challenge_answer_time",
		Help:    "The time taken for a client to answer a spoken challenge (milliseconds)",
		Buckets: prometheus.ExponentialBucketsRange(100, math.Pow(2, 17), 16),
	}, []string{"kind"})
)
