package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfidenceBucket(t *testing.T) {
	cases := []struct {
		name                string
		score               float64
		highCut, mediumCut  float64
		want                string
	}{
		{"high positive", 3.5, 3.0, 1.5, "HIGH"},
		{"high negative magnitude", -3.2, 3.0, 1.5, "HIGH"},
		{"medium", 2.0, 3.0, 1.5, "MEDIUM"},
		{"low", 0.5, 3.0, 1.5, "LOW"},
		{"boundary at high cut", 3.0, 3.0, 1.5, "HIGH"},
		{"boundary at medium cut", 1.5, 3.0, 1.5, "MEDIUM"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, confidenceBucket(tc.score, tc.highCut, tc.mediumCut))
		})
	}
}
