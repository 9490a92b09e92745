package verification

import (
	"context"
	"time"

	"github.com/oksasatya/campus-identity/internal/domain/entity"
)

const (
	// DefaultSizeThreshold is the smallest artifact, in bytes, that passes
	// the size heuristic.
	DefaultSizeThreshold int64 = 30000

	RejectedReason = "Unable to verify ID"
)

// PlaceholderDetails is reported for every document the size heuristic accepts.
var PlaceholderDetails = entity.ExtractedDetails{
	Name:           "Alex Johnson",
	Institution:    "State University",
	DocumentNumber: "STU-2024-08731",
}

// Decision is a classifier verdict: Verified with details, or rejected with a reason.
type Decision struct {
	Verified bool
	Details  entity.ExtractedDetails
	Reason   string
}

// Classifier decides whether an artifact is a valid identity document.
// Swapping in a real verification backend only means another Classifier.
type Classifier interface {
	Classify(ctx context.Context, a entity.Artifact) (Decision, error)
}

// SizeClassifier is a stand-in for document verification: artifacts at or
// above Threshold bytes pass. Delay simulates the remote call.
type SizeClassifier struct {
	Threshold int64
	Delay     time.Duration
}

func (c SizeClassifier) Classify(ctx context.Context, a entity.Artifact) (Decision, error) {
	if c.Delay > 0 {
		t := time.NewTimer(c.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Decision{}, ctx.Err()
		case <-t.C:
		}
	}
	threshold := c.Threshold
	if threshold <= 0 {
		threshold = DefaultSizeThreshold
	}
	if a.Size >= threshold {
		return Decision{Verified: true, Details: PlaceholderDetails}, nil
	}
	return Decision{Reason: RejectedReason}, nil
}
