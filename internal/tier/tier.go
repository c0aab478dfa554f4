// Package tier implements age-based frame classification.
//
// The classifier is the single source of truth for both garbage
// collection eligibility and storage tier placement. The collector and
// the migration engine must share one Classifier instance so the two
// subsystems can never disagree about a frame's tier.
package tier

import (
	"fmt"
	"time"
)

// Tier is an age-based generation label.
type Tier string

const (
	// Young frames are under the young boundary (default: less than one day old).
	Young Tier = "young"
	// Mature frames are between the young and mature boundaries (default: 1-7 days).
	Mature Tier = "mature"
	// Old frames are between the mature and old boundaries (default: 7-30 days).
	Old Tier = "old"
	// Remote frames are past the old boundary (default: over 30 days).
	Remote Tier = "remote"
)

// All lists every tier from hottest to coldest. Retrieval probes in
// this order.
var All = []Tier{Young, Mature, Old, Remote}

// Colder reports whether t is a colder tier than other.
func (t Tier) Colder(other Tier) bool {
	return rank(t) > rank(other)
}

func rank(t Tier) int {
	switch t {
	case Young:
		return 0
	case Mature:
		return 1
	case Old:
		return 2
	case Remote:
		return 3
	default:
		return -1
	}
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return rank(t) >= 0
}

// Boundaries holds the age boundaries between tiers, in days.
// A frame of age exactly equal to a boundary classifies into the colder
// band (lower bounds are inclusive).
type Boundaries struct {
	YoungDays  int
	MatureDays int
	OldDays    int
}

// DefaultBoundaries returns the standard 1/7/30 day boundaries.
func DefaultBoundaries() Boundaries {
	return Boundaries{YoungDays: 1, MatureDays: 7, OldDays: 30}
}

// Classifier maps a frame's age to its tier. Pure and deterministic:
// the result depends only on the arguments and the configured boundaries.
type Classifier struct {
	boundaries Boundaries
}

// NewClassifier creates a classifier with the given boundaries.
// Boundaries must be strictly increasing and positive.
func NewClassifier(b Boundaries) (*Classifier, error) {
	if b.YoungDays <= 0 || b.MatureDays <= b.YoungDays || b.OldDays <= b.MatureDays {
		return nil, fmt.Errorf("tier: boundaries must be strictly increasing, got %d/%d/%d",
			b.YoungDays, b.MatureDays, b.OldDays)
	}
	return &Classifier{boundaries: b}, nil
}

// Classify returns the tier for a frame created at createdAt, observed
// at now. A zero or future createdAt is a classification error: the
// caller logs it and skips the frame.
func (c *Classifier) Classify(now, createdAt time.Time) (Tier, error) {
	if createdAt.IsZero() {
		return "", fmt.Errorf("tier: zero createdAt")
	}
	age := now.Sub(createdAt)
	if age < 0 {
		return "", fmt.Errorf("tier: createdAt %s is in the future", createdAt.Format(time.RFC3339))
	}

	day := 24 * time.Hour
	switch {
	case age < time.Duration(c.boundaries.YoungDays)*day:
		return Young, nil
	case age < time.Duration(c.boundaries.MatureDays)*day:
		return Mature, nil
	case age < time.Duration(c.boundaries.OldDays)*day:
		return Old, nil
	default:
		return Remote, nil
	}
}

// Boundaries returns the configured boundaries.
func (c *Classifier) Boundaries() Boundaries {
	return c.boundaries
}
