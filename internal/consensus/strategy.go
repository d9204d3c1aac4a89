package consensus

import (
	"fmt"

	"github.com/Iron-Ham/quorum/internal/errors"
)

// Strategy is the rule that turns a set of votes into an approval decision.
type Strategy string

const (
	// Majority approves when approvals strictly outnumber rejections.
	Majority Strategy = "majority"
	// Unanimous approves when at least one vote was cast and none rejects.
	Unanimous Strategy = "unanimous"
	// Weighted approves when the summed confidence of approvals strictly
	// exceeds that of rejections.
	Weighted Strategy = "weighted"
)

// Strategies returns every recognized strategy.
func Strategies() []Strategy {
	return []Strategy{Majority, Unanimous, Weighted}
}

// String returns the strategy name.
func (s Strategy) String() string { return string(s) }

// IsValid reports whether s is a recognized strategy.
func (s Strategy) IsValid() bool {
	switch s {
	case Majority, Unanimous, Weighted:
		return true
	}
	return false
}

// ParseStrategy converts a configuration string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(s)
	if !st.IsValid() {
		return "", fmt.Errorf("parse strategy %q: %w", s, errors.ErrUnknownStrategy)
	}
	return st, nil
}

// Decide applies the strategy to votes. An unrecognized strategy never
// approves.
func (s Strategy) Decide(votes []Vote) bool {
	switch s {
	case Majority:
		var yes, no int
		for _, v := range votes {
			if v.Approved {
				yes++
			} else {
				no++
			}
		}
		return yes > no
	case Unanimous:
		if len(votes) == 0 {
			return false
		}
		for _, v := range votes {
			if !v.Approved {
				return false
			}
		}
		return true
	case Weighted:
		var yes, no float64
		for _, v := range votes {
			if v.Approved {
				yes += v.Weight()
			} else {
				no += v.Weight()
			}
		}
		return yes > no
	}
	return false
}
