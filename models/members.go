package models

import (
	"errors"
	"fmt"
	"strings"
)

// Member is one distinct value observed for a dimension. No separate label lookup is
// performed, so ID and Label carry the same value.
type Member struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ResolvedDimension is an active dimension with its fallbacks applied. Derived, never persisted.
type ResolvedDimension struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Key         string `json:"key"`
}

// ResolvedMeasure is an active measure with its fallbacks applied.
type ResolvedMeasure struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Key         string `json:"key"`
}

// ReturnType selects which cell sub-field identifies a member.
type ReturnType int

const (
	// ReturnID identifies members by cell id, falling back to label.
	ReturnID ReturnType = iota
	// ReturnLabel identifies members by cell label, falling back to id.
	ReturnLabel
)

func (rt ReturnType) String() string {
	switch rt {
	case ReturnID:
		return "id"
	case ReturnLabel:
		return "label"
	default:
		return fmt.Sprintf("unknown(%d)", rt)
	}
}

// ErrInvalidReturnType is returned when a return type name is not recognized.
var ErrInvalidReturnType = errors.New("invalid member return type")

// ParseReturnType parses "id" or "label"; empty defaults to ReturnID.
func ParseReturnType(s string) (ReturnType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "id":
		return ReturnID, nil
	case "label":
		return ReturnLabel, nil
	}
	return ReturnID, fmt.Errorf("%w: %q", ErrInvalidReturnType, s)
}
