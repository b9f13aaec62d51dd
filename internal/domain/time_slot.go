package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ClockTime is a time of day with minute precision, independent of date
// and zone. Time slots are recurring daily windows, so clock times are
// the natural coordinate for them.
type ClockTime int

func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

func ParseClockTime(s string) (ClockTime, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	// 24:00 marks a window ending at midnight
	if hour == 24 && minute == 0 {
		return NewClockTime(24, 0), nil
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return NewClockTime(hour, minute), nil
}

// ClockTimeOf reads the wall-clock time of t in its own location.
func ClockTimeOf(t time.Time) ClockTime {
	return NewClockTime(t.Hour(), t.Minute())
}

func (c ClockTime) Hour() int   { return int(c) / 60 }
func (c ClockTime) Minute() int { return int(c) % 60 }

func (c ClockTime) Before(other ClockTime) bool { return c < other }
func (c ClockTime) After(other ClockTime) bool  { return c > other }

// Sub returns the duration from other to c.
func (c ClockTime) Sub(other ClockTime) time.Duration {
	return time.Duration(c-other) * time.Minute
}

func (c ClockTime) Add(d time.Duration) ClockTime {
	return c + ClockTime(d/time.Minute)
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(b []byte) error {
	parsed, err := ParseClockTime(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// TimeSlotPrice is a recurring daily clock-time window carrying its own
// price for one product version. Archived slots are kept forever, they
// document what historical orders were priced against.
type TimeSlotPrice struct {
	ID         uuid.UUID
	ProductID  uuid.UUID // product version row
	Begin      ClockTime
	End        ClockTime
	Price      PricePair
	IsArchived bool
}

func (s TimeSlotPrice) Validate() error {
	if s.Begin >= s.End {
		return fmt.Errorf("%w: slot %s-%s", ErrInvalidRange, s.Begin, s.End)
	}
	return nil
}

// Contains reports whether the half-open clock range [begin, end) falls
// entirely inside the slot window.
func (s TimeSlotPrice) Contains(begin, end ClockTime) bool {
	return s.Begin <= begin && end <= s.End
}

// Overlaps uses the half-open interval test: two slots overlap when each
// begins before the other ends.
func (s TimeSlotPrice) Overlaps(other TimeSlotPrice) bool {
	return s.Begin < other.End && s.End > other.Begin
}

func (s TimeSlotPrice) Duration() time.Duration {
	return s.End.Sub(s.Begin)
}

// CheckSlotCollision enforces the live-configuration invariant for a new
// slot against the existing slots of the same product version: fixed-price
// products forbid an identical (begin, end) pair, per-period products
// forbid any clock-time overlap. Archived slots are history, not live
// configuration, and are exempt on both sides.
func CheckSlotCollision(priceType PriceType, existing []TimeSlotPrice, candidate TimeSlotPrice) error {
	if candidate.IsArchived {
		return nil
	}

	for _, other := range existing {
		if other.IsArchived || other.ID == candidate.ID {
			continue
		}

		switch priceType {
		case PriceFixed:
			if other.Begin == candidate.Begin && other.End == candidate.End {
				return fmt.Errorf("%w: slot %s-%s already exists", ErrTimeSlotOverlap, candidate.Begin, candidate.End)
			}
		default:
			if other.Overlaps(candidate) {
				return fmt.Errorf("%w: %s-%s overlaps %s-%s",
					ErrTimeSlotOverlap, candidate.Begin, candidate.End, other.Begin, other.End)
			}
		}
	}

	return nil
}

// CustomerGroupTimeSlotPrice overrides a slot's own price for one
// customer group. Unique per (customer group, time slot).
type CustomerGroupTimeSlotPrice struct {
	ID              uuid.UUID
	TimeSlotPriceID uuid.UUID
	CustomerGroupID string
	Price           PricePair
}
