package transition

import (
	"fmt"

	"transitions/pkg/frame"
)

// Value combines a subject's previous and current result into a transition.
// The signed difference current-previous is first modulated (ceiling
// division of its magnitude when modulate > 1) and then capped (magnitude at
// most cap when cap > 0). The sign of the raw difference is always kept.
// A missing previous or current result yields a missing transition.
func Value(previous, current frame.NullInt, cap, modulate int) (frame.NullInt, error) {
	if err := checkAdjustment(cap, modulate); err != nil {
		return frame.NullInt{}, err
	}
	if !previous.Valid || !current.Valid {
		return frame.NullInt{}, nil
	}
	return frame.Int(adjust(current.Int-previous.Int, cap, modulate)), nil
}

func checkAdjustment(cap, modulate int) error {
	if cap < 0 {
		return fmt.Errorf("%w: cap %d less than zero", ErrInvalidArgument, cap)
	}
	if modulate < 0 {
		return fmt.Errorf("%w: modulate %d less than zero", ErrInvalidArgument, modulate)
	}
	return nil
}

func adjust(diff, cap, modulate int) int {
	negative := diff < 0
	if negative {
		diff = -diff
	}
	if modulate > 1 {
		diff = (diff + modulate - 1) / modulate
	}
	if cap > 0 && diff > cap {
		diff = cap
	}
	if negative {
		return -diff
	}
	return diff
}
