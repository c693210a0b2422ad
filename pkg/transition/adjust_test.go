package transition

import (
	"errors"
	"testing"

	"transitions/pkg/frame"
)

func TestValue(t *testing.T) {
	cases := []struct {
		name              string
		previous, current frame.NullInt
		cap, modulate     int
		want              frame.NullInt
	}{
		{"missing previous", frame.NullInt{}, frame.Int(1), 0, 0, frame.NullInt{}},
		{"missing current", frame.Int(1), frame.NullInt{}, 0, 0, frame.NullInt{}},
		{"rise", frame.Int(0), frame.Int(1), 0, 0, frame.Int(1)},
		{"fall", frame.Int(1), frame.Int(0), 0, 0, frame.Int(-1)},
		{"flat", frame.Int(2), frame.Int(2), 3, 2, frame.Int(0)},
		{"cap", frame.Int(0), frame.Int(5), 2, 0, frame.Int(2)},
		{"cap negative", frame.Int(5), frame.Int(0), 2, 0, frame.Int(-2)},
		{"modulate rounds up", frame.Int(0), frame.Int(5), 0, 2, frame.Int(3)},
		{"modulate exact", frame.Int(6), frame.Int(0), 0, 3, frame.Int(-2)},
		{"modulate then cap", frame.Int(0), frame.Int(9), 2, 2, frame.Int(2)},
		{"modulate one", frame.Int(0), frame.Int(4), 0, 1, frame.Int(4)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Value(tc.previous, tc.current, tc.cap, tc.modulate)
			if err != nil {
				t.Fatalf("Value: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestValueRejectsNegativeArguments(t *testing.T) {
	if _, err := Value(frame.Int(0), frame.Int(1), -1, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for cap, got %v", err)
	}
	if _, err := Value(frame.Int(0), frame.Int(1), 0, -1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for modulate, got %v", err)
	}
}

func TestAdjustProperties(t *testing.T) {
	for diff := -20; diff <= 20; diff++ {
		for m := 2; m <= 5; m++ {
			got := adjust(diff, 0, m)
			abs := diff
			if abs < 0 {
				abs = -abs
			}
			want := (abs + m - 1) / m
			if diff < 0 {
				want = -want
			}
			if got != want {
				t.Fatalf("adjust(%d, 0, %d) = %d, want %d", diff, m, got, want)
			}
		}
		for c := 1; c <= 4; c++ {
			got := adjust(diff, c, 0)
			if got > c || got < -c {
				t.Fatalf("adjust(%d, %d, 0) = %d exceeds cap", diff, c, got)
			}
			if (got < 0) != (diff < 0) || (got == 0) != (diff == 0) {
				t.Fatalf("adjust(%d, %d, 0) = %d lost sign", diff, c, got)
			}
		}
	}
}
