package clock

import (
	"testing"
	"time"
)

func TestSystem_IsUTC(t *testing.T) {
	t.Parallel()

	if loc := NewSystem().Now().Location(); loc != time.UTC {
		t.Errorf("Now() location = %v, want UTC", loc)
	}
}

func TestManual(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewManual(start)

	if !c.Now().Equal(start) {
		t.Fatalf("Now() = %v, want %v", c.Now(), start)
	}

	c.Advance(36 * time.Hour)
	if want := start.Add(36 * time.Hour); !c.Now().Equal(want) {
		t.Errorf("after Advance Now() = %v, want %v", c.Now(), want)
	}

	c.Set(start)
	if !c.Now().Equal(start) {
		t.Errorf("after Set Now() = %v, want %v", c.Now(), start)
	}
}
