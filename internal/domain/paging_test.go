package domain

import (
	"errors"
	"testing"
	"time"
)

// ─── Window & Pagination Tests ──────────────────────────────────────────────

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"day", 24 * time.Hour},
		{"Week", 7 * 24 * time.Hour},
		{" month ", 30 * 24 * time.Hour},
		{"year", 365 * 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			w, err := ParseWindow(tt.in)
			if err != nil {
				t.Fatalf("ParseWindow(%q) error: %v", tt.in, err)
			}
			if w.Lookback() != tt.want {
				t.Errorf("Lookback() = %v, want %v", w.Lookback(), tt.want)
			}
		})
	}

	if _, err := ParseWindow("fortnight"); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("ParseWindow(fortnight) = %v, want ErrInvalidWindow", err)
	}
}

func TestPaginate_TwelveItems(t *testing.T) {
	items := make([]int, 12)
	for i := range items {
		items[i] = i
	}

	if got := PageCount(len(items), 5); got != 3 {
		t.Fatalf("PageCount(12, 5) = %d, want 3", got)
	}

	wantSizes := []int{5, 5, 2}
	for page, want := range wantSizes {
		got := Paginate(items, page, 5)
		if len(got) != want {
			t.Errorf("page %d has %d items, want %d", page, len(got), want)
		}
		if len(got) > 0 && got[0] != page*5 {
			t.Errorf("page %d starts at %d, want %d", page, got[0], page*5)
		}
	}
}

func TestPaginate_Empty(t *testing.T) {
	if got := PageCount(0, 5); got != 1 {
		t.Errorf("PageCount(0, 5) = %d, want 1", got)
	}
	if got := Paginate([]string{}, 0, 5); len(got) != 0 {
		t.Errorf("Paginate(empty) returned %d items", len(got))
	}
}

func TestNavigate(t *testing.T) {
	tests := []struct {
		name    string
		current int
		dir     Direction
		total   int
		want    int
	}{
		{"next from last page stays", 2, DirNext, 3, 2},
		{"prev from first page stays", 0, DirPrev, 3, 0},
		{"next advances", 0, DirNext, 3, 1},
		{"prev goes back", 2, DirPrev, 3, 1},
		{"first", 2, DirFirst, 3, 0},
		{"last", 0, DirLast, 3, 2},
		{"single page", 0, DirNext, 1, 0},
		{"current beyond total is clamped", 9, DirPrev, 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Navigate(tt.current, tt.dir, tt.total); got != tt.want {
				t.Errorf("Navigate(%d, %s, %d) = %d, want %d", tt.current, tt.dir, tt.total, got, tt.want)
			}
		})
	}
}

func TestParseDirection(t *testing.T) {
	if d, err := ParseDirection("NEXT"); err != nil || d != DirNext {
		t.Errorf("ParseDirection(NEXT) = %q, %v", d, err)
	}
	if _, err := ParseDirection("sideways"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParseDirection(sideways) = %v, want ErrInvalidArgument", err)
	}
}
