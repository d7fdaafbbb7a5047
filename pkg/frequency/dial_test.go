package frequency

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
)

func applyAll(d *Dial, keys ...string) string {
	var out string
	for _, k := range keys {
		out = d.ApplyKey(k)
	}
	return out
}

func TestApplyKey(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		want string
	}{
		{"first digit replaces default", []string{"9"}, "9"},
		{"second digit appends", []string{"9", "5"}, "95"},
		{"three integer digits", []string{"1", "0", "0"}, "100"},
		{"fourth integer digit rejected", []string{"1", "0", "0", "7"}, "100"},
		{"point after digits", []string{"1", "0", "0", "."}, "100."},
		{"fraction", []string{"1", "0", "0", ".", "5"}, "100.5"},
		{"two fractional digits", []string{"1", ".", "2", "5"}, "1.25"},
		{"third fractional digit rejected", []string{"1", ".", "2", "5", "9"}, "1.25"},
		{"second point rejected", []string{"1", ".", "2", "."}, "1.2"},
		{"point on default rejected", []string{"."}, Default},
		{"reset", []string{"1", "2", KeyReset}, Default},
		{"unknown key ignored", []string{"1", "x", "#"}, "1"},
		{"zero replaces default", []string{"0"}, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDial()
			if got := applyAll(d, tt.keys...); got != tt.want {
				t.Errorf("keys %v = %q, want %q", tt.keys, got, tt.want)
			}
			if d.Value() != tt.want {
				t.Errorf("Value() = %q, want %q", d.Value(), tt.want)
			}
		})
	}
}

func TestPointWithoutDigitsIsNoop(t *testing.T) {
	for _, cur := range []string{"", "."} {
		if got := next(cur, KeyPoint, false); got != cur {
			t.Errorf("next(%q, \".\") = %q, want unchanged", cur, got)
		}
	}
}

func TestResetFromAnyState(t *testing.T) {
	for _, cur := range []string{"", "1", "100.", "999.99", "0.5", Default} {
		for _, frozen := range []bool{false, true} {
			if got := next(cur, KeyReset, frozen); got != Default {
				t.Errorf("next(%q, R, frozen=%v) = %q, want %q", cur, frozen, got, Default)
			}
		}
	}
}

func TestFrozenDialIgnoresEdits(t *testing.T) {
	d := NewDial()
	applyAll(d, "1", "0", "0", ".", "5")
	d.Freeze(true)

	if got := applyAll(d, "7", ".", "3"); got != "100.5" {
		t.Errorf("frozen edits changed display to %q", got)
	}
	if got := d.ApplyKey(KeyReset); got != Default {
		t.Errorf("reset while frozen = %q, want %q", got, Default)
	}

	d.Freeze(false)
	if got := d.ApplyKey("4"); got != "4" {
		t.Errorf("after unfreeze = %q, want 4", got)
	}
}

// Random key sequences must never break the display shape.
func TestDisplayInvariantHolds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for run := 0; run < 500; run++ {
		d := NewDial()
		for i := 0; i < 40; i++ {
			if rng.Intn(10) == 0 {
				d.Freeze(!d.Frozen())
			}
			v := d.ApplyKey(Keys[rng.Intn(len(Keys))])

			if strings.Count(v, ".") > 1 {
				t.Fatalf("run %d: %q has more than one point", run, v)
			}
			intPart, fracPart, _ := strings.Cut(v, ".")
			if len(intPart) > 3 {
				t.Fatalf("run %d: %q integer part too long", run, v)
			}
			if len(fracPart) > 2 {
				t.Fatalf("run %d: %q fractional part too long", run, v)
			}
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{"88.0", 88.0, false},
		{"100.5", 100.5, false},
		{"100.", 100, false},
		{"7", 7, false},
		{"", 0, true},
		{"   ", 0, true},
		{".", 0, true},
		{"abc", 0, true},
		{"1e3", 0, true},
		{"-5", 0, true},
		{"Inf", 0, true},
		{"NaN", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalid) {
					t.Fatalf("Parse(%q) err = %v, want ErrInvalid", tt.input, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("Parse(%q) = %v, %v; want %v", tt.input, got, err, tt.want)
			}
		})
	}
}
