// Package frequency implements the keypad-driven frequency dial.
//
// The dial keeps the exact keystrokes as a display string ("88.0", "100.5")
// and only converts to a number at the connect boundary via Parse.
package frequency

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"
)

const (
	// Default is the canonical display shown before anything is typed.
	Default = "88.0"

	// KeyReset restores Default.
	KeyReset = "R"
	// KeyPoint enters the decimal point.
	KeyPoint = "."

	maxIntDigits  = 3
	maxFracDigits = 2
)

// Keys lists the keypad in display order.
var Keys = []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", KeyPoint, "0", KeyReset}

// ErrInvalid is returned by Parse for displays that are not a usable frequency.
var ErrInvalid = errors.New("frequency: invalid value")

// Dial is the frequency input state machine. It is safe for concurrent use;
// the session engine freezes it while a session is connecting or open.
type Dial struct {
	mu      sync.Mutex
	display string
	frozen  bool
}

// NewDial returns a dial showing Default.
func NewDial() *Dial {
	return &Dial{display: Default}
}

// Value returns the stored display string.
func (d *Dial) Value() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.display
}

// Frozen reports whether digit and point keys are currently ignored.
func (d *Dial) Frozen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frozen
}

// Freeze blocks (or re-allows) edits. Reset still works while frozen.
func (d *Dial) Freeze(frozen bool) {
	d.mu.Lock()
	d.frozen = frozen
	d.mu.Unlock()
}

// ApplyKey feeds one keypad key and returns the resulting display. Rejected
// keys leave the display unchanged.
func (d *Dial) ApplyKey(key string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.display = next(d.display, key, d.frozen)
	return d.display
}

// next is the pure transition function behind ApplyKey.
func next(cur, key string, frozen bool) string {
	if key == KeyReset {
		return Default
	}
	if frozen {
		return cur
	}

	intPart, fracPart, hasPoint := strings.Cut(cur, ".")
	switch {
	case key == KeyPoint:
		if hasPoint || countDigits(cur) == 0 {
			return cur
		}
		return cur + KeyPoint
	case len(key) == 1 && key[0] >= '0' && key[0] <= '9':
		if !hasPoint && len(intPart) >= maxIntDigits {
			return cur
		}
		if hasPoint && len(fracPart) >= maxFracDigits {
			return cur
		}
		if cur == Default {
			return key
		}
		return cur + key
	default:
		return cur
	}
}

func countDigits(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			n++
		}
	}
	return n
}

// Parse converts a display string into MHz. Empty, non-numeric and
// non-finite inputs are rejected with ErrInvalid.
func Parse(display string) (float64, error) {
	s := strings.TrimSpace(display)
	if s == "" {
		return 0, ErrInvalid
	}
	for i := 0; i < len(s); i++ {
		if (s[i] < '0' || s[i] > '9') && s[i] != '.' {
			return 0, ErrInvalid
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalid
	}
	return f, nil
}
