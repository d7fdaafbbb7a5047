package frequency

import "strings"

// Cell is one character of the formatted display.
type Cell struct {
	Char byte
	Dim  bool // leading zero padding, drawn de-emphasized
}

// Display is the fixed-width presentation of a dial value: three integer
// cells, a point, two fractional cells.
type Display struct {
	Int      [maxIntDigits]Cell
	Frac     [maxFracDigits]Cell
	HasPoint bool // the user typed a decimal point
}

// Format pads the integer part to three digits and the fractional part to
// exactly two. The stored value is never changed.
func Format(value string) Display {
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		if c := value[i]; (c >= '0' && c <= '9') || c == '.' {
			b.WriteByte(c)
		}
	}
	intPart, fracPart, hasPoint := strings.Cut(b.String(), ".")
	if len(intPart) > maxIntDigits {
		intPart = intPart[:maxIntDigits]
	}

	var d Display
	d.HasPoint = hasPoint
	pad := maxIntDigits - len(intPart)
	for i := range d.Int {
		if i < pad {
			d.Int[i] = Cell{Char: '0', Dim: true}
			continue
		}
		d.Int[i] = Cell{Char: intPart[i-pad]}
	}
	// Typed leading zeros are shown dim as well, up to the last integer cell.
	for i := pad; i < maxIntDigits-1 && d.Int[i].Char == '0'; i++ {
		d.Int[i].Dim = true
	}
	for i := range d.Frac {
		c := byte('0')
		if i < len(fracPart) {
			c = fracPart[i]
		}
		d.Frac[i] = Cell{Char: c}
	}
	return d
}

// String renders the display without styling, e.g. "088.00".
func (d Display) String() string {
	var b strings.Builder
	for _, c := range d.Int {
		b.WriteByte(c.Char)
	}
	b.WriteByte('.')
	for _, c := range d.Frac {
		b.WriteByte(c.Char)
	}
	return b.String()
}
