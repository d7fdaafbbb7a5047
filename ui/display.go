package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"

	"github.com/NicolasHaas/radiolink/pkg/frequency"
)

var (
	segmentOn  = color.NRGBA{R: 0xFF, G: 0x6E, B: 0x1A, A: 0xFF}
	segmentDim = color.NRGBA{R: 0xFF, G: 0x6E, B: 0x1A, A: 0x40}
	panelColor = color.NRGBA{R: 0x14, G: 0x14, B: 0x14, A: 0xFF}
)

const segmentTextSize = 42

// frequencyDisplay draws the dial value as fixed-width LED style cells.
type frequencyDisplay struct {
	content fyne.CanvasObject
	cells   []*canvas.Text // three integer cells, point, two fractional cells
}

func newFrequencyDisplay() *frequencyDisplay {
	d := &frequencyDisplay{}
	row := container.NewHBox()
	for i := 0; i < 6; i++ {
		t := canvas.NewText("0", segmentOn)
		t.TextSize = segmentTextSize
		t.TextStyle = fyne.TextStyle{Monospace: true, Bold: true}
		d.cells = append(d.cells, t)
		row.Add(t)
	}
	d.cells[3].Text = "."

	bg := canvas.NewRectangle(panelColor)
	bg.CornerRadius = 6
	d.content = container.NewStack(bg, container.NewPadded(row))
	return d
}

// set renders value. The stored dial value is not touched.
func (d *frequencyDisplay) set(value string) {
	disp := frequency.Format(value)
	cells := make([]frequency.Cell, 0, 6)
	cells = append(cells, disp.Int[:]...)
	cells = append(cells, frequency.Cell{Char: '.', Dim: !disp.HasPoint})
	cells = append(cells, disp.Frac[:]...)

	for i, c := range cells {
		t := d.cells[i]
		t.Text = string(c.Char)
		if c.Dim {
			t.Color = segmentDim
		} else {
			t.Color = segmentOn
		}
		t.Refresh()
	}
}
