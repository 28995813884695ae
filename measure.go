package sheetmusic

import (
	"math/big"

	"github.com/beevik/etree"
)

// four quarters to the whole note; divisions count time units per quarter.
var wholeNoteQuarters = big.NewRat(4, 1)

// PlacedNote pairs a note with its onset inside the owning measure, as an
// exact fraction of a whole note from the measure start.
type PlacedNote struct {
	Note  Note
	Onset *big.Rat
}

// Measure is one bar of music with its computed page position. Measures
// form a single prev/next chain across the whole document, not per page.
type Measure struct {
	Number string

	X             float64
	Y             float64
	Height        float64
	StaffSpacing  float64
	IsNewSystem   bool
	TimeDivisions int
	Clef          Clef

	Notes []PlacedNote
	Beams []*Beam

	page *Page
	prev *Measure
	next *Measure

	cursor *big.Rat // current time offset within the measure
	length *big.Rat // furthest time reached by any voice
	start  *big.Rat // absolute offset, filled in by Sheet.finish
}

// newMeasure builds a measure from its element and links it behind prev.
// The time-division unit and clef are inherited along the chain.
func newMeasure(node *etree.Element, prev *Measure) *Measure {
	m := &Measure{
		Number: node.SelectAttrValue("number", ""),
		Height: DefaultMeasureHeight,
		prev:   prev,
		cursor: new(big.Rat),
		length: new(big.Rat),
		start:  new(big.Rat),
	}
	if prev != nil {
		prev.next = m
		m.TimeDivisions = prev.TimeDivisions
		m.Clef = prev.Clef
	}
	return m
}

// Prev returns the preceding measure in document order, nil for the first.
func (m *Measure) Prev() *Measure { return m.prev }

// Next returns the following measure in document order, nil for the last.
func (m *Measure) Next() *Measure { return m.next }

// Page returns the page the measure is attached to.
func (m *Measure) Page() *Page { return m.page }

// TimeCursor returns the measure's current time offset.
func (m *Measure) TimeCursor() *big.Rat { return new(big.Rat).Set(m.cursor) }

// durationOf converts a duration text into an exact fraction of a whole
// note using the measure's active time-division unit. Using a duration
// before any divisions value is in effect is a structural fault.
func (m *Measure) durationOf(text string) (*big.Rat, error) {
	if m.TimeDivisions <= 0 {
		return nil, malformedf(m, "duration before divisions are set")
	}
	units, ok := new(big.Rat).SetString(text)
	if !ok {
		return nil, malformedf(m, "unparsable duration %q", text)
	}
	d := new(big.Rat).Quo(units, big.NewRat(int64(m.TimeDivisions), 1))
	return d.Quo(d, wholeNoteQuarters), nil
}

// changeTime moves the time cursor by a signed rational delta: forward
// advances, backup rewinds. Rewinding past the measure start is rejected.
func (m *Measure) changeTime(delta *big.Rat) error {
	next := new(big.Rat).Add(m.cursor, delta)
	if next.Sign() < 0 {
		return malformedf(m, "time cursor rewound past measure start")
	}
	m.cursor = next
	if m.cursor.Cmp(m.length) > 0 {
		m.length.Set(m.cursor)
	}
	return nil
}

// addNote places a note at the current cursor. A chord note shares the
// onset of the note before it and does not advance the cursor.
func (m *Measure) addNote(note Note, chord bool) {
	onset := new(big.Rat).Set(m.cursor)
	if chord && len(m.Notes) > 0 {
		onset.Set(m.Notes[len(m.Notes)-1].Onset)
	} else {
		m.cursor.Add(m.cursor, note.Duration())
		if m.cursor.Cmp(m.length) > 0 {
			m.length.Set(m.cursor)
		}
	}
	m.Notes = append(m.Notes, PlacedNote{Note: note, Onset: onset})
}

// addBeam registers a completed beam on the measure.
func (m *Measure) addBeam(beam *Beam) {
	m.Beams = append(m.Beams, beam)
}

// setClef updates the active clef from an attributes element.
func (m *Measure) setClef(clef Clef) {
	m.Clef = clef
}

// followPrevLayout copies the predecessor's placement verbatim. The first
// measure has no predecessor and always opens a system at the top of the
// page, positioned from the page margins alone.
func (m *Measure) followPrevLayout() {
	if m.prev == nil {
		page := m.page
		m.IsNewSystem = true
		m.Y = page.Size.Height - page.Margins.Top - m.Height
		m.X = page.Margins.Left
		return
	}
	m.X = m.prev.X
	m.Y = m.prev.Y
	m.StaffSpacing = m.prev.StaffSpacing
}

// finish seals the measure once all children are dispatched.
func (m *Measure) finish() {
	if m.cursor.Cmp(m.length) > 0 {
		m.length.Set(m.cursor)
	}
}

// Length returns the furthest time reached in the measure, as a fraction
// of a whole note.
func (m *Measure) Length() *big.Rat { return new(big.Rat).Set(m.length) }

// Start returns the measure's absolute time offset within the score.
// Valid after the sheet is finished.
func (m *Measure) Start() *big.Rat { return new(big.Rat).Set(m.start) }
