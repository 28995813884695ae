package sheetmusic

import (
	"math/big"
	"strconv"

	"github.com/beevik/etree"
)

// Page geometry defaults, in tenths of staff space. Used when the document
// carries no defaults/page-layout element. Values match the common A4
// export of desktop notation programs.
const (
	DefaultPageHeight = 1697.14
	DefaultPageWidth  = 1200.0
	DefaultPageMargin = 85.72
)

// DefaultMeasureHeight is the vertical extent of a five-line staff.
const DefaultMeasureHeight = 40.0

// Margins holds the four margin distances of a page or system, in tenths.
type Margins struct {
	Left   float64
	Right  float64
	Top    float64
	Bottom float64
}

// NewMargins reads a margins element (system-margins or page-margins).
// A nil node yields zero margins.
func NewMargins(node *etree.Element) Margins {
	var m Margins
	if node == nil {
		return m
	}
	m.Left = floatChild(node, "left-margin", 0)
	m.Right = floatChild(node, "right-margin", 0)
	m.Top = floatChild(node, "top-margin", 0)
	m.Bottom = floatChild(node, "bottom-margin", 0)
	return m
}

// PageSize is a page extent in tenths.
type PageSize struct {
	Width  float64
	Height float64
}

// Clef is a staff clef: sign (G, F, C, percussion) and staff line.
type Clef struct {
	Sign string
	Line int
}

// NewClef reads a clef element.
func NewClef(node *etree.Element) Clef {
	clef := Clef{Sign: textChild(node, "sign")}
	if line := node.SelectElement("line"); line != nil {
		if v, err := strconv.Atoi(line.Text()); err == nil {
			clef.Line = v
		}
	}
	return clef
}

// Stem is a note stem with an engraving direction (up, down, none, double).
type Stem struct {
	Direction string
}

// NewStem reads a stem element.
func NewStem(node *etree.Element) *Stem {
	return &Stem{Direction: node.Text()}
}

// Accidental is a printed accidental glyph (sharp, flat, natural, ...).
type Accidental struct {
	Kind string
}

// NewAccidental reads an accidental element.
func NewAccidental(node *etree.Element) *Accidental {
	return &Accidental{Kind: node.Text()}
}

// Pitch is a notated pitch: diatonic step, chromatic alteration, octave.
type Pitch struct {
	Step   string
	Alter  int
	Octave int
}

// NewPitch reads a pitch element.
func NewPitch(node *etree.Element) Pitch {
	p := Pitch{Step: textChild(node, "step")}
	if alter := node.SelectElement("alter"); alter != nil {
		if v, err := strconv.Atoi(alter.Text()); err == nil {
			p.Alter = v
		}
	}
	if octave := node.SelectElement("octave"); octave != nil {
		if v, err := strconv.Atoi(octave.Text()); err == nil {
			p.Octave = v
		}
	}
	return p
}

var stepSemitones = map[string]int{
	"C": 0, "D": 2, "E": 4, "F": 5, "G": 7, "A": 9, "B": 11,
}

// MIDIKey returns the MIDI key number for the pitch (middle C = 60).
func (p Pitch) MIDIKey() uint8 {
	key := (p.Octave+1)*12 + stepSemitones[p.Step] + p.Alter
	if key < 0 {
		key = 0
	}
	if key > 127 {
		key = 127
	}
	return uint8(key)
}

// Beam is a bracket grouping consecutive stemmed notes. Stems are appended
// in document order while the beam is open.
type Beam struct {
	Stems []*Stem
}

// Page owns an ordered run of measures sharing one printed page.
type Page struct {
	Size     PageSize
	Margins  Margins
	Measures []*Measure
}

func (p *Page) addMeasure(m *Measure) {
	m.page = p
	p.Measures = append(p.Measures, m)
}

// NoteSpan is one sounding note in document time: onset and end as exact
// fractions of a whole note from the start of the score.
type NoteSpan struct {
	Start   *big.Rat
	End     *big.Rat
	Note    *PitchedNote
	Measure *Measure
}

// Sheet is the parsed score: an ordered sequence of pages, with the
// measures of all pages forming a single chain in document order.
type Sheet struct {
	Title string
	Pages []*Page

	pageSize    PageSize
	pageMargins Margins
	lastMeasure *Measure
	finished    bool
}

// newSheet builds an empty sheet, reading page geometry from the
// document's defaults element when present.
func newSheet(doc *etree.Document) *Sheet {
	sheet := &Sheet{
		pageSize:    PageSize{Width: DefaultPageWidth, Height: DefaultPageHeight},
		pageMargins: Margins{Left: DefaultPageMargin, Right: DefaultPageMargin, Top: DefaultPageMargin, Bottom: DefaultPageMargin},
	}

	root := doc.Root()
	if title := root.SelectElement("movement-title"); title != nil {
		sheet.Title = title.Text()
	}
	if layout := root.FindElement("defaults/page-layout"); layout != nil {
		sheet.pageSize.Height = floatChild(layout, "page-height", sheet.pageSize.Height)
		sheet.pageSize.Width = floatChild(layout, "page-width", sheet.pageSize.Width)
		if margins := layout.SelectElement("page-margins"); margins != nil {
			sheet.pageMargins = NewMargins(margins)
		}
	}
	return sheet
}

// newPage opens a new page at the end of the sheet.
func (s *Sheet) newPage() *Page {
	page := &Page{Size: s.pageSize, Margins: s.pageMargins}
	s.Pages = append(s.Pages, page)
	return page
}

// firstMeasure returns the head of the measure chain.
func (s *Sheet) firstMeasure() *Measure {
	if len(s.Pages) == 0 || len(s.Pages[0].Measures) == 0 {
		return nil
	}
	return s.Pages[0].Measures[0]
}

// finish seals the sheet: measure start offsets are accumulated along the
// chain so note spans can be iterated in document time.
func (s *Sheet) finish() {
	start := new(big.Rat)
	for m := s.firstMeasure(); m != nil; m = m.next {
		m.start = new(big.Rat).Set(start)
		start.Add(start, m.length)
	}
	s.finished = true
}

// NoteSequence returns every pitched note of the score with its absolute
// onset and end, in document order. Chord notes share their onset. The
// sequence is only defined once the sheet is finished, since measure
// offsets are accumulated then; an unfinished sheet yields nothing.
func (s *Sheet) NoteSequence() []NoteSpan {
	if !s.finished {
		return nil
	}
	var spans []NoteSpan
	for m := s.firstMeasure(); m != nil; m = m.next {
		for _, placed := range m.Notes {
			pitched, ok := placed.Note.(*PitchedNote)
			if !ok {
				continue
			}
			start := new(big.Rat).Add(m.start, placed.Onset)
			end := new(big.Rat).Add(start, pitched.Duration())
			spans = append(spans, NoteSpan{Start: start, End: end, Note: pitched, Measure: m})
		}
	}
	return spans
}

// floatChild reads a float-valued child element, falling back to dflt when
// the child is absent or unparsable.
func floatChild(node *etree.Element, tag string, dflt float64) float64 {
	child := node.SelectElement(tag)
	if child == nil {
		return dflt
	}
	v, err := strconv.ParseFloat(child.Text(), 64)
	if err != nil {
		return dflt
	}
	return v
}

// textChild reads a text-valued child element, empty when absent.
func textChild(node *etree.Element, tag string) string {
	if child := node.SelectElement(tag); child != nil {
		return child.Text()
	}
	return ""
}
