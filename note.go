package sheetmusic

import (
	"math/big"
	"strconv"

	"github.com/beevik/etree"
)

// Position is an engraving position hint in tenths, taken from the
// default-x/default-y attributes of a note.
type Position struct {
	X float64
	Y float64
}

// Note is the capability set shared by pitched notes and rests.
type Note interface {
	// Position returns the engraving hint, nil when the source carried
	// none (or carried one that does not parse).
	Position() *Position
	// Duration is an exact fraction of a whole note.
	Duration() *big.Rat
	// Dots is the number of augmentation dot glyphs.
	Dots() int
	// GlyphType is the notated type (whole, half, quarter, ...), empty
	// when unspecified.
	GlyphType() string
}

// noteCore carries the fields common to both note variants.
type noteCore struct {
	pos      *Position
	duration *big.Rat
	dots     int
	glyph    string
}

func (n *noteCore) Position() *Position { return n.pos }
func (n *noteCore) Duration() *big.Rat  { return new(big.Rat).Set(n.duration) }
func (n *noteCore) Dots() int           { return n.dots }
func (n *noteCore) GlyphType() string   { return n.glyph }

// PitchedNote is a sounding note with a pitch and optional stem and
// accidental. Chord notes carry no stem of their own.
type PitchedNote struct {
	noteCore
	Pitch      Pitch
	Stem       *Stem
	Accidental *Accidental
}

// NewPitchedNote builds a pitched note from eagerly extracted fields.
func NewPitchedNote(pos *Position, duration *big.Rat, dots int, glyph string, pitch Pitch, stem *Stem, accidental *Accidental) *PitchedNote {
	return &PitchedNote{
		noteCore:   noteCore{pos: pos, duration: duration, dots: dots, glyph: glyph},
		Pitch:      pitch,
		Stem:       stem,
		Accidental: accidental,
	}
}

// Rest is a silent duration.
type Rest struct {
	noteCore
}

// NewRest builds a rest from eagerly extracted fields.
func NewRest(pos *Position, duration *big.Rat, dots int, glyph string) *Rest {
	return &Rest{noteCore: noteCore{pos: pos, duration: duration, dots: dots, glyph: glyph}}
}

// notePosition extracts the default-x/default-y hint. Absent or
// unparsable attributes mean no hint, never an error.
func notePosition(node *etree.Element) *Position {
	xAttr := node.SelectAttr("default-x")
	yAttr := node.SelectAttr("default-y")
	if xAttr == nil || yAttr == nil {
		return nil
	}
	x, errX := strconv.ParseFloat(xAttr.Value, 64)
	y, errY := strconv.ParseFloat(yAttr.Value, 64)
	if errX != nil || errY != nil {
		return nil
	}
	return &Position{X: x, Y: y}
}

// noteDots counts the dot child elements.
func noteDots(node *etree.Element) int {
	return len(node.SelectElements("dot"))
}

// noteGlyphType reads the type child element.
func noteGlyphType(node *etree.Element) string {
	return textChild(node, "type")
}
