package sheetmusic

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Parser turns MusicXML files into positioned sheets. The bundled schema
// is compiled once at construction; a Parser is safe to share across
// concurrent Parse calls since every call owns its own context.
type Parser struct {
	schema *schemaValidator
}

// NewParser builds a parser with the bundled MusicXML schema compiled.
func NewParser() (*Parser, error) {
	schema, err := newSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &Parser{schema: schema}, nil
}

// parseContext is the transient state of a single Parse call. Open beams
// are keyed by their beam-number id; the map is not cleared per measure,
// so a beam may legally close in a later measure than it began.
type parseContext struct {
	sheet   *Sheet
	page    *Page
	measure *Measure
	beams   map[int]*Beam
}

// Parse reads, validates and walks a MusicXML file. Only the first part
// of the document is consumed. Any fault aborts the whole parse; no
// partial sheet is ever returned.
func (p *Parser) Parse(path string) (*Sheet, error) {
	content, err := readMusicXML(path)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(path, content)
	if err != nil {
		return nil, err
	}
	if err := p.schema.validate(path, content); err != nil {
		return nil, err
	}

	ctx := &parseContext{
		sheet: newSheet(doc),
		beams: make(map[int]*Beam),
	}
	ctx.page = ctx.sheet.newPage()

	part := doc.Root().SelectElement("part")
	if part == nil {
		return nil, malformedf(nil, "document has no part")
	}

	for _, measureNode := range part.SelectElements("measure") {
		if err := p.parseMeasure(ctx, measureNode); err != nil {
			return nil, err
		}
	}

	ctx.sheet.finish()
	return ctx.sheet, nil
}

// parseMeasure attaches one measure to the sheet, positions it and
// dispatches its children.
func (p *Parser) parseMeasure(ctx *parseContext, node *etree.Element) error {
	measure := newMeasure(node, ctx.sheet.lastMeasure)
	ctx.sheet.lastMeasure = measure
	ctx.measure = measure

	printNode := node.SelectElement("print")
	if printNode != nil && isYes(printNode.SelectAttrValue("new-page", "no")) {
		// Only turn the page if the current one holds anything; the first
		// measure stays on the page opened at context setup.
		if len(ctx.page.Measures) > 0 {
			ctx.page = ctx.sheet.newPage()
		}
	}
	ctx.page.addMeasure(measure)

	if printNode == nil {
		measure.followPrevLayout()
	} else if err := handlePrint(ctx, printNode); err != nil {
		return err
	}

	for _, child := range node.ChildElements() {
		var err error
		switch child.Tag {
		case "attributes":
			err = handleAttributes(ctx, child)
		case "note":
			err = handleNote(ctx, child)
		case "backup":
			err = handleBackup(ctx, child)
		case "forward":
			err = handleForward(ctx, child)
		case "barline":
			// recognized, nothing to do
		default:
			// ignored: direction, harmony, figured-bass, bookmark, link,
			// grouping, sound
		}
		if err != nil {
			return err
		}
	}

	measure.finish()
	return nil
}

// handlePrint positions the measure from its print element. Exactly one
// placement class applies: NEW_PAGE, NEW_SYSTEM or CONTINUE. The first
// measure of the document forces NEW_PAGE regardless of markup.
func handlePrint(ctx *parseContext, node *etree.Element) error {
	measure := ctx.measure
	page := ctx.page

	if attr := node.SelectAttr("staff-spacing"); attr != nil {
		spacing, err := strconv.ParseFloat(attr.Value, 64)
		if err != nil {
			return malformedf(measure, "unparsable staff-spacing %q", attr.Value)
		}
		measure.StaffSpacing = spacing
	}

	first := measure.prev == nil
	newPage := first || isYes(node.SelectAttrValue("new-page", "no"))
	newSystem := first || isYes(node.SelectAttrValue("new-system", "no"))

	systemMargins := NewMargins(node.FindElement("system-layout/system-margins"))

	switch {
	case newPage:
		measure.IsNewSystem = true
		// A page-layout child would adjust the page geometry here; that
		// adjustment is out of scope and the element is skipped.
		topDistance, err := requiredLayoutValue(measure, node, "system-layout/top-system-distance")
		if err != nil {
			return err
		}
		measure.Y = page.Size.Height - page.Margins.Top - topDistance - measure.Height
		measure.X = systemMargins.Left + page.Margins.Left
	case newSystem:
		measure.IsNewSystem = true
		distance, err := requiredLayoutValue(measure, node, "system-layout/system-distance")
		if err != nil {
			return err
		}
		measure.Y = measure.prev.Y - distance - measure.Height
		measure.X = systemMargins.Left + page.Margins.Left
	default:
		measure.followPrevLayout()
		if dist := node.FindElement("measure-layout/measure-distance"); dist != nil {
			v, err := strconv.ParseFloat(dist.Text(), 64)
			if err != nil {
				return malformedf(measure, "unparsable measure-distance %q", dist.Text())
			}
			measure.X += v
		}
	}
	return nil
}

// handleAttributes applies divisions and clef changes. Time and key
// signature changes are not handled.
func handleAttributes(ctx *parseContext, node *etree.Element) error {
	measure := ctx.measure
	if div := node.SelectElement("divisions"); div != nil {
		v, err := strconv.Atoi(strings.TrimSpace(div.Text()))
		if err != nil || v <= 0 {
			return malformedf(measure, "bad divisions value %q", div.Text())
		}
		measure.TimeDivisions = v
	}
	if clef := node.SelectElement("clef"); clef != nil {
		measure.setClef(NewClef(clef))
	}
	return nil
}

// handleNote extracts one note element. Grace and cue notes are
// recognized and skipped so partial scores do not abort the parse.
func handleNote(ctx *parseContext, node *etree.Element) error {
	measure := ctx.measure

	if node.SelectElement("grace") != nil || node.SelectElement("cue") != nil {
		return nil
	}

	durNode := node.SelectElement("duration")
	if durNode == nil {
		return malformedf(measure, "note without duration")
	}
	duration, err := measure.durationOf(durNode.Text())
	if err != nil {
		return err
	}

	isChord := node.SelectElement("chord") != nil
	pos := notePosition(node)
	dots := noteDots(node)
	glyph := noteGlyphType(node)

	if pitchNode := node.SelectElement("pitch"); pitchNode != nil {
		var stem *Stem
		if !isChord {
			if stemNode := node.SelectElement("stem"); stemNode != nil {
				stem = NewStem(stemNode)
			}
		}
		var accidental *Accidental
		if accNode := node.SelectElement("accidental"); accNode != nil {
			accidental = NewAccidental(accNode)
		}

		note := NewPitchedNote(pos, duration, dots, glyph, NewPitch(pitchNode), stem, accidental)
		if beamNode := node.SelectElement("beam"); beamNode != nil && stem != nil {
			if err := resolveBeam(ctx, beamNode, stem); err != nil {
				return err
			}
		}
		measure.addNote(note, isChord)
	} else if node.SelectElement("rest") != nil {
		measure.addNote(NewRest(pos, duration, dots, glyph), isChord)
	}
	return nil
}

// resolveBeam runs the beam lifecycle for one stemmed note:
// begin opens an id, continue extends it, end registers the finished beam
// on the current measure and releases the id. The stem joins the beam in
// document order in all three cases.
func resolveBeam(ctx *parseContext, node *etree.Element, stem *Stem) error {
	measure := ctx.measure
	id, err := beamNumber(measure, node)
	if err != nil {
		return err
	}

	switch node.Text() {
	case "begin":
		if _, open := ctx.beams[id]; open {
			return malformedf(measure, "beam %d begun while already open", id)
		}
		beam := &Beam{}
		ctx.beams[id] = beam
		beam.Stems = append(beam.Stems, stem)
	case "continue":
		beam, open := ctx.beams[id]
		if !open {
			return malformedf(measure, "beam %d continued without begin", id)
		}
		beam.Stems = append(beam.Stems, stem)
	case "end":
		beam, open := ctx.beams[id]
		if !open {
			return malformedf(measure, "beam %d ended without begin", id)
		}
		beam.Stems = append(beam.Stems, stem)
		measure.addBeam(beam)
		delete(ctx.beams, id)
	default:
		// forward hook / backward hook decorate a single note and carry
		// no bracket state
	}
	return nil
}

// beamNumber reads the beam-number id, defaulting to 1 as MusicXML does.
func beamNumber(measure *Measure, node *etree.Element) (int, error) {
	raw := node.SelectAttrValue("number", "1")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 || id > 8 {
		return 0, malformedf(measure, "bad beam number %q", raw)
	}
	return id, nil
}

// handleForward advances the time cursor without adding a note.
func handleForward(ctx *parseContext, node *etree.Element) error {
	delta, err := cursorDelta(ctx.measure, node)
	if err != nil {
		return err
	}
	return ctx.measure.changeTime(delta)
}

// handleBackup rewinds the time cursor, re-entering an earlier voice
// position.
func handleBackup(ctx *parseContext, node *etree.Element) error {
	delta, err := cursorDelta(ctx.measure, node)
	if err != nil {
		return err
	}
	return ctx.measure.changeTime(delta.Neg(delta))
}

func cursorDelta(measure *Measure, node *etree.Element) (*big.Rat, error) {
	durNode := node.SelectElement("duration")
	if durNode == nil {
		return nil, malformedf(measure, "%s without duration", node.Tag)
	}
	return measure.durationOf(durNode.Text())
}

// requiredLayoutValue reads a layout distance the chosen placement class
// cannot do without.
func requiredLayoutValue(measure *Measure, node *etree.Element, path string) (float64, error) {
	child := node.FindElement(path)
	if child == nil {
		return 0, malformedf(measure, "print is missing %s", path)
	}
	v, err := strconv.ParseFloat(child.Text(), 64)
	if err != nil {
		return 0, malformedf(measure, "unparsable %s %q", path, child.Text())
	}
	return v, nil
}

func isYes(value string) bool {
	return strings.EqualFold(value, "yes")
}
