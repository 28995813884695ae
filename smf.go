package sheetmusic

import (
	"fmt"
	"io"
	"math/big"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	// exportTicksPerQuarter is the timing resolution of exported files.
	exportTicksPerQuarter = 480
	// nylonGuitarProgram is the GM program used for playback export.
	nylonGuitarProgram = 24
	exportChannel      = 0
	exportVelocity     = 96
)

// midiEvent is a MIDI message with absolute timing in ticks.
type midiEvent struct {
	Time    uint32
	Message smf.Message
}

// WriteMIDITo renders the sheet's note sequence as a Standard MIDI File.
// Every pitched note becomes a note-on/note-off pair; rests and layout
// carry no events. bpm sets the single tempo of the file.
func WriteMIDITo(writer io.Writer, sheet *Sheet, bpm float64) error {
	if sheet == nil {
		return fmt.Errorf("sheet is nil")
	}
	if bpm <= 0 {
		return fmt.Errorf("invalid tempo %v", bpm)
	}

	spans := sheet.NoteSequence()
	if len(spans) == 0 {
		return fmt.Errorf("no notes to export")
	}

	events := make([]midiEvent, 0, 2*len(spans))
	for _, span := range spans {
		key := span.Note.Pitch.MIDIKey()
		events = append(events,
			midiEvent{Time: ticksFromWhole(span.Start), Message: smf.Message(midi.NoteOn(exportChannel, key, exportVelocity))},
			midiEvent{Time: ticksFromWhole(span.End), Message: smf.Message(midi.NoteOff(exportChannel, key))},
		)
	}

	// Stable order: time ascending, note-offs ahead of note-ons at the
	// same tick so repeated pitches retrigger cleanly.
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Time != events[j].Time {
			return events[i].Time < events[j].Time
		}
		return isNoteOff(events[i].Message) && !isNoteOff(events[j].Message)
	})

	track := smf.Track{}
	name := sheet.Title
	if name == "" {
		name = "sheet"
	}
	track = append(track, smf.Event{Delta: 0, Message: smf.Message(smf.MetaTrackSequenceName(name))})
	track = append(track, smf.Event{Delta: 0, Message: smf.Message(smf.MetaTempo(bpm))})
	track = append(track, smf.Event{Delta: 0, Message: smf.Message(midi.ProgramChange(exportChannel, nylonGuitarProgram))})

	var lastTime uint32
	for _, event := range events {
		track = append(track, smf.Event{Delta: event.Time - lastTime, Message: event.Message})
		lastTime = event.Time
	}
	track = append(track, smf.Event{Delta: 0, Message: smf.EOT})

	out := smf.NewSMF1()
	out.TimeFormat = smf.MetricTicks(exportTicksPerQuarter)
	out.Add(track)

	if _, err := out.WriteTo(writer); err != nil {
		return fmt.Errorf("error writing MIDI file: %w", err)
	}
	return nil
}

// ticksFromWhole converts a whole-note fraction into ticks, rounding to
// the nearest tick.
func ticksFromWhole(t *big.Rat) uint32 {
	ticks := new(big.Rat).Mul(t, big.NewRat(4*exportTicksPerQuarter, 1))
	num := new(big.Int).Mul(ticks.Num(), big.NewInt(2))
	num.Add(num, ticks.Denom())
	den := new(big.Int).Mul(ticks.Denom(), big.NewInt(2))
	return uint32(new(big.Int).Quo(num, den).Int64())
}

func isNoteOff(msg smf.Message) bool {
	var ch, key, vel uint8
	if msg.GetNoteOff(&ch, &key, &vel) {
		return true
	}
	return msg.GetNoteOn(&ch, &key, &vel) && vel == 0
}
