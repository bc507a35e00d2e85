// Package midi derives song metadata from Standard MIDI Files.
package midi

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const defaultBPM = 120.0

// ErrUnsupportedTiming is returned for files using SMPTE time division.
var ErrUnsupportedTiming = errors.New("midi: SMPTE time division is not supported")

// Info summarizes a MIDI file.
type Info struct {
	// Duration is the playing time in seconds up to the last event of the
	// longest track, honouring every tempo change.
	Duration float64
	// Tracks counts tracks that contain at least one sounding note.
	Tracks int
}

type tempoChange struct {
	tick uint64
	bpm  float64
}

// Analyze parses data and returns its duration and note-bearing track count.
func Analyze(data []byte) (Info, error) {
	file, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("midi: parse: %w", err)
	}
	ticks, ok := file.TimeFormat.(smf.MetricTicks)
	if !ok {
		return Info{}, ErrUnsupportedTiming
	}
	resolution := float64(ticks.Resolution())
	if resolution == 0 {
		return Info{}, errors.New("midi: zero ticks per quarter note")
	}

	var (
		tempos  []tempoChange
		endTick uint64
		tracks  int
	)
	for _, track := range file.Tracks {
		var abs uint64
		hasNotes := false
		for _, ev := range track {
			abs += uint64(ev.Delta)
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) && bpm > 0 {
				tempos = append(tempos, tempoChange{tick: abs, bpm: bpm})
				continue
			}
			var channel, key, velocity uint8
			if gomidi.Message(ev.Message).GetNoteOn(&channel, &key, &velocity) && velocity > 0 {
				hasNotes = true
			}
		}
		if abs > endTick {
			endTick = abs
		}
		if hasNotes {
			tracks++
		}
	}

	return Info{
		Duration: walkTempoMap(tempos, endTick, resolution),
		Tracks:   tracks,
	}, nil
}

// Duration returns the playing time of data in seconds.
func Duration(data []byte) (float64, error) {
	info, err := Analyze(data)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

// walkTempoMap converts endTick into seconds. Tempo changes may come from any
// track; a later change at the same tick replaces an earlier one.
func walkTempoMap(tempos []tempoChange, endTick uint64, resolution float64) float64 {
	sort.SliceStable(tempos, func(i, j int) bool { return tempos[i].tick < tempos[j].tick })

	seconds := 0.0
	bpm := defaultBPM
	var cursor uint64
	for _, change := range tempos {
		if change.tick >= endTick {
			break
		}
		seconds += float64(change.tick-cursor) / resolution * 60 / bpm
		cursor = change.tick
		bpm = change.bpm
	}
	seconds += float64(endTick-cursor) / resolution * 60 / bpm
	return seconds
}
