package backbeat

type (
	// Track is the mixdown view of one track: its audio clips, whatever note
	// containers it carries, and the mix controls. The renderer and the live
	// engine both consume tracks as plain data; the UI layer owns their
	// editing.
	Track struct {
		Name   string  `yaml:"name,omitempty"`
		Clips  []Clip  `yaml:"clips,omitempty"`
		Volume float64 `yaml:"volume"`
		Pan    float64 `yaml:"pan"` // -1 full left .. +1 full right
		Muted  bool    `yaml:"muted,omitempty"`
		Soloed bool    `yaml:"soloed,omitempty"`

		// The note containers, any combination of which may be present.
		Notes       NoteList            `yaml:"notes,omitempty"`
		ClipNotes   []ClipNotes         `yaml:"clipNotes,omitempty"`
		Events      EventStream         `yaml:"events,omitempty"`
		Grid        *StepGrid           `yaml:"grid,omitempty"`
		Arrangement *PatternArrangement `yaml:"arrangement,omitempty"`
	}

	// Project ties tracks to the timing context; this is what the render CLI
	// reads and writes.
	Project struct {
		Tempo  Tempo   `yaml:"tempo"`
		Tracks []Track `yaml:"tracks"`
	}
)

// HasNoteContent reports whether the track carries any note container with
// content, without resolving it.
func (t *Track) HasNoteContent() bool {
	if len(t.Notes) > 0 || len(t.Events) > 0 {
		return true
	}
	for _, c := range t.ClipNotes {
		if len(c.Notes) > 0 {
			return true
		}
	}
	if t.Grid != nil && len(t.Grid.Rows) > 0 {
		return true
	}
	if t.Arrangement != nil && len(t.Arrangement.Order) > 0 {
		return true
	}
	return false
}

// Included reports whether the track takes part in a mix: it must be unmuted,
// pass the solo rule (if any track is soloed, only soloed tracks play) and
// have audible content.
func (t *Track) Included(anySolo bool) bool {
	if t.Muted {
		return false
	}
	if anySolo && !t.Soloed {
		return false
	}
	return len(t.Clips) > 0 || t.HasNoteContent()
}

// AnySolo reports whether any of the tracks is soloed.
func AnySolo(tracks []Track) bool {
	for i := range tracks {
		if tracks[i].Soloed {
			return true
		}
	}
	return false
}

// AudioEnd returns the timeline position where the last audio clip of the
// track ends.
func (t *Track) AudioEnd() float64 {
	var end float64
	for _, c := range t.Clips {
		if e := c.End(); e > end {
			end = e
		}
	}
	return end
}

// NoteEnd returns the time the last resolved note of the track stops.
func (t *Track) NoteEnd(tempo Tempo) float64 {
	var end float64
	for _, n := range t.ResolveNotes(tempo) {
		if e := n.End(); e > end {
			end = e
		}
	}
	return end
}

// VolumeOrUnity returns the track volume, treating the zero value as unity
// gain so plain data with the field absent plays at full level.
func (t *Track) VolumeOrUnity() float64 {
	if t.Volume == 0 {
		return 1
	}
	return t.Volume
}
