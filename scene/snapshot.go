package scene

type (
	// LayerState is the serializable view of a layer.
	LayerState struct {
		Kind        LayerKind `json:"kind"`
		Source      string    `json:"source"`
		Natural     Size      `json:"natural"`
		Transform   Transform `json:"transform"`
		Z           int       `json:"z"`
		Interactive bool      `json:"interactive"`
		Bounds      Rect      `json:"bounds"`
	}

	// Snapshot is the serializable view of a scene.
	Snapshot struct {
		Canvas    Size         `json:"canvas"`
		Layers    []LayerState `json:"layers"`
		Selection LayerKind    `json:"selection"`
	}
)

// Snapshot captures the current scene state in render order.
func (s *Scene) Snapshot() Snapshot {
	snap := Snapshot{
		Canvas:    s.canvas,
		Layers:    make([]LayerState, 0, len(s.layers)),
		Selection: s.selected,
	}
	for _, l := range s.layers {
		snap.Layers = append(snap.Layers, LayerState{
			Kind:        l.Kind,
			Source:      l.Source.Name,
			Natural:     l.Source.Size(),
			Transform:   l.Transform,
			Z:           l.Z,
			Interactive: l.Interactive,
			Bounds:      l.Bounds(),
		})
	}
	return snap
}
