package landmark

// Set is an ordered, fixed-length landmark sequence for one model kind.
// Its order is defined by the model and is never rearranged; stages only
// re-express the points in another coordinate frame.
type Set struct {
	Kind   Kind       `json:"kind" msgpack:"kind"`
	Points []Landmark `json:"points" msgpack:"points"`
}

// NewSet returns a zero-valued set of the right length for k.
func NewSet(k Kind) Set {
	return Set{Kind: k, Points: make([]Landmark, Count(k))}
}

// Len returns the number of entries including any trailing score entry.
func (s Set) Len() int {
	return len(s.Points)
}

// Score returns the aggregate score held in the trailing entry's X, or 0 for
// kinds without one.
func (s Set) Score() float64 {
	if !s.Kind.HasScoreEntry() || len(s.Points) == 0 {
		return 0
	}
	return s.Points[len(s.Points)-1].X
}

// SetScore writes the trailing score entry. It is a no-op for kinds without
// one.
func (s Set) SetScore(score float64) {
	if !s.Kind.HasScoreEntry() || len(s.Points) == 0 {
		return
	}
	s.Points[len(s.Points)-1] = Landmark{X: score, W: 1}
}

// Body returns the model-defined points without the trailing score entry.
func (s Set) Body() []Landmark {
	if s.Kind.HasScoreEntry() && len(s.Points) > 0 {
		return s.Points[:len(s.Points)-1]
	}
	return s.Points
}

// Clone returns a deep copy.
func (s Set) Clone() Set {
	out := Set{Kind: s.Kind, Points: make([]Landmark, len(s.Points))}
	copy(out.Points, s.Points)
	return out
}

// At returns the landmark at index i, or the zero landmark and false when i
// is out of range.
func (s Set) At(i int) (Landmark, bool) {
	if i < 0 || i >= len(s.Points) {
		return Landmark{}, false
	}
	return s.Points[i], true
}
