package ink

// Buffer holds the strokes logged since the last erase plus the transient
// point accumulator used while a stroke is being built. It is not safe for
// concurrent use; the owner serializes access.
type Buffer struct {
	strokes []Stroke
	acc     builder
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

// LogStroke builds a stroke from parallel arrays and appends it to the
// session. On error the session is left untouched.
func (b *Buffer) LogStroke(xs, ys []float32, ts []int64) (Stroke, error) {
	if err := validate(xs, ys, ts); err != nil {
		return Stroke{}, err
	}

	b.acc.fill(xs, ys, ts)
	s := b.acc.build(ts != nil)
	b.strokes = append(b.strokes, s)

	return s, nil
}

// Erase resets the session.
func (b *Buffer) Erase() {
	b.strokes = nil
	b.acc.points = nil
}

// Ink returns a snapshot of the session. Appending to the buffer later
// never changes a snapshot already handed out.
func (b *Buffer) Ink() Ink {
	return Ink{strokes: b.strokes[:len(b.strokes):len(b.strokes)]}
}

// Len is the number of strokes in the session.
func (b *Buffer) Len() int {
	return len(b.strokes)
}

// Pending is the number of points sitting in the accumulator.
func (b *Buffer) Pending() int {
	return len(b.acc.points)
}
