package orders

import "time"

// NewSequenceIDGenerator returns a generator whose suffixes come from seq in order,
// repeating the last one once exhausted.
func NewSequenceIDGenerator(prefix string, loc *time.Location, seq ...int) *IDGenerator {
	g := NewIDGenerator(prefix, loc)
	i := 0
	g.randN = func(int) int {
		n := seq[i]
		if i < len(seq)-1 {
			i++
		}
		return n
	}
	return g
}
