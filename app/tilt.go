package app

// Tilt remembers the loss of the last emulated move. It belongs to a single
// session and is only touched from that session's turn sequence.
type Tilt struct {
	last int
}

func (t *Tilt) Last() int { return t.last }

func (t *Tilt) Record(cpl int) {
	if cpl < 0 {
		cpl = 0
	}
	t.last = cpl
}

func (t *Tilt) Reset() { t.last = 0 }
