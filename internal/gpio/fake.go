package gpio

// FakePin is a test double that records every level written to it.
type FakePin struct {
	// State is the most recently written level.
	State bool

	// Writes records every level passed to Set, in order.
	Writes []bool

	// SetError, if set, will be returned by Set()
	SetError error

	// Closed tracks if Close was called
	Closed bool
}

// Set records the write and updates State.
func (f *FakePin) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.State = on
	f.Writes = append(f.Writes, on)
	return nil
}

// Close marks the pin as closed.
func (f *FakePin) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded writes and state.
func (f *FakePin) Reset() {
	f.State = false
	f.Writes = nil
	f.Closed = false
}
