package spisimple

// Poller controls how a Core waits on the hardware.
//
// The zero value spins on the STATUS register until the awaited condition is
// reached, without bound. This is what the package level functions do and what
// bare-metal targets without a scheduler want.
type Poller struct {
	// Yield, if set, is called between two STATUS reads, e.g. runtime.Gosched.
	Yield func()
	// MaxPolls bounds the number of STATUS reads of a single wait. Waits
	// exceeding it fail with ErrTimeout. Zero or negative means no bound.
	MaxPolls int
}

// waitClear polls STATUS until none of the bits in mask is set.
func (p Poller) waitClear(rw Registers, base uintptr, mask Status) error {
	for polls := 1; StatusReg(rw, base)&mask != 0; polls++ {
		if p.MaxPolls > 0 && polls >= p.MaxPolls {
			return ErrTimeout
		}
		if p.Yield != nil {
			p.Yield()
		}
	}
	return nil
}
