package spisimple

// ClearIRQ clears the IRQ vector bits set in mask. Bits not set in mask are
// left untouched.
func ClearIRQ(rw Registers, base uintptr, mask IRQ) {
	rw.Write32(base+RegIRQVec, uint32(mask))
}

// AckIRQ reads the IRQ vector and clears exactly the bits that were read.
// This is what an interrupt handler usually does first:
//
//	irq := spisimple.AckIRQ(rw, base)
//	if irq.Has(spisimple.IRQTransferDone) {
//		...
//	}
func AckIRQ(rw Registers, base uintptr) IRQ {
	irq := IRQVector(rw, base)
	if irq != 0 {
		ClearIRQ(rw, base, irq)
	}
	return irq
}

// SetIRQEnable sets which IRQ vector bits raise the interrupt line. The
// previous enable mask is replaced. Disabled bits are still latched in the
// vector. On reset all bits are disabled.
func SetIRQEnable(rw Registers, base uintptr, mask IRQ) {
	rw.Write32(base+RegIRQEna, uint32(mask))
}

// SetTxAlmostEmptyThreshold sets the TX FIFO level below which the TX almost
// empty condition is signaled.
func SetTxAlmostEmptyThreshold(rw Registers, base uintptr, threshold uint32) {
	rw.Write32(base+RegTxAlmEmptyLvl, threshold)
}

// SetRxAlmostFullThreshold sets the RX FIFO level at which the RX almost full
// condition is signaled.
func SetRxAlmostFullThreshold(rw Registers, base uintptr, threshold uint32) {
	rw.Write32(base+RegRxAlmFullLvl, threshold)
}

// Config holds the interrupt related configuration of a core.
type Config struct {
	// TxAlmostEmpty is the TX almost empty threshold.
	TxAlmostEmpty uint32
	// RxAlmostFull is the RX almost full threshold.
	RxAlmostFull uint32
	// IRQEnable selects the IRQ sources that raise the interrupt line.
	IRQEnable IRQ
	// ClearIRQ clears every latched IRQ flag before enabling interrupts.
	ClearIRQ bool
}

// Configure applies cfg to the core. Thresholds are written before the IRQ
// enable mask so that no interrupt fires against stale thresholds.
func Configure(rw Registers, base uintptr, cfg Config) {
	SetTxAlmostEmptyThreshold(rw, base, cfg.TxAlmostEmpty)
	SetRxAlmostFullThreshold(rw, base, cfg.RxAlmostFull)
	if cfg.ClearIRQ {
		ClearIRQ(rw, base, IRQAll)
	}
	SetIRQEnable(rw, base, cfg.IRQEnable)
}
