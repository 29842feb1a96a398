package spisimple

// StatusReg reads the STATUS register.
func StatusReg(rw Registers, base uintptr) Status {
	return Status(rw.Read32(base + RegStatus))
}

// IsTxFIFOFull returns true if the TX FIFO has no space left.
func IsTxFIFOFull(rw Registers, base uintptr) bool {
	return StatusReg(rw, base).TxFull()
}

// IsTxFIFOEmpty returns true if the TX FIFO is empty.
func IsTxFIFOEmpty(rw Registers, base uintptr) bool {
	return StatusReg(rw, base).TxEmpty()
}

// IsRxFIFOEmpty returns true if the RX FIFO holds no data.
func IsRxFIFOEmpty(rw Registers, base uintptr) bool {
	return StatusReg(rw, base).RxEmpty()
}

// IsRxFIFOFull returns true if the RX FIFO is full.
func IsRxFIFOFull(rw Registers, base uintptr) bool {
	return StatusReg(rw, base).RxFull()
}

// IsBusy returns true while one or more transfers are ongoing.
func IsBusy(rw Registers, base uintptr) bool {
	return StatusReg(rw, base).Busy()
}

// RxFIFOLevel returns the number of words in the RX FIFO.
func RxFIFOLevel(rw Registers, base uintptr) uint32 {
	return rw.Read32(base + RegRxLevel)
}

// TxFIFOLevel returns the number of words in the TX FIFO.
func TxFIFOLevel(rw Registers, base uintptr) uint32 {
	return rw.Read32(base + RegTxLevel)
}

// IRQVector reads the latched IRQ flags. Flags are latched whether or not
// they are enabled.
func IRQVector(rw Registers, base uintptr) IRQ {
	return IRQ(rw.Read32(base + RegIRQVec))
}
