// Package spisimple drives the "SPI-simple" memory-mapped SPI master core.
//
// The driver is stateless: every function takes the register accessor and the
// base address of the core and all state lives in the hardware registers.
// Callers owning a core from more than one goroutine or interrupt handler must
// serialize access to it themselves.
//
// Transfers are issued by writing the DATA register after the slave index and
// the store-RX flag have been configured. Words received for transfers issued
// with store-RX enabled are queued in the RX FIFO in issue order and popped
// with [RxData]. The driver has no way to tag RX entries; see
// [github.com/tinygo-org/spisimple/spisimple/spilib.Tracker] for a helper
// that keeps that bookkeeping.
package spisimple

import (
	"errors"
	"strconv"
)

// Registers performs 32 bit register accesses on behalf of the driver.
// Implementations must perform every access exactly once and in program order,
// i.e. behave like volatile memory accesses.
type Registers interface {
	Read32(addr uintptr) uint32
	Write32(addr uintptr, value uint32)
}

// ErrCode is the error type returned by the driver. Its numeric value matches
// the return codes of the vendor C driver so that logs from both can be
// correlated.
type ErrCode int8

// Driver errors.
const (
	// ErrTxFIFOFull is returned when a transfer is issued without space in the TX FIFO.
	ErrTxFIFOFull ErrCode = -1
	// ErrRxFIFOFull is returned when an RX transfer is issued with a full RX FIFO.
	ErrRxFIFOFull ErrCode = -2
	// ErrRxFIFONotEmpty is returned by blocking RX transfers while stale RX data is queued.
	ErrRxFIFONotEmpty ErrCode = -3
	// ErrRxFIFOEmpty is returned when popping RX data from an empty RX FIFO.
	ErrRxFIFOEmpty ErrCode = -4
	// ErrTimeout is returned by a Core with a bounded Poller when the core
	// does not reach the awaited state in time. The package level functions
	// never return it.
	ErrTimeout ErrCode = -5
)

func (e ErrCode) Error() string {
	switch e {
	case ErrTxFIFOFull:
		return "spisimple: tx fifo full"
	case ErrRxFIFOFull:
		return "spisimple: rx fifo full"
	case ErrRxFIFONotEmpty:
		return "spisimple: rx fifo not empty"
	case ErrRxFIFOEmpty:
		return "spisimple: rx fifo empty"
	case ErrTimeout:
		return "spisimple: timeout waiting on core"
	}
	return "spisimple: error " + strconv.Itoa(int(e))
}

// CodeUnknown is the code Code returns for errors not produced by the driver.
const CodeUnknown = -128

// Code returns the numeric return code of the vendor C driver for err: 0 for
// nil, the ErrCode value for driver errors, wrapped or not, and CodeUnknown
// otherwise.
func Code(err error) int {
	if err == nil {
		return 0
	}
	var code ErrCode
	if errors.As(err, &code) {
		return int(code)
	}
	return CodeUnknown
}

// TxBlocking transmits txData to slave and discards the received word.
// It waits for space in the TX FIFO and returns once the word has been
// shifted out completely.
func TxBlocking(rw Registers, base uintptr, slave uint8, txData uint32) error {
	return txBlocking(rw, base, slave, txData, Poller{})
}

func txBlocking(rw Registers, base uintptr, slave uint8, txData uint32, p Poller) error {
	setSlaveNr(rw, base, slave)
	setStoreRx(rw, base, false)

	if err := p.waitClear(rw, base, StatusTxFull); err != nil {
		return err
	}
	// Checks for space again: a second writer on the core surfaces as
	// ErrTxFIFOFull.
	if err := TxNonBlocking(rw, base, slave, txData); err != nil {
		return err
	}
	return p.waitClear(rw, base, StatusBusy)
}

// RxTxBlocking transmits txData to slave and returns the word received during
// the transfer.
//
// The core must be idle with an empty RX FIFO: queued RX data could not be
// told apart from the result of this transfer, so ErrRxFIFONotEmpty is
// returned without touching any register in that case.
func RxTxBlocking(rw Registers, base uintptr, slave uint8, txData uint32) (uint32, error) {
	return rxTxBlocking(rw, base, slave, txData, Poller{})
}

func rxTxBlocking(rw Registers, base uintptr, slave uint8, txData uint32, p Poller) (uint32, error) {
	// Ongoing transfers may still push RX data.
	if err := p.waitClear(rw, base, StatusBusy); err != nil {
		return 0, err
	}
	if !IsRxFIFOEmpty(rw, base) {
		return 0, ErrRxFIFONotEmpty
	}

	setSlaveNr(rw, base, slave)
	setStoreRx(rw, base, true)

	if err := RxTxNonBlocking(rw, base, slave, txData); err != nil {
		return 0, err
	}
	if err := p.waitClear(rw, base, StatusBusy); err != nil {
		return 0, err
	}
	return RxData(rw, base)
}

// TxNonBlocking starts a TX-only transfer of txData to slave and returns
// immediately. It fails with ErrTxFIFOFull if the TX FIFO has no space.
func TxNonBlocking(rw Registers, base uintptr, slave uint8, txData uint32) error {
	if IsTxFIFOFull(rw, base) {
		return ErrTxFIFOFull
	}
	setSlaveNr(rw, base, slave)
	setStoreRx(rw, base, false)
	rw.Write32(base+RegData, txData)
	return nil
}

// RxTxNonBlocking starts a transfer of txData to slave whose received word is
// stored in the RX FIFO, and returns immediately. The received word can be
// read with RxData once the transfer completed.
//
// Only the current RX FIFO fill state is checked. With several transfers
// outstanding the RX FIFO can still overflow; preventing that is up to the
// caller.
func RxTxNonBlocking(rw Registers, base uintptr, slave uint8, txData uint32) error {
	if IsTxFIFOFull(rw, base) {
		return ErrTxFIFOFull
	}
	if IsRxFIFOFull(rw, base) {
		return ErrRxFIFOFull
	}
	setSlaveNr(rw, base, slave)
	setStoreRx(rw, base, true)
	rw.Write32(base+RegData, txData)
	return nil
}

// RxData pops the oldest word from the RX FIFO. RX data is returned in the
// order the transfers were started.
func RxData(rw Registers, base uintptr) (uint32, error) {
	if IsRxFIFOEmpty(rw, base) {
		return 0, ErrRxFIFOEmpty
	}
	return rw.Read32(base + RegData), nil
}

func setSlaveNr(rw Registers, base uintptr, slave uint8) {
	rw.Write32(base+RegSlaveNr, uint32(slave))
}

func setStoreRx(rw Registers, base uintptr, storeRx bool) {
	rw.Write32(base+RegStoreRx, boolToBit(storeRx))
}

func boolToBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
