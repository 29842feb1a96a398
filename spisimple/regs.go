package spisimple

import (
	"strconv"
	"strings"
)

// Register offsets from the core's base address.
const (
	RegData          = 0x00 // transfer trigger on write, RX FIFO pop on read (RW)
	RegStatus        = 0x04 // FIFO and transfer flags, see Status (R)
	RegRxLevel       = 0x08 // RX FIFO occupancy (R)
	RegTxLevel       = 0x0C // TX FIFO occupancy (R)
	RegSlaveNr       = 0x10 // slave select index for following transfers (W)
	RegStoreRx       = 0x14 // 1 stores received words in the RX FIFO (W)
	RegTxAlmEmptyLvl = 0x18 // TX almost empty threshold (W)
	RegRxAlmFullLvl  = 0x1C // RX almost full threshold (W)
	RegIRQVec        = 0x20 // latched IRQ flags, write 1 to clear (RW)
	RegIRQEna        = 0x24 // IRQ enable mask (W)

	// RegWindow is the size in bytes of the register window.
	RegWindow = 0x28
)

// Status is a snapshot of the STATUS register.
type Status uint32

// STATUS register bits.
const (
	StatusTxEmpty       Status = 1 << 0
	StatusTxFull        Status = 1 << 1
	StatusTxAlmostEmpty Status = 1 << 2
	StatusRxEmpty       Status = 1 << 3
	StatusRxFull        Status = 1 << 4
	StatusRxAlmostFull  Status = 1 << 5
	StatusBusy          Status = 1 << 6
)

// TxEmpty returns true if the TX FIFO holds no words.
func (s Status) TxEmpty() bool { return s&StatusTxEmpty != 0 }

// TxFull returns true if the TX FIFO has no space left.
func (s Status) TxFull() bool { return s&StatusTxFull != 0 }

// TxAlmostEmpty returns true if the TX level is below its threshold.
func (s Status) TxAlmostEmpty() bool { return s&StatusTxAlmostEmpty != 0 }

// RxEmpty returns true if the RX FIFO holds no words.
func (s Status) RxEmpty() bool { return s&StatusRxEmpty != 0 }

// RxFull returns true if the RX FIFO has no space left.
func (s Status) RxFull() bool { return s&StatusRxFull != 0 }

// RxAlmostFull returns true if the RX level reached its threshold.
func (s Status) RxAlmostFull() bool { return s&StatusRxAlmostFull != 0 }

// Busy returns true while a transfer is being shifted out.
func (s Status) Busy() bool { return s&StatusBusy != 0 }

var statusNames = [...]string{
	"tx_empty",
	"tx_full",
	"tx_almost_empty",
	"rx_empty",
	"rx_full",
	"rx_almost_full",
	"busy",
}

// String returns the set flags joined by '|', e.g. "tx_empty|rx_empty".
func (s Status) String() string {
	return flagString(uint32(s), statusNames[:])
}

// IRQ is a bitmask over the IRQ vector and IRQ enable registers.
type IRQ uint32

// IRQ vector and enable bits.
const (
	IRQTxEmpty       IRQ = 1 << 0
	IRQTxAlmostEmpty IRQ = 1 << 1
	IRQTransferDone  IRQ = 1 << 2
	IRQRxFull        IRQ = 1 << 3
	IRQRxAlmostFull  IRQ = 1 << 4

	// IRQAll selects every interrupt source of the core.
	IRQAll = IRQRxAlmostFull<<1 - 1
)

var irqNames = [...]string{
	"tx_empty",
	"tx_almost_empty",
	"transfer_done",
	"rx_full",
	"rx_almost_full",
}

// Has reports whether all bits of mask are set in irq.
func (irq IRQ) Has(mask IRQ) bool { return irq&mask == mask }

// String returns the set flags joined by '|', e.g. "transfer_done|rx_full".
func (irq IRQ) String() string {
	return flagString(uint32(irq), irqNames[:])
}

func flagString(v uint32, names []string) string {
	if v == 0 {
		return "0"
	}
	var sb strings.Builder
	for i, name := range names {
		if v&(1<<i) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(name)
		v &^= 1 << i
	}
	if v != 0 {
		// Bits the core does not define.
		if sb.Len() > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString("0x")
		sb.WriteString(strconv.FormatUint(uint64(v), 16))
	}
	return sb.String()
}
