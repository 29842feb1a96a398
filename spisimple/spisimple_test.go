package spisimple_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tinygo-org/spisimple/spisimple"
	"github.com/tinygo-org/spisimple/spisimple/sim"
)

const base = 0x43c0_0000

func TestTxNonBlocking_fifoFull(t *testing.T) {
	core := sim.New(base, sim.WithDepth(4, 4))
	if err := spisimple.TxNonBlocking(core, base, 1, 0xaa); err != nil {
		t.Fatal(err)
	}
	core.Hold(true)
	core.SetTxLevel(4)
	core.ResetLog()

	err := spisimple.TxNonBlocking(core, base, 1, 0xbb)
	if err != spisimple.ErrTxFIFOFull {
		t.Fatalf("want ErrTxFIFOFull, got %v", err)
	}
	if w := core.Writes(); len(w) != 0 {
		t.Errorf("expected no register writes after failed precondition, got %v", w)
	}
	if tx, _ := core.Overflows(); tx != 0 {
		t.Errorf("tx fifo overflowed %d times", tx)
	}
}

func TestRxTxNonBlocking_fifoOrder(t *testing.T) {
	const depth = 8
	core := sim.New(base, sim.WithDepth(depth, depth), sim.WithResponder(func(slave uint8, tx uint32) uint32 {
		return ^tx + uint32(slave)
	}))
	var want []uint32
	for i := uint32(0); i < depth; i++ {
		tx := 0x1000 + i*7
		if err := spisimple.RxTxNonBlocking(core, base, 3, tx); err != nil {
			t.Fatalf("transfer %d: %v", i, err)
		}
		want = append(want, ^tx+3)
	}
	for spisimple.IsBusy(core, base) {
	}
	var got []uint32
	for i := 0; i < depth; i++ {
		rx, err := spisimple.RxData(core, base)
		if err != nil {
			t.Fatalf("pop %d: %v", i, err)
		}
		got = append(got, rx)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rx data mismatch (-want +got):\n%s", diff)
	}
	if _, err := spisimple.RxData(core, base); err != spisimple.ErrRxFIFOEmpty {
		t.Errorf("want ErrRxFIFOEmpty after draining, got %v", err)
	}
}

func TestRxTxNonBlocking_rxFull(t *testing.T) {
	core := sim.New(base, sim.WithDepth(4, 2))
	core.PushRx(1, 2)
	core.ResetLog()
	err := spisimple.RxTxNonBlocking(core, base, 0, 0x55)
	if err != spisimple.ErrRxFIFOFull {
		t.Fatalf("want ErrRxFIFOFull, got %v", err)
	}
	if w := core.Writes(); len(w) != 0 {
		t.Errorf("expected no writes, got %v", w)
	}

	core.Hold(true)
	core.SetTxLevel(4)
	if err := spisimple.RxTxNonBlocking(core, base, 0, 0x55); err != spisimple.ErrTxFIFOFull {
		t.Fatalf("TX full must be reported before RX full, got %v", err)
	}
}

func TestRxData_empty(t *testing.T) {
	core := sim.New(base)
	before := core.Status()
	rx, err := spisimple.RxData(core, base)
	if err != spisimple.ErrRxFIFOEmpty {
		t.Fatalf("want ErrRxFIFOEmpty, got %v", err)
	}
	if rx != 0 {
		t.Errorf("want zero word on error, got %#x", rx)
	}
	if after := core.Status(); after != before {
		t.Errorf("status changed %v -> %v", before, after)
	}
	if n := core.Underflows(); n != 0 {
		t.Errorf("DATA was read %d times on an empty fifo", n)
	}
	if diff := cmp.Diff([]uint32(nil), core.RxFIFO()); diff != "" {
		t.Error(diff)
	}
}

func TestRxTxBlocking_staleRxData(t *testing.T) {
	core := sim.New(base)
	core.PushRx(0xdead)
	core.ResetLog()
	_, err := spisimple.RxTxBlocking(core, base, 2, 0x1234)
	if err != spisimple.ErrRxFIFONotEmpty {
		t.Fatalf("want ErrRxFIFONotEmpty, got %v", err)
	}
	for _, off := range []uintptr{spisimple.RegSlaveNr, spisimple.RegStoreRx, spisimple.RegData} {
		if w := core.Written(off); len(w) != 0 {
			t.Errorf("register 0x%x written: %v", off, w)
		}
	}
	if diff := cmp.Diff([]uint32{0xdead}, core.RxFIFO()); diff != "" {
		t.Errorf("stale entry must be kept:\n%s", diff)
	}
}

func TestTxBlocking(t *testing.T) {
	const cycles = 5
	core := sim.New(base, sim.WithCyclesPerWord(cycles))
	core.ResetLog()
	if err := spisimple.TxBlocking(core, base, 7, 0xcafe); err != nil {
		t.Fatal(err)
	}
	if core.Busy() {
		t.Error("returned while core busy")
	}
	if core.Completed() != 1 {
		t.Errorf("want 1 completed word, got %d", core.Completed())
	}
	if n := core.StatusReads(); n < cycles {
		t.Errorf("returned after %d status reads, shifting takes %d", n, cycles)
	}

	want := []sim.Access{
		{Write: true, Offset: spisimple.RegSlaveNr, Value: 7},
		{Write: true, Offset: spisimple.RegStoreRx, Value: 0},
		{Write: true, Offset: spisimple.RegSlaveNr, Value: 7},
		{Write: true, Offset: spisimple.RegStoreRx, Value: 0},
		{Write: true, Offset: spisimple.RegData, Value: 0xcafe},
	}
	if diff := cmp.Diff(want, core.Writes()); diff != "" {
		t.Errorf("write sequence mismatch (-want +got):\n%s", diff)
	}
	if rx := core.RxFIFO(); len(rx) != 0 {
		t.Errorf("TX-only transfer stored RX data %v", rx)
	}
}

func TestTxBlocking_waitsForSpace(t *testing.T) {
	core := sim.New(base, sim.WithDepth(2, 2), sim.WithCyclesPerWord(3))
	for i := uint32(0); i < 6; i++ {
		if err := spisimple.TxBlocking(core, base, 0, i); err != nil {
			t.Fatalf("word %d: %v", i, err)
		}
	}
	if tx, _ := core.Overflows(); tx != 0 {
		t.Errorf("tx overflows: %d", tx)
	}
	if diff := cmp.Diff([]uint32{0, 1, 2, 3, 4, 5}, core.Written(spisimple.RegData)); diff != "" {
		t.Error(diff)
	}
}

// scripted answers STATUS reads from a fixed sequence and records writes.
type scripted struct {
	status []spisimple.Status
	writes []sim.Access
}

func (s *scripted) Read32(addr uintptr) uint32 {
	if addr-base != spisimple.RegStatus {
		return 0
	}
	if len(s.status) == 0 {
		panic("scripted: out of status values")
	}
	v := s.status[0]
	s.status = s.status[1:]
	return uint32(v)
}

func (s *scripted) Write32(addr uintptr, v uint32) {
	s.writes = append(s.writes, sim.Access{Write: true, Offset: addr - base, Value: v})
}

func TestTxBlocking_fullOnRecheck(t *testing.T) {
	// Another writer fills the FIFO between the wait and the transfer.
	rw := &scripted{status: []spisimple.Status{
		spisimple.StatusTxFull | spisimple.StatusBusy,
		spisimple.StatusBusy,
		spisimple.StatusTxFull | spisimple.StatusBusy,
	}}
	err := spisimple.TxBlocking(rw, base, 1, 0xff)
	if err != spisimple.ErrTxFIFOFull {
		t.Fatalf("want ErrTxFIFOFull, got %v", err)
	}
	for _, w := range rw.writes {
		if w.Offset == spisimple.RegData {
			t.Fatalf("DATA written despite full fifo: %v", rw.writes)
		}
	}
}

func TestRxTxBlocking(t *testing.T) {
	core := sim.New(base, sim.WithCyclesPerWord(4), sim.WithResponder(func(slave uint8, tx uint32) uint32 {
		return tx<<8 | uint32(slave)
	}))
	// Leave a TX-only transfer in flight; the call must wait for it.
	if err := spisimple.TxNonBlocking(core, base, 9, 0x77); err != nil {
		t.Fatal(err)
	}
	core.ResetLog()
	rx, err := spisimple.RxTxBlocking(core, base, 2, 0x1234)
	if err != nil {
		t.Fatal(err)
	}
	if rx != 0x123402 {
		t.Errorf("got rx %#x", rx)
	}
	want := []sim.Access{
		{Write: true, Offset: spisimple.RegSlaveNr, Value: 2},
		{Write: true, Offset: spisimple.RegStoreRx, Value: 1},
		{Write: true, Offset: spisimple.RegSlaveNr, Value: 2},
		{Write: true, Offset: spisimple.RegStoreRx, Value: 1},
		{Write: true, Offset: spisimple.RegData, Value: 0x1234},
	}
	if diff := cmp.Diff(want, core.Writes()); diff != "" {
		t.Errorf("write sequence mismatch (-want +got):\n%s", diff)
	}
	if core.Completed() != 2 || core.Busy() {
		t.Errorf("completed=%d busy=%v", core.Completed(), core.Busy())
	}
	if !spisimple.IsRxFIFOEmpty(core, base) {
		t.Error("rx fifo not drained")
	}
}

func TestRxTxBlocking_noRxData(t *testing.T) {
	// The core reports idle with an empty RX FIFO after the transfer.
	idle := spisimple.StatusTxEmpty | spisimple.StatusRxEmpty
	rw := &scripted{status: []spisimple.Status{idle, idle, idle, idle, idle, idle}}
	_, err := spisimple.RxTxBlocking(rw, base, 0, 1)
	if err != spisimple.ErrRxFIFOEmpty {
		t.Fatalf("want ErrRxFIFOEmpty, got %v", err)
	}
}

func TestTxAlmostEmptyThreshold(t *testing.T) {
	const threshold = 4
	core := sim.New(base)
	core.Hold(true)
	spisimple.SetTxAlmostEmptyThreshold(core, base, threshold)
	for level := 0; level <= 8; level++ {
		core.SetTxLevel(level)
		got := spisimple.StatusReg(core, base).TxAlmostEmpty()
		if want := level < threshold; got != want {
			t.Errorf("level %d: tx_almost_empty=%v, want %v", level, got, want)
		}
		if lvl := spisimple.TxFIFOLevel(core, base); lvl != uint32(level) {
			t.Errorf("level register %d, want %d", lvl, level)
		}
	}
}

func TestRxAlmostFullThreshold(t *testing.T) {
	const threshold = 3
	core := sim.New(base)
	spisimple.SetRxAlmostFullThreshold(core, base, threshold)
	for level := 1; level <= 6; level++ {
		core.PushRx(uint32(level))
		got := spisimple.StatusReg(core, base).RxAlmostFull()
		if want := level >= threshold; got != want {
			t.Errorf("level %d: rx_almost_full=%v, want %v", level, got, want)
		}
	}
	if lvl := spisimple.RxFIFOLevel(core, base); lvl != 6 {
		t.Errorf("rx level %d", lvl)
	}
	if vec := spisimple.IRQVector(core, base); !vec.Has(spisimple.IRQRxAlmostFull) {
		t.Errorf("rx almost full not latched: %v", vec)
	}
}

func TestClearIRQ(t *testing.T) {
	core := sim.New(base)
	core.LatchIRQ(spisimple.IRQTxEmpty | spisimple.IRQTransferDone)
	vec := spisimple.IRQVector(core, base)
	// Fires after the vector was read, must survive the clear.
	core.LatchIRQ(spisimple.IRQRxFull)
	spisimple.ClearIRQ(core, base, vec)
	if got := spisimple.IRQVector(core, base); got != spisimple.IRQRxFull {
		t.Errorf("got vector %v, want %v", got, spisimple.IRQRxFull)
	}
}

func TestAckIRQ(t *testing.T) {
	core := sim.New(base)
	if err := spisimple.TxBlocking(core, base, 0, 1); err != nil {
		t.Fatal(err)
	}
	irq := spisimple.AckIRQ(core, base)
	if !irq.Has(spisimple.IRQTransferDone | spisimple.IRQTxEmpty) {
		t.Errorf("got %v", irq)
	}
	if vec, _ := core.IRQ(); vec != 0 {
		t.Errorf("vector not cleared: %v", vec)
	}
	core.ResetLog()
	if irq := spisimple.AckIRQ(core, base); irq != 0 {
		t.Errorf("got %v", irq)
	}
	if w := core.Writes(); len(w) != 0 {
		t.Errorf("empty vector must not be written: %v", w)
	}
}

func TestSetIRQEnable_replaces(t *testing.T) {
	core := sim.New(base)
	spisimple.SetIRQEnable(core, base, spisimple.IRQTransferDone|spisimple.IRQRxFull)
	spisimple.SetIRQEnable(core, base, spisimple.IRQRxFull)
	if _, ena := core.IRQ(); ena != spisimple.IRQRxFull {
		t.Fatalf("enable mask %v", ena)
	}
	core.LatchIRQ(spisimple.IRQTransferDone)
	if core.IRQPending() {
		t.Error("disabled source raised the interrupt line")
	}
	core.LatchIRQ(spisimple.IRQRxFull)
	if !core.IRQPending() {
		t.Error("enabled source did not raise the interrupt line")
	}
}

func TestConfigure(t *testing.T) {
	core := sim.New(base)
	core.LatchIRQ(spisimple.IRQAll)
	core.ResetLog()
	spisimple.Configure(core, base, spisimple.Config{
		TxAlmostEmpty: 2,
		RxAlmostFull:  12,
		IRQEnable:     spisimple.IRQRxAlmostFull | spisimple.IRQTransferDone,
		ClearIRQ:      true,
	})
	want := []sim.Access{
		{Write: true, Offset: spisimple.RegTxAlmEmptyLvl, Value: 2},
		{Write: true, Offset: spisimple.RegRxAlmFullLvl, Value: 12},
		{Write: true, Offset: spisimple.RegIRQVec, Value: uint32(spisimple.IRQAll)},
		{Write: true, Offset: spisimple.RegIRQEna, Value: uint32(spisimple.IRQRxAlmostFull | spisimple.IRQTransferDone)},
	}
	if diff := cmp.Diff(want, core.Writes()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if core.IRQPending() {
		t.Error("latched flags not cleared")
	}
}

func TestCore_pollerTimeout(t *testing.T) {
	core := sim.New(base)
	core.Hold(true)
	yields := 0
	c := spisimple.NewCore(core, base).WithPoller(spisimple.Poller{
		Yield:    func() { yields++ },
		MaxPolls: 10,
	})
	err := c.TxBlocking(0, 1)
	if err != spisimple.ErrTimeout {
		t.Fatalf("want ErrTimeout, got %v", err)
	}
	if yields != 9 {
		t.Errorf("want 9 yields, got %d", yields)
	}
	core.Hold(false)
	if err := c.WaitIdle(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.RxTxBlocking(0, 2); err != nil {
		t.Fatal(err)
	}
}

func TestCore(t *testing.T) {
	core := sim.New(base, sim.WithDepth(4, 4))
	c := spisimple.NewCore(core, base)
	if !c.IsValid() || c.Base() != base || c.Registers() != spisimple.Registers(core) {
		t.Fatal("bad handle")
	}
	if s := c.String(); s != "spisimple@0x43c00000" {
		t.Errorf("got %q", s)
	}
	if (spisimple.Core{}).IsValid() {
		t.Error("zero Core must be invalid")
	}
	c.Configure(spisimple.Config{TxAlmostEmpty: 1, RxAlmostFull: 2})
	if tx, rx := core.Thresholds(); tx != 1 || rx != 2 {
		t.Errorf("thresholds %d %d", tx, rx)
	}
	for i := uint32(1); i <= 3; i++ {
		if err := c.RxTxNonBlocking(5, i); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.TxNonBlocking(5, 4); err != nil {
		t.Fatal(err)
	}
	if err := c.WaitIdle(); err != nil {
		t.Fatal(err)
	}
	if c.IsBusy() || !c.IsTxFIFOEmpty() || c.IsTxFIFOFull() || c.IsRxFIFOFull() {
		t.Errorf("unexpected status %v", c.Status())
	}
	if c.RxFIFOLevel() != 3 || c.TxFIFOLevel() != 0 {
		t.Errorf("levels rx=%d tx=%d", c.RxFIFOLevel(), c.TxFIFOLevel())
	}
	for i := uint32(1); i <= 3; i++ {
		rx, err := c.RxData()
		if err != nil || rx != i {
			t.Fatalf("pop %d: %#x %v", i, rx, err)
		}
	}
	if !c.IsRxFIFOEmpty() {
		t.Error("rx not empty")
	}
	c.SetIRQEnable(spisimple.IRQTransferDone)
	if !core.IRQPending() {
		t.Error("transfer done not pending")
	}
	if irq := c.AckIRQ(); !irq.Has(spisimple.IRQTransferDone) {
		t.Errorf("got %v", irq)
	}
	c.SetTxAlmostEmptyThreshold(3)
	c.SetRxAlmostFullThreshold(3)
	core.LatchIRQ(spisimple.IRQTxEmpty)
	c.ClearIRQ(spisimple.IRQTxEmpty)
	if c.IRQVector() != 0 {
		t.Errorf("vector %v", c.IRQVector())
	}
}

func TestErrCode(t *testing.T) {
	for _, test := range []struct {
		err  spisimple.ErrCode
		code int
	}{
		{spisimple.ErrTxFIFOFull, -1},
		{spisimple.ErrRxFIFOFull, -2},
		{spisimple.ErrRxFIFONotEmpty, -3},
		{spisimple.ErrRxFIFOEmpty, -4},
		{spisimple.ErrTimeout, -5},
	} {
		if int(test.err) != test.code {
			t.Errorf("%v: code %d, want %d", test.err, int(test.err), test.code)
		}
		wrapped := fmt.Errorf("flash write: %w", test.err)
		if !errors.Is(wrapped, test.err) {
			t.Errorf("%v not matched through wrapping", test.err)
		}
		var code spisimple.ErrCode
		if !errors.As(wrapped, &code) || code != test.err {
			t.Errorf("errors.As: %v", code)
		}
		if got := spisimple.Code(test.err); got != test.code {
			t.Errorf("Code(%v) = %d, want %d", test.err, got, test.code)
		}
		if got := spisimple.Code(wrapped); got != test.code {
			t.Errorf("Code(%q) = %d, want %d", wrapped, got, test.code)
		}
	}
	if got := spisimple.Code(nil); got != 0 {
		t.Errorf("Code(nil) = %d", got)
	}
	if got := spisimple.Code(errors.New("bus fault")); got != spisimple.CodeUnknown {
		t.Errorf("Code of foreign error = %d", got)
	}
	if s := spisimple.ErrCode(-9).Error(); s != "spisimple: error -9" {
		t.Errorf("got %q", s)
	}
}
