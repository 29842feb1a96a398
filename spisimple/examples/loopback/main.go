//go:build tinygo

// Loopback exercises an SPI-simple core whose MOSI is wired to MISO. It reads
// back a buffer through the byte connection and then pipelines tagged
// transfers through a tracker.
package main

import (
	"time"

	"github.com/tinygo-org/spisimple/spisimple"
	"github.com/tinygo-org/spisimple/spisimple/spilib"
)

// Base address of the core on the AXI bus.
const coreBase = 0x43c0_0000

func main() {
	// Sleep to catch prints.
	time.Sleep(2 * time.Second)

	core := spisimple.NewCore(spisimple.MMIO{}, coreBase)
	core.Configure(spisimple.Config{
		TxAlmostEmpty: 4,
		RxAlmostFull:  12,
		ClearIRQ:      true,
	})

	spi, err := spilib.New(core, spilib.Config{Slave: 0})
	if err != nil {
		panic(err.Error())
	}
	w := []byte("loopback")
	r := make([]byte, len(w))
	if err := spi.Tx(w, r); err != nil {
		panic(err.Error())
	}
	println("sent", string(w), "received", string(r))

	tr := spilib.NewTracker[int](core, 0, 16)
	for {
		for i := 0; i < tr.Cap(); i++ {
			if err := tr.Issue(i, uint32(i*i)); err != nil {
				println("issue", i, err.Error())
				break
			}
		}
		for tr.Pending() > 0 {
			tag, rx, err := tr.Collect()
			if err == spisimple.ErrRxFIFOEmpty {
				continue
			}
			if err != nil {
				panic(err.Error())
			}
			if rx != uint32(tag*tag) {
				println("mismatch on transfer", tag, "got", rx)
			}
		}
		println("irq", core.AckIRQ().String())
		time.Sleep(time.Second)
	}
}
