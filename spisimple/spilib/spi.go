// Package spilib builds bus level abstractions on top of the word oriented
// SPI-simple driver.
package spilib

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/spi"
	"tinygo.org/x/drivers"

	"github.com/tinygo-org/spisimple/spisimple"
)

var (
	_ drivers.SPI = (*SPI)(nil)
	_ spi.Conn    = (*SPI)(nil)
	_ conn.Limits = (*SPI)(nil)
)

var (
	errLengthMismatch = errors.New("spilib: tx and rx buffers differ in length")
	errPartialWord    = errors.New("spilib: buffer length not a multiple of the word size")
	errBitsPerWord    = errors.New("spilib: unsupported bits per word")
)

// Config configures an SPI connection to one slave of a core.
type Config struct {
	// Slave is the slave select index used for every transfer.
	Slave uint8
	// WordBytes is the number of bytes packed into one transfer word, 1 to 4.
	// It must match the transfer width the core was synthesized with.
	// Zero means 1.
	WordBytes int
	// Depth is the maximum number of RX transfers in flight and must not
	// exceed the RX FIFO depth of the core. Zero means 16.
	Depth int
	// Yield, if set, is called whenever the core can neither accept a word
	// nor has one to return.
	Yield func()
	// MaxStalls bounds the number of consecutive stalls of a transaction.
	// Transactions exceeding it fail with spisimple.ErrTimeout. Zero means
	// no bound.
	MaxStalls int
	// Logger receives debug and error logs. Nil disables logging.
	Logger *slog.Logger
}

// SPI is a full duplex byte oriented connection to one slave of a core. It
// implements drivers.SPI for TinyGo device drivers and spi.Conn for periph
// device drivers. Words are packed most significant byte first.
//
// SPI is not safe for concurrent use.
type SPI struct {
	core      spisimple.Core
	slave     uint8
	wordBytes int
	depth     int
	yield     func()
	maxStalls int
	logger    *slog.Logger
}

// New returns an SPI connection to a slave of core.
func New(core spisimple.Core, cfg Config) (*SPI, error) {
	if !core.IsValid() {
		return nil, errors.New("spilib: invalid core")
	}
	if cfg.WordBytes == 0 {
		cfg.WordBytes = 1
	}
	if cfg.WordBytes < 1 || cfg.WordBytes > 4 {
		return nil, errors.New("spilib: word size must be 1 to 4 bytes")
	}
	if cfg.Depth == 0 {
		cfg.Depth = 16
	}
	if cfg.Depth < 0 {
		return nil, errors.New("spilib: negative depth")
	}
	s := &SPI{
		core:      core,
		slave:     cfg.Slave,
		wordBytes: cfg.WordBytes,
		depth:     cfg.Depth,
		yield:     cfg.Yield,
		maxStalls: cfg.MaxStalls,
		logger:    cfg.Logger,
	}
	s.debug("spi:new", slog.String("core", core.String()), slog.Int("slave", int(cfg.Slave)), slog.Int("wordbytes", cfg.WordBytes))
	return s, nil
}

func (s *SPI) String() string {
	return s.core.String() + "." + strconv.Itoa(int(s.slave))
}

// Duplex implements conn.Conn.
func (s *SPI) Duplex() conn.Duplex { return conn.Full }

// MaxTxSize implements conn.Limits. There is no limit.
func (s *SPI) MaxTxSize() int { return 0 }

// Transfer implements drivers.SPI. It transmits b in a single word and
// returns the low byte of the received word. Like Tx it waits according to
// Yield and MaxStalls and requires an empty RX FIFO.
func (s *SPI) Transfer(b byte) (byte, error) {
	rx, err := s.transferWord(uint32(b))
	if err != nil {
		s.logerr("spi:transfer", slog.String("err", err.Error()))
		return 0, err
	}
	return byte(rx), nil
}

// Tx implements drivers.SPI and conn.Conn. If r is nil the received data is
// discarded. If w is nil zeros are transmitted. Otherwise w and r must have the
// same length. Lengths must be multiples of the configured word size.
//
// Receiving requires the RX FIFO to be empty when Tx is called since queued
// words could not be told apart from the received data; spisimple.ErrRxFIFONotEmpty
// is returned otherwise.
func (s *SPI) Tx(w, r []byte) error {
	if w != nil && r != nil && len(w) != len(r) {
		return errLengthMismatch
	}
	n := len(w)
	if w == nil {
		n = len(r)
	}
	if n%s.wordBytes != 0 {
		return errPartialWord
	}
	var err error
	if r == nil {
		err = s.send(w)
	} else {
		err = s.exchange(w, r)
	}
	if err != nil {
		s.logerr("spi:tx", slog.Int("len", n), slog.String("err", err.Error()))
		return err
	}
	s.debug("spi:tx", slog.Int("len", n), slog.Bool("rx", r != nil))
	return nil
}

// TxPackets implements spi.Conn. Packets are transferred in order. The core
// drives the slave select per word so KeepCS has no effect.
func (s *SPI) TxPackets(packets []spi.Packet) error {
	for i := range packets {
		p := &packets[i]
		if p.BitsPerWord != 0 && int(p.BitsPerWord) != 8*s.wordBytes {
			return errBitsPerWord
		}
		if err := s.Tx(p.W, p.R); err != nil {
			return err
		}
	}
	return nil
}

func (s *SPI) send(w []byte) error {
	stalls := 0
	for i := 0; i < len(w); {
		err := s.core.TxNonBlocking(s.slave, s.pack(w, i))
		switch err {
		case nil:
			i += s.wordBytes
			stalls = 0
		case spisimple.ErrTxFIFOFull:
			if err := s.stall(&stalls); err != nil {
				return err
			}
		default:
			return err
		}
	}
	for s.core.IsBusy() {
		if err := s.stall(&stalls); err != nil {
			return err
		}
	}
	return nil
}

func (s *SPI) exchange(w, r []byte) error {
	stalls := 0
	for s.core.IsBusy() {
		if err := s.stall(&stalls); err != nil {
			return err
		}
	}
	if !s.core.IsRxFIFOEmpty() {
		return spisimple.ErrRxFIFONotEmpty
	}
	n := len(r)
	issued, received := 0, 0
	for received < n {
		progress := false
		if issued < n && (issued-received)/s.wordBytes < s.depth {
			err := s.core.RxTxNonBlocking(s.slave, s.pack(w, issued))
			switch err {
			case nil:
				issued += s.wordBytes
				progress = true
			case spisimple.ErrTxFIFOFull, spisimple.ErrRxFIFOFull:
			default:
				return err
			}
		}
		if received < issued {
			word, err := s.core.RxData()
			switch err {
			case nil:
				s.unpack(r, received, word)
				received += s.wordBytes
				progress = true
			case spisimple.ErrRxFIFOEmpty:
			default:
				return err
			}
		}
		if progress {
			stalls = 0
		} else if err := s.stall(&stalls); err != nil {
			return err
		}
	}
	return nil
}

func (s *SPI) transferWord(word uint32) (uint32, error) {
	stalls := 0
	for s.core.IsBusy() {
		if err := s.stall(&stalls); err != nil {
			return 0, err
		}
	}
	if !s.core.IsRxFIFOEmpty() {
		return 0, spisimple.ErrRxFIFONotEmpty
	}
	for {
		err := s.core.RxTxNonBlocking(s.slave, word)
		if err == nil {
			break
		}
		if err != spisimple.ErrTxFIFOFull && err != spisimple.ErrRxFIFOFull {
			return 0, err
		}
		if err := s.stall(&stalls); err != nil {
			return 0, err
		}
	}
	for {
		rx, err := s.core.RxData()
		if err != spisimple.ErrRxFIFOEmpty {
			return rx, err
		}
		if err := s.stall(&stalls); err != nil {
			return 0, err
		}
	}
}

func (s *SPI) stall(stalls *int) error {
	*stalls++
	if s.maxStalls > 0 && *stalls > s.maxStalls {
		return spisimple.ErrTimeout
	}
	if s.yield != nil {
		s.yield()
	}
	return nil
}

// pack returns the word starting at byte offset i of b. A nil b packs zeros.
func (s *SPI) pack(b []byte, i int) (word uint32) {
	if b == nil {
		return 0
	}
	for _, c := range b[i : i+s.wordBytes] {
		word = word<<8 | uint32(c)
	}
	return word
}

func (s *SPI) unpack(b []byte, i int, word uint32) {
	for j := s.wordBytes - 1; j >= 0; j-- {
		b[i+j] = byte(word)
		word >>= 8
	}
}

func (s *SPI) debug(msg string, attrs ...slog.Attr) {
	s.logattrs(slog.LevelDebug, msg, attrs...)
}

func (s *SPI) logerr(msg string, attrs ...slog.Attr) {
	s.logattrs(slog.LevelError, msg, attrs...)
}

func (s *SPI) logattrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(context.Background(), level, msg, attrs...)
}
