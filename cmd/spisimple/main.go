// Command spisimple inspects and drives an SPI-simple core from Linux
// userspace through /dev/mem.
//
//	spisimple --base 0x43c00000 status
//	spisimple --base 0x43c00000 --slave 1 rxtx 0x9f 0 0
//	spisimple --base 0x43c00000 irq enable 0x4
//
// With --sim the commands run against a simulated loopback core.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/tinygo-org/spisimple/spisimple"
	"github.com/tinygo-org/spisimple/spisimple/sim"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "spisimple:", err)
		os.Exit(1)
	}
}

// tool holds the state shared by the commands of one invocation.
type tool struct {
	out    io.Writer
	logger *slog.Logger
	core   spisimple.Core
	slave  uint8
	closer io.Closer
}

func newApp(stdout, stderr io.Writer) *cli.App {
	t := &tool{out: stdout}
	return &cli.App{
		Name:      "spisimple",
		Usage:     "inspect and drive an SPI-simple core",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "base",
				Usage:   "physical base address of the core",
				EnvVars: []string{"SPISIMPLE_BASE"},
			},
			&cli.StringFlag{
				Name:    "dev",
				Value:   devmemPath,
				Usage:   "memory device to map the core from",
				EnvVars: []string{"SPISIMPLE_DEV"},
			},
			&cli.BoolFlag{
				Name:  "sim",
				Usage: "use a simulated loopback core",
			},
			&cli.UintFlag{
				Name:    "slave",
				Aliases: []string{"s"},
				Usage:   "slave select index",
			},
			&cli.IntFlag{
				Name:  "max-polls",
				Value: 1_000_000,
				Usage: "status reads before a blocking transfer times out, 0 waits forever",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"SPISIMPLE_LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			return t.open(c, stderr)
		},
		After: func(c *cli.Context) error {
			if t.closer == nil {
				return nil
			}
			return t.closer.Close()
		},
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "print status flags, FIFO levels and the IRQ vector",
				Action: t.status,
			},
			{
				Name:      "tx",
				Usage:     "transmit words, discarding received data",
				ArgsUsage: "WORD...",
				Action:    t.tx,
			},
			{
				Name:      "rxtx",
				Usage:     "transmit words and print the received words",
				ArgsUsage: "WORD...",
				Action:    t.rxtx,
			},
			{
				Name:   "pop",
				Usage:  "pop one word from the RX FIFO",
				Action: t.pop,
			},
			{
				Name:  "irq",
				Usage: "show, clear and enable interrupts",
				Subcommands: []*cli.Command{
					{Name: "show", Usage: "print the IRQ vector", Action: t.irqShow},
					{Name: "clear", Usage: "clear IRQ flags, all latched flags by default", ArgsUsage: "[MASK]", Action: t.irqClear},
					{Name: "enable", Usage: "replace the IRQ enable mask", ArgsUsage: "MASK", Action: t.irqEnable},
				},
			},
			{
				Name:  "threshold",
				Usage: "set FIFO thresholds",
				Subcommands: []*cli.Command{
					{Name: "tx", Usage: "set the TX almost empty threshold", ArgsUsage: "LEVEL", Action: t.thresholdTx},
					{Name: "rx", Usage: "set the RX almost full threshold", ArgsUsage: "LEVEL", Action: t.thresholdRx},
				},
			},
		},
	}
}

func (t *tool) open(c *cli.Context, logw io.Writer) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
		return fmt.Errorf("bad log level: %w", err)
	}
	t.logger = slog.New(slog.NewTextHandler(logw, &slog.HandlerOptions{Level: level}))

	slave := c.Uint("slave")
	if slave > math.MaxUint8 {
		return fmt.Errorf("bad slave index %d", slave)
	}
	t.slave = uint8(slave)

	var base uintptr
	if s := c.String("base"); s != "" {
		v, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return fmt.Errorf("bad base address %q: %w", s, err)
		}
		base = uintptr(v)
	} else if !c.Bool("sim") {
		return fmt.Errorf("--base is required")
	}

	var rw spisimple.Registers
	if c.Bool("sim") {
		rw = sim.New(base)
		t.logger.Debug("using simulated core", slog.Uint64("base", uint64(base)))
	} else {
		m, err := openDevmem(c.String("dev"), base)
		if err != nil {
			return err
		}
		rw, t.closer = m, m
		t.logger.Debug("mapped core", slog.String("dev", c.String("dev")), slog.Uint64("base", uint64(base)))
	}
	t.core = spisimple.NewCore(rw, base).WithPoller(spisimple.Poller{MaxPolls: c.Int("max-polls")})
	return nil
}

func (t *tool) status(c *cli.Context) error {
	s := t.core.Status()
	tw := table.NewWriter()
	tw.SetOutputMirror(t.out)
	tw.AppendHeader(table.Row{"Register", "Value"})
	tw.AppendRows([]table.Row{
		{"status", fmt.Sprintf("0x%02x %v", uint32(s), s)},
		{"tx level", t.core.TxFIFOLevel()},
		{"rx level", t.core.RxFIFOLevel()},
		{"irq vector", formatIRQ(t.core.IRQVector())},
	})
	tw.Render()
	return nil
}

func (t *tool) tx(c *cli.Context) error {
	words, err := parseWords(c.Args().Slice())
	if err != nil {
		return err
	}
	slave := t.slave
	for _, w := range words {
		if err := t.core.TxBlocking(slave, w); err != nil {
			return fmt.Errorf("tx 0x%x: %w", w, err)
		}
		t.logger.Debug("tx", slog.Int("slave", int(slave)), slog.Uint64("word", uint64(w)))
	}
	return nil
}

func (t *tool) rxtx(c *cli.Context) error {
	words, err := parseWords(c.Args().Slice())
	if err != nil {
		return err
	}
	slave := t.slave
	for _, w := range words {
		rx, err := t.core.RxTxBlocking(slave, w)
		if err != nil {
			return fmt.Errorf("rxtx 0x%x: %w", w, err)
		}
		fmt.Fprintf(t.out, "0x%08x\n", rx)
	}
	return nil
}

func (t *tool) pop(c *cli.Context) error {
	rx, err := t.core.RxData()
	if err != nil {
		return err
	}
	fmt.Fprintf(t.out, "0x%08x\n", rx)
	return nil
}

func (t *tool) irqShow(c *cli.Context) error {
	fmt.Fprintln(t.out, formatIRQ(t.core.IRQVector()))
	return nil
}

func (t *tool) irqClear(c *cli.Context) error {
	if c.NArg() == 0 {
		irq := t.core.AckIRQ()
		t.logger.Info("cleared irq flags", slog.String("irq", irq.String()))
		return nil
	}
	mask, err := parseWord(c.Args().First())
	if err != nil {
		return err
	}
	t.core.ClearIRQ(spisimple.IRQ(mask))
	return nil
}

func (t *tool) irqEnable(c *cli.Context) error {
	mask, err := oneArg(c)
	if err != nil {
		return err
	}
	if spisimple.IRQ(mask)&^spisimple.IRQAll != 0 {
		return fmt.Errorf("mask 0x%x has undefined bits", mask)
	}
	t.core.SetIRQEnable(spisimple.IRQ(mask))
	return nil
}

func (t *tool) thresholdTx(c *cli.Context) error {
	level, err := oneArg(c)
	if err != nil {
		return err
	}
	t.core.SetTxAlmostEmptyThreshold(level)
	return nil
}

func (t *tool) thresholdRx(c *cli.Context) error {
	level, err := oneArg(c)
	if err != nil {
		return err
	}
	t.core.SetRxAlmostFullThreshold(level)
	return nil
}

func oneArg(c *cli.Context) (uint32, error) {
	if c.NArg() != 1 {
		return 0, fmt.Errorf("%s expects exactly one argument", c.Command.Name)
	}
	return parseWord(c.Args().First())
}

func formatIRQ(irq spisimple.IRQ) string {
	return fmt.Sprintf("0x%02x %v", uint32(irq), irq)
}

// parseWord parses a 32 bit word in Go literal syntax: 0x1f, 0b101, 017, 31.
func parseWord(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad word %q: %w", s, err)
	}
	return uint32(v), nil
}

func parseWords(args []string) ([]uint32, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no words given")
	}
	words := make([]uint32, 0, len(args))
	for _, arg := range args {
		w, err := parseWord(arg)
		if err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	return words, nil
}
