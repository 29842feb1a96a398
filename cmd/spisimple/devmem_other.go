//go:build !linux

package main

import (
	"errors"

	"github.com/tinygo-org/spisimple/spisimple"
)

const devmemPath = "/dev/mem"

type unmapped interface {
	spisimple.Registers
	Close() error
}

func openDevmem(path string, base uintptr) (unmapped, error) {
	return nil, errors.New("mapping physical memory is only supported on linux, use --sim")
}
