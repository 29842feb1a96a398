package main

import (
	"github.com/tinygo-org/spisimple/spisimple"
	"github.com/tinygo-org/spisimple/spisimple/devmem"
)

const devmemPath = devmem.DefaultPath

func openDevmem(path string, base uintptr) (*devmem.Map, error) {
	return devmem.Open(path, base, spisimple.RegWindow)
}
