// This file is part of smdc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/kidoz/smdc/backend/rom"
	"github.com/kidoz/smdc/common"
	"github.com/kidoz/smdc/driver"
	"github.com/kidoz/smdc/frontend"
)

// exit codes.
const (
	exitOK      = 0
	exitCompile = 1
	exitBadArgs = 2
)

var (
	frontendName  string
	backendName   string
	outputPath    string
	dumpTokens    bool
	dumpAST       bool
	dumpMIR       bool
	dumpHeader    bool
	verbose       bool
	entryFunction string
	origin        uint
	stackPointer  uint
)

func main() {
	flag.StringVar(&frontendName, "frontend", "", "source language: c or rust (default: from the input extension)")
	flag.StringVar(&backendName, "backend", "rom", "output kind: m68k (raw code bytes) or rom (full cartridge image)")
	flag.StringVar(&outputPath, "output", "", "output file path (default: stdout)")
	flag.BoolVar(&dumpTokens, "dump-tokens", false, "print the token stream to stderr")
	flag.BoolVar(&dumpAST, "dump-ast", false, "print the parsed AST to stderr")
	flag.BoolVar(&dumpMIR, "dump-mir", false, "print the lowered MIR to stderr (rust frontend only)")
	flag.BoolVar(&dumpHeader, "dump-header", false, "print the built ROM's decoded header to stderr (--backend=rom only)")
	flag.BoolVar(&verbose, "verbose", false, "render wrapped errors with a full stack trace")
	flag.StringVar(&entryFunction, "entry", "main", "function to use as the ROM/code entry point")
	flag.UintVar(&origin, "origin", 0x200, "code region load address for --backend=m68k")
	flag.UintVar(&stackPointer, "sp", 0x01000000, "initial stack pointer stored in the ROM vector table")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(exitBadArgs)
	}
	inputPath := flag.Arg(0)

	backend, err := parseBackend(backendName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitBadArgs)
	}

	src, err := os.ReadFile(inputPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitBadArgs)
	}

	var dump *frontend.DumpRequest
	if dumpTokens || dumpAST || dumpMIR {
		dump = &frontend.DumpRequest{Tokens: dumpTokens, AST: dumpAST, MIR: dumpMIR, Out: os.Stderr}
	}

	res, err := driver.Run(driver.Options{
		InputPath:     inputPath,
		Source:        src,
		FrontendName:  frontendName,
		Backend:       backend,
		Origin:        uint32(origin),
		EntryFunction: entryFunction,
		StackPointer:  uint32(stackPointer),
		Header:        rom.Header{SystemID: "SMDC COMPILER"},
		Dump:          dump,
	})
	if err != nil {
		renderError(err)
		var ce *common.Error
		if _, ok := common.AsErrorList(err); ok || errors.As(err, &ce) {
			os.Exit(exitCompile)
		}
		os.Exit(exitBadArgs)
	}

	out := res.Code
	if backend == driver.BackendROM {
		out = res.ROM
	}
	if dumpHeader && backend == driver.BackendROM {
		hdr, err := rom.DecodeHeader(res.ROM)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitBadArgs)
		}
		fmt.Fprintf(os.Stderr, "system:    %q\ncopyright: %q\ndomestic:  %q\noverseas:  %q\nserial:    %q\ndevices:   %q\nram:       0x%08X-0x%08X\nnotes:     %q\nchecksum:  0x%04X\n",
			hdr.SystemID, hdr.Copyright, hdr.DomesticTitle, hdr.OverseasTitle, hdr.Serial, hdr.DeviceSupport, hdr.RAMStart, hdr.RAMEnd, hdr.Notes, hdr.Checksum)
	}
	if err := writeOutput(outputPath, out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitBadArgs)
	}
	os.Exit(exitOK)
}

func parseBackend(name string) (driver.Backend, error) {
	switch name {
	case "m68k":
		return driver.BackendM68K, nil
	case "rom", "":
		return driver.BackendROM, nil
	default:
		return 0, fmt.Errorf("smdc: unknown backend %q (want m68k or rom)", name)
	}
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// renderError prints err with the diagnostic renderer, using %+v (full
// pkg/errors stack trace) under -verbose and the plain message otherwise.
func renderError(err error) {
	if verbose {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		return
	}
	driver.RenderDiagnostics(os.Stderr, err)
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] <input>\n", os.Args[0])
	flag.PrintDefaults()
}
