// Package filter runs classic BPF programs against raw frames before decoding.
package filter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/net/bpf"

	"firestige.xyz/hdrstack/internal/core"
)

// Filter decides whether a frame should be decoded.
type Filter interface {
	Match(data []byte) bool
}

// AcceptAll is the filter used when no program is configured.
type AcceptAll struct{}

// Match always returns true.
func (AcceptAll) Match([]byte) bool { return true }

// BPF wraps a classic BPF program executed by the x/net/bpf virtual machine.
// A VM holds no per-run state, so a BPF filter may be shared by workers.
type BPF struct {
	vm    *bpf.VM
	insts []bpf.Instruction
}

// NewBPF builds a filter from raw instructions.
func NewBPF(raw []bpf.RawInstruction) (*BPF, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty program", core.ErrFilterInvalid)
	}

	insts, ok := bpf.Disassemble(raw)
	if !ok {
		return nil, fmt.Errorf("%w: program contains unknown instructions", core.ErrFilterInvalid)
	}

	vm, err := bpf.NewVM(insts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrFilterInvalid, err)
	}
	return &BPF{vm: vm, insts: insts}, nil
}

// Match runs the program and reports whether it accepted the frame.
func (f *BPF) Match(data []byte) bool {
	n, err := f.vm.Run(data)
	return err == nil && n > 0
}

// Len returns the number of instructions in the program.
func (f *BPF) Len() int { return len(f.insts) }

// LoadFile reads a program in `tcpdump -ddd` format from path.
func LoadFile(path string) (*BPF, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bpf file %s: %w", path, err)
	}
	defer fh.Close()

	raw, err := Parse(fh)
	if err != nil {
		return nil, fmt.Errorf("bpf file %s: %w", path, err)
	}
	return NewBPF(raw)
}

// Parse reads `tcpdump -ddd` output: an instruction count followed by one
// "code jt jf k" line per instruction. The single-line form with comma
// separators ("4,40 0 0 12,21 0 1 2048,...") is accepted as well.
func Parse(r io.Reader) ([]bpf.RawInstruction, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		for _, part := range strings.Split(scanner.Text(), ",") {
			if part = strings.TrimSpace(part); part != "" {
				lines = append(lines, part)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty program", core.ErrFilterInvalid)
	}

	count, err := strconv.Atoi(lines[0])
	if err != nil {
		return nil, fmt.Errorf("%w: bad instruction count %q", core.ErrFilterInvalid, lines[0])
	}
	if count != len(lines)-1 {
		return nil, fmt.Errorf("%w: count %d does not match %d instructions",
			core.ErrFilterInvalid, count, len(lines)-1)
	}

	raw := make([]bpf.RawInstruction, 0, count)
	for i, line := range lines[1:] {
		ins, err := parseInstruction(line)
		if err != nil {
			return nil, fmt.Errorf("%w: instruction %d: %v", core.ErrFilterInvalid, i, err)
		}
		raw = append(raw, ins)
	}
	return raw, nil
}

func parseInstruction(line string) (bpf.RawInstruction, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return bpf.RawInstruction{}, fmt.Errorf("want 4 fields, got %d", len(fields))
	}

	code, err := strconv.ParseUint(fields[0], 10, 16)
	if err != nil {
		return bpf.RawInstruction{}, err
	}
	jt, err := strconv.ParseUint(fields[1], 10, 8)
	if err != nil {
		return bpf.RawInstruction{}, err
	}
	jf, err := strconv.ParseUint(fields[2], 10, 8)
	if err != nil {
		return bpf.RawInstruction{}, err
	}
	k, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return bpf.RawInstruction{}, err
	}

	return bpf.RawInstruction{Op: uint16(code), Jt: uint8(jt), Jf: uint8(jf), K: uint32(k)}, nil
}
