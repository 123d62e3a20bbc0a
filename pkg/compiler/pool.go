package compiler

import (
	"math"

	"github.com/0x264/charon/pkg/bytecode"
)

// constantPool accumulates the deduplicated constant table every LDC and
// every name reference (globals, fields, function/class names) indexes
// into. Structurally literal values, field/member names, and function
// names all share the same pool and the same string-dedup map.
type constantPool struct {
	constants []bytecode.Constant
	code      []byte

	longIdx   map[int64]uint16
	doubleIdx map[float64]uint16
	stringIdx map[string]uint16
}

func newConstantPool() *constantPool {
	return &constantPool{
		longIdx:   make(map[int64]uint16),
		doubleIdx: make(map[float64]uint16),
		stringIdx: make(map[string]uint16),
	}
}

func (p *constantPool) add(c bytecode.Constant, tagByte byte, body []byte) uint16 {
	idx := uint16(len(p.constants))
	p.constants = append(p.constants, c)
	p.code = append(p.code, tagByte)
	p.code = append(p.code, body...)
	return idx
}

func (p *constantPool) constLong(v int64) uint16 {
	if idx, ok := p.longIdx[v]; ok {
		return idx
	}
	body := make([]byte, 8)
	for i := 0; i < 8; i++ {
		body[i] = byte(uint64(v) >> (8 * i))
	}
	idx := p.add(bytecode.Constant{Tag: bytecode.ConstantLong, Long: v}, byte(bytecode.ConstantLong), body)
	p.longIdx[v] = idx
	return idx
}

func (p *constantPool) constDouble(v float64) uint16 {
	if idx, ok := p.doubleIdx[v]; ok {
		return idx
	}
	bits := math.Float64bits(v)
	body := make([]byte, 8)
	for i := 0; i < 8; i++ {
		body[i] = byte(bits >> (8 * i))
	}
	idx := p.add(bytecode.Constant{Tag: bytecode.ConstantDouble, Double: v}, byte(bytecode.ConstantDouble), body)
	p.doubleIdx[v] = idx
	return idx
}

func (p *constantPool) constString(s string) uint16 {
	if idx, ok := p.stringIdx[s]; ok {
		return idx
	}
	body := appendU16(nil, uint16(len(s)))
	body = append(body, s...)
	idx := p.add(bytecode.Constant{Tag: bytecode.ConstantString, Str: s}, byte(bytecode.ConstantString), body)
	p.stringIdx[s] = idx
	return idx
}
