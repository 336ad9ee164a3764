// Package emit implements the bytecode emitter: it walks a function's
// typed-IR blocks in order and appends their byte encoding to the
// target instruction stream, interning constants by structural
// equality and patching forward-jump targets once block positions are
// known.
package emit

import "github.com/yaoxiang-lang/yaoxiang/ir"

// ConstPool is an ordered, interning constant pool: equal-by-structure
// literals share one index.
type ConstPool struct {
	entries []ir.Constant
}

func NewConstPool() *ConstPool {
	return &ConstPool{}
}

// Intern returns c's index in the pool, appending it if no existing
// entry is structurally equal.
func (p *ConstPool) Intern(c ir.Constant) uint32 {
	for i, existing := range p.entries {
		if existing.Equal(c) {
			return uint32(i)
		}
	}
	p.entries = append(p.entries, c)
	return uint32(len(p.entries) - 1)
}

func (p *ConstPool) Entries() []ir.Constant {
	return p.entries
}

func (p *ConstPool) Len() int {
	return len(p.entries)
}
