// Package sendsync implements the Send/Sync constraint propagation
// engine: it decides, at monomorphization time, which specializations
// must satisfy Send and/or Sync, and flags the ones that cannot.
package sendsync

import "github.com/yaoxiang-lang/yaoxiang/ir"

// Origin records where a constraint came from, for diagnostics.
type Origin byte

const (
	OriginSpawnParameter Origin = iota
	OriginSpawnReturn
	OriginSpawnCapture
	OriginExplicit
)

// Constraint names one generic instantiation and which markers it must
// satisfy.
type Constraint struct {
	GenericName string
	TypeArgs    []ir.Type
	NeedSend    bool
	NeedSync    bool
	Origin      Origin
	SubjectType ir.Type // the concrete type the constraint is actually checked against
}

// UnsatisfiedReason distinguishes, per the Rust runtime's lifetime pass
// (original_source/src/middle/passes/lifetime/send_sync.rs), a type
// that structurally can never satisfy the marker from one that could,
// pending a specialization the monomorphizer hasn't produced yet.
type UnsatisfiedReason byte

const (
	ReasonNotSendStructurally UnsatisfiedReason = iota
	ReasonNotSyncStructurally
	ReasonRequiresSpecialization
)

// Unsatisfied is one constraint that failed verification.
type Unsatisfied struct {
	Constraint Constraint
	Reason     UnsatisfiedReason
}

// SpecializationRequest asks the monomorphizer to produce (or confirm)
// a Send- and/or Sync-flagged variant of a generic instantiation.
type SpecializationRequest struct {
	GenericName string
	TypeArgs    []ir.Type
	Send        bool
	Sync        bool
}

// PropagationResult is the engine's output: every constraint that
// failed verification, plus the specialization requests to feed back
// into the monomorphizer.
type PropagationResult struct {
	Unsatisfied             []Unsatisfied
	SpecializationRequests  []SpecializationRequest
	RequireSendSpecialization bool
	RequireSyncSpecialization bool
}

// CollectSpawnConstraints builds the Send constraints a spawn-like call
// site contributes: one per parameter, one for the closure return
// type, and one per captured variable's type, per spec §4.4(a).
func CollectSpawnConstraints(genericName string, typeArgs []ir.Type, params []ir.Type, ret ir.Type, captures []ir.Type) []Constraint {
	constraints := make([]Constraint, 0, len(params)+1+len(captures))
	for _, p := range params {
		constraints = append(constraints, Constraint{
			GenericName: genericName, TypeArgs: typeArgs, NeedSend: true,
			Origin: OriginSpawnParameter, SubjectType: p,
		})
	}
	constraints = append(constraints, Constraint{
		GenericName: genericName, TypeArgs: typeArgs, NeedSend: true,
		Origin: OriginSpawnReturn, SubjectType: ret,
	})
	for _, c := range captures {
		constraints = append(constraints, Constraint{
			GenericName: genericName, TypeArgs: typeArgs, NeedSend: true,
			Origin: OriginSpawnCapture, SubjectType: c,
		})
	}
	return constraints
}

// Propagate verifies every constraint against the structural Send/Sync
// oracle and records failures plus the specialization requests they
// imply.
func Propagate(constraints []Constraint) PropagationResult {
	var result PropagationResult
	seen := make(map[string]bool)

	for _, c := range constraints {
		if c.NeedSend && !IsSend(c.SubjectType) {
			result.Unsatisfied = append(result.Unsatisfied, Unsatisfied{
				Constraint: c, Reason: classifyUnsatisfied(c.SubjectType, true),
			})
			result.RequireSendSpecialization = true
		}
		if c.NeedSync && !IsSync(c.SubjectType) {
			result.Unsatisfied = append(result.Unsatisfied, Unsatisfied{
				Constraint: c, Reason: classifyUnsatisfied(c.SubjectType, false),
			})
			result.RequireSyncSpecialization = true
		}

		key := c.GenericName + "|" + joinArgKinds(c.TypeArgs)
		if !seen[key] {
			seen[key] = true
			result.SpecializationRequests = append(result.SpecializationRequests, SpecializationRequest{
				GenericName: c.GenericName, TypeArgs: c.TypeArgs,
				Send: c.NeedSend, Sync: c.NeedSync,
			})
		}
	}
	return result
}

func classifyUnsatisfied(t ir.Type, forSend bool) UnsatisfiedReason {
	if forSend {
		return ReasonNotSendStructurally
	}
	return ReasonNotSyncStructurally
}

func joinArgKinds(args []ir.Type) string {
	s := make([]byte, 0, len(args))
	for _, a := range args {
		s = append(s, byte(a.Kind))
	}
	return string(s)
}
