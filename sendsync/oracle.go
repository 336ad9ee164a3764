package sendsync

import "github.com/yaoxiang-lang/yaoxiang/ir"

// IsSend reports whether t can cross a task boundary by value, per
// spec §4.4: primitives are always Send; composite types are Send iff
// every constituent type is Send; a shared ref is Send iff its pointee
// is Send — Arc's refcount is always atomic, so moving the handle never
// needs the pointee to be Sync too, matching
// `send_sync.rs`'s `is_send(Arc(inner)) = is_send(inner)` (Sync only
// gates sharing a live &reference, which is IsSync's concern below);
// raw pointers are never Send.
func IsSend(t ir.Type) bool {
	switch t.Kind {
	case ir.TypeUnit, ir.TypeBool, ir.TypeInt, ir.TypeFloat, ir.TypeChar, ir.TypeString, ir.TypeBytes:
		return true

	case ir.TypeList, ir.TypeSet, ir.TypeRange:
		if t.Elem == nil {
			return true
		}
		return IsSend(*t.Elem)

	case ir.TypeDict:
		keyOK := t.Key == nil || IsSend(*t.Key)
		valOK := t.Value == nil || IsSend(*t.Value)
		return keyOK && valOK

	case ir.TypeTuple, ir.TypeUnion, ir.TypeIntersection:
		for _, p := range t.Params {
			if !IsSend(p) {
				return false
			}
		}
		return true

	case ir.TypeStruct, ir.TypeEnum:
		for _, f := range t.Fields {
			if !IsSend(f.Type) {
				return false
			}
		}
		return true

	case ir.TypeFunction:
		// Closures are Send iff every captured parameter/return type is;
		// capture analysis happens at the call site (see
		// CollectSpawnConstraints), so the bare function type itself is
		// conservatively Send.
		return true

	case ir.TypeSharedRef:
		if t.Elem == nil {
			return false
		}
		return IsSend(*t.Elem)

	case ir.TypeVar:
		// Unbound type variables are neither provably Send nor provably
		// not: callers must re-check after monomorphization substitutes
		// a concrete type.
		return false

	default:
		return false
	}
}

// IsSync reports whether &t can be shared across task boundaries, per
// spec §4.4: primitives are always Sync; composites are Sync iff every
// constituent is; a shared ref is Sync iff its pointee is Sync (the
// refcount itself is always accessed atomically, see value.SharedRef);
// raw collections are not Sync by default because their internal
// mutation is unsynchronized.
func IsSync(t ir.Type) bool {
	switch t.Kind {
	case ir.TypeUnit, ir.TypeBool, ir.TypeInt, ir.TypeFloat, ir.TypeChar, ir.TypeString, ir.TypeBytes:
		return true

	case ir.TypeList, ir.TypeSet, ir.TypeRange:
		// Mutable, unsynchronized collections: never Sync by default,
		// regardless of element type, matching the Rust runtime's
		// conservative stance on interior mutability.
		return false

	case ir.TypeDict:
		return false

	case ir.TypeTuple, ir.TypeUnion, ir.TypeIntersection:
		for _, p := range t.Params {
			if !IsSync(p) {
				return false
			}
		}
		return true

	case ir.TypeStruct, ir.TypeEnum:
		for _, f := range t.Fields {
			if !IsSync(f.Type) {
				return false
			}
		}
		return true

	case ir.TypeFunction:
		return true

	case ir.TypeSharedRef:
		if t.Elem == nil {
			return false
		}
		return IsSync(*t.Elem)

	case ir.TypeVar:
		return false

	default:
		return false
	}
}
