// Package mono implements monomorphization: specializing a generic
// function or type definition for a concrete type-argument vector, with
// a cross-module cache so repeated instantiations across the whole
// program short-circuit to the first one.
package mono

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/yaoxiang-lang/yaoxiang/ir"
)

// GenericKey identifies a generic definition: its name plus its
// declared type-parameter names (order matters — it is part of the key
// so that two same-named generics in different modules with different
// parameter lists never collide).
type GenericKey struct {
	Name       string
	TypeParams string // type-parameter names joined by ","
}

func NewGenericKey(name string, typeParams []string) GenericKey {
	return GenericKey{Name: name, TypeParams: strings.Join(typeParams, ",")}
}

// InstanceKey identifies one instantiation: a generic name plus a
// concrete type-argument vector.
type InstanceKey struct {
	Name     string
	TypeArgs string // sanitized, joined type-argument stringification
}

func NewInstanceKey(name string, typeArgs []ir.Type) InstanceKey {
	return InstanceKey{Name: name, TypeArgs: joinTypeArgs(typeArgs)}
}

func joinTypeArgs(args []ir.Type) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = sanitizeTypeName(a)
	}
	return strings.Join(parts, ",")
}

// sanitizeTypeName derives the stringification monomorphized names are
// built from, e.g. `list int` -> "list_int".
func sanitizeTypeName(t ir.Type) string {
	switch t.Kind {
	case ir.TypeVar:
		return "var_" + t.Name
	case ir.TypeList:
		return "list_" + sanitizeTypeName(*t.Elem)
	case ir.TypeDict:
		return "dict_" + sanitizeTypeName(*t.Key) + "_" + sanitizeTypeName(*t.Value)
	case ir.TypeTuple:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = sanitizeTypeName(p)
		}
		return "tuple_" + strings.Join(parts, "_")
	case ir.TypeFunction:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = sanitizeTypeName(p)
		}
		ret := ""
		if t.Return != nil {
			ret = sanitizeTypeName(*t.Return)
		}
		return "fn_" + strings.Join(parts, "_") + "_to_" + ret
	case ir.TypeSharedRef:
		return "ref_" + sanitizeTypeName(*t.Elem)
	case ir.TypeStruct, ir.TypeEnum:
		return t.Name
	default:
		return kindName(t.Kind)
	}
}

func kindName(k ir.TypeKind) string {
	names := map[ir.TypeKind]string{
		ir.TypeUnit: "unit", ir.TypeBool: "bool", ir.TypeInt: "int",
		ir.TypeFloat: "float", ir.TypeChar: "char", ir.TypeString: "string",
		ir.TypeBytes: "bytes", ir.TypeSet: "set", ir.TypeRange: "range",
		ir.TypeUnion: "union", ir.TypeIntersection: "intersection",
	}
	if n, ok := names[k]; ok {
		return n
	}
	return "type"
}

// SpecializedName joins a generic's base name with the sanitized
// stringification of its type arguments.
func SpecializedName(base string, typeArgs []ir.Type) string {
	if len(typeArgs) == 0 {
		return base
	}
	return base + "__" + joinTypeArgs(typeArgs)
}

// ModuleState is the per-module bookkeeping §4.3 describes: the
// generic definitions this module owns, the instances it has already
// produced, and the export/import tables for cross-module lookups.
type ModuleState struct {
	Name string

	Generics     map[GenericKey]*ir.Function
	GenericTypes map[GenericKey]*ir.Type

	Instances     map[InstanceKey]*ir.Function
	InstanceTypes map[InstanceKey]*ir.Type

	Exports []GenericKey
	Imports []ImportRef
}

// ImportRef names an externally referenced generic by its source
// module and name.
type ImportRef struct {
	SourceModule string
	Name         string
}

func NewModuleState(name string) *ModuleState {
	return &ModuleState{
		Name:          name,
		Generics:      make(map[GenericKey]*ir.Function),
		GenericTypes:  make(map[GenericKey]*ir.Type),
		Instances:     make(map[InstanceKey]*ir.Function),
		InstanceTypes: make(map[InstanceKey]*ir.Type),
	}
}

func (m *ModuleState) RegisterGeneric(fn *ir.Function) {
	key := NewGenericKey(fn.Name, fn.TypeParams)
	m.Generics[key] = fn
}

// CacheEntry is the cross-module cache's record for one instantiation:
// its specialized name, the module that owns its definition, and
// whether the IR has been materialized yet.
type CacheEntry struct {
	SpecializedName string
	OwningModule    string
	Materialized    bool
}

// CrossModuleCache is the single map from (generic name, type-argument
// vector) to a cached instance record, consulted before any
// instantiation is performed so repeated requests across the whole
// program collapse to one specialization.
type CrossModuleCache struct {
	mu      sync.RWMutex
	entries map[InstanceKey]*CacheEntry
}

func NewCrossModuleCache() *CrossModuleCache {
	return &CrossModuleCache{entries: make(map[InstanceKey]*CacheEntry)}
}

func (c *CrossModuleCache) lookup(key InstanceKey) (*CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *CrossModuleCache) insert(key InstanceKey, entry *CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
}

// Keys returns every cached instantiation key, sorted by generic name
// and then by type arguments, for deterministic reporting (cache dumps,
// diagnostics).
func (c *CrossModuleCache) Keys() []InstanceKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := maps.Keys(c.entries)
	slices.SortFunc(keys, func(a, b InstanceKey) int {
		if a.Name != b.Name {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.TypeArgs, b.TypeArgs)
	})
	return keys
}

// Monomorphizer ties module states together behind the cross-module
// cache, per component F.
type Monomorphizer struct {
	cache   *CrossModuleCache
	modules map[string]*ModuleState
}

func NewMonomorphizer() *Monomorphizer {
	return &Monomorphizer{cache: NewCrossModuleCache(), modules: make(map[string]*ModuleState)}
}

func (m *Monomorphizer) AddModule(ms *ModuleState) {
	m.modules[ms.Name] = ms
}

// ErrGenericNotFound means no module owns a generic definition by that
// name (mistyped name, or the defining module was never registered).
var ErrGenericNotFound = fmt.Errorf("generic definition not found")

// Instantiate runs the five-step algorithm of spec §4.3: compute the
// cache key, check for a cache hit, otherwise locate the owning
// module's definition, substitute, and insert into both the module's
// instance map and the cross-module cache.
func (m *Monomorphizer) Instantiate(genericName string, typeArgs []ir.Type) (*ir.Function, string, error) {
	key := NewInstanceKey(genericName, typeArgs)

	if entry, ok := m.cache.lookup(key); ok {
		owner, ok := m.modules[entry.OwningModule]
		if !ok {
			return nil, "", fmt.Errorf("%w: owning module %q no longer registered", ErrGenericNotFound, entry.OwningModule)
		}
		fn, ok := owner.Instances[key]
		if !ok {
			return nil, "", fmt.Errorf("mono: cache entry present but instance map miss for %v", key)
		}
		return fn, entry.SpecializedName, nil
	}

	owningModule, genericFn, bindings, err := m.locateGeneric(genericName, typeArgs)
	if err != nil {
		return nil, "", err
	}

	specialized := substituteFunction(genericFn, bindings)
	specializedName := SpecializedName(genericName, typeArgs)
	specialized.Name = specializedName

	owningModule.Instances[key] = specialized
	m.cache.insert(key, &CacheEntry{
		SpecializedName: specializedName,
		OwningModule:    owningModule.Name,
		Materialized:    true,
	})

	return specialized, specializedName, nil
}

func (m *Monomorphizer) locateGeneric(name string, typeArgs []ir.Type) (*ModuleState, *ir.Function, map[string]ir.Type, error) {
	for _, ms := range m.modules {
		for key, fn := range ms.Generics {
			if key.Name != name {
				continue
			}
			bindings, err := bindTypeParams(fn.TypeParams, typeArgs)
			if err != nil {
				return nil, nil, nil, err
			}
			return ms, fn, bindings, nil
		}
	}
	return nil, nil, nil, fmt.Errorf("%w: %s", ErrGenericNotFound, name)
}

func bindTypeParams(params []string, args []ir.Type) (map[string]ir.Type, error) {
	if len(params) != len(args) {
		return nil, fmt.Errorf("mono: generic expects %d type arguments, got %d", len(params), len(args))
	}
	bindings := make(map[string]ir.Type, len(params))
	for i, p := range params {
		bindings[p] = args[i]
	}
	return bindings, nil
}
