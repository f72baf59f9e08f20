package registry

import "github.com/ankha-lang/ankhavm/pkg/types"

// optionalString/optionalHash/optionalVisibility model spec.md §4.3's
// partial-match predicate: a nil-valued query field matches any candidate;
// a non-nil field must match exactly.
type optionalString = *string
type optionalHash = *types.Hash
type optionalVisibility = *types.Visibility

// TypeQuery selects a type by partial predicate.
type TypeQuery struct {
	Name       optionalString
	Module     optionalString
	Hash       optionalHash
	Visibility optionalVisibility
}

// Matches reports whether h satisfies q, treating every nil field as a
// wildcard.
func (q TypeQuery) Matches(h *types.Handle) bool {
	if q.Name != nil && *q.Name != h.Name {
		return false
	}
	if q.Module != nil && *q.Module != h.ModuleName {
		return false
	}
	if q.Hash != nil && *q.Hash != h.Hash {
		return false
	}
	if q.Visibility != nil && *q.Visibility != h.Visibility {
		return false
	}
	return true
}

// FunctionQuery selects a function by partial predicate, optionally
// constrained by input/output parameter type shape. CallMethod dispatch
// (spec.md §4.3) augments OwnerTypeHash with the top-of-stack value's type
// hash before resolution.
type FunctionQuery struct {
	Name          optionalString
	Module        optionalString
	Visibility    optionalVisibility
	OwnerTypeHash optionalHash
	InputTypes    []types.Hash // nil means "don't constrain"
	OutputTypes   []types.Hash
}

// Matches reports whether fn satisfies q.
func (q FunctionQuery) Matches(fn *Function) bool {
	if q.Name != nil && *q.Name != fn.Name {
		return false
	}
	if q.Module != nil && *q.Module != fn.ModuleName {
		return false
	}
	if q.Visibility != nil && *q.Visibility != fn.Visibility {
		return false
	}
	if q.OwnerTypeHash != nil {
		if fn.OwnerTypeHash == nil || *fn.OwnerTypeHash != *q.OwnerTypeHash {
			return false
		}
	}
	if q.InputTypes != nil && !hashesMatch(q.InputTypes, fn.InputTypes) {
		return false
	}
	if q.OutputTypes != nil && !hashesMatch(q.OutputTypes, fn.OutputTypes) {
		return false
	}
	return true
}

func hashesMatch(want, have []types.Hash) bool {
	if len(want) != len(have) {
		return false
	}
	for i := range want {
		if want[i] != have[i] {
			return false
		}
	}
	return true
}

// WithOwnerTypeHash returns a copy of q with OwnerTypeHash set, the
// augmentation CallMethod dispatch performs before resolving.
func (q FunctionQuery) WithOwnerTypeHash(h types.Hash) FunctionQuery {
	q.OwnerTypeHash = &h
	return q
}
