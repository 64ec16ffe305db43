package permissions

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Module identifies a business module (voucher, inventory, payroll, ...).
type Module string

// Action identifies an operation within a module (read, create, approve, ...).
type Action string

// WildcardAction matches every action within a module.
const WildcardAction Action = "*"

// Permission is a single module/action pair. The zero value is not a valid
// permission.
type Permission struct {
	Module Module `json:"module"`
	Action Action `json:"action"`
}

// Wildcard returns the permission that grants every action within module.
func Wildcard(module Module) Permission {
	return Permission{Module: module, Action: WildcardAction}
}

// String returns the canonical "module.action" form.
func (p Permission) String() string {
	return string(p.Module) + "." + string(p.Action)
}

// IsWildcard reports whether the permission is a "module.*" wildcard.
func (p Permission) IsWildcard() bool {
	return p.Action == WildcardAction
}

// Valid reports whether both parts are non-empty identifiers.
func (p Permission) Valid() bool {
	return validPart(string(p.Module), false) && validPart(string(p.Action), true)
}

// Parse parses a "module.action" or "module.*" string into a Permission.
// The bare pattern "*" is rejected here; it has no meaning outside of
// Catalog.Expand.
func Parse(s string) (Permission, error) {
	idx := strings.IndexByte(s, '.')
	if idx <= 0 || idx == len(s)-1 {
		return Permission{}, fmt.Errorf("permissions: %q is not of the form module.action", s)
	}
	p := Permission{Module: Module(s[:idx]), Action: Action(s[idx+1:])}
	if !p.Valid() {
		return Permission{}, fmt.Errorf("permissions: %q contains an invalid module or action", s)
	}
	return p, nil
}

// MustParse is Parse that panics on error. Intended for static permission
// tables and tests.
func MustParse(s string) Permission {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

func validPart(s string, allowWildcard bool) bool {
	if s == "" {
		return false
	}
	if s == "*" {
		return allowWildcard
	}
	for _, c := range s {
		ok := (c >= 'a' && c <= 'z') ||
			(c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') ||
			c == '_'
		if !ok {
			return false
		}
	}
	return true
}

// Set is a flat permission set supporting the wildcard-aware membership test.
type Set map[Permission]struct{}

// NewSet builds a Set from the given permissions.
func NewSet(perms ...Permission) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// Add inserts a permission into the set.
func (s Set) Add(p Permission) {
	s[p] = struct{}{}
}

// Merge inserts every permission of other into s.
func (s Set) Merge(other Set) {
	for p := range other {
		s[p] = struct{}{}
	}
}

// Contains reports whether the exact permission is present, without wildcard
// expansion.
func (s Set) Contains(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Allows reports whether required is satisfied by the set: either the exact
// permission or the module's wildcard is present.
func (s Set) Allows(required Permission) bool {
	if _, ok := s[required]; ok {
		return true
	}
	_, ok := s[Wildcard(required.Module)]
	return ok
}

// Strings returns the canonical string form of every permission in the set.
// Ordering is unspecified.
func (s Set) Strings() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p.String())
	}
	return out
}

// MarshalJSON encodes the set as an array of canonical permission strings so
// it survives a round trip through external caches.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

// UnmarshalJSON decodes an array of canonical permission strings.
func (s *Set) UnmarshalJSON(data []byte) error {
	var strs []string
	if err := json.Unmarshal(data, &strs); err != nil {
		return err
	}
	out := make(Set, len(strs))
	for _, str := range strs {
		p, err := Parse(str)
		if err != nil {
			return err
		}
		out.Add(p)
	}
	*s = out
	return nil
}
