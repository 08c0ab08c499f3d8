package permissions

import (
	"fmt"
	"strings"
)

// AnySource is the grants key applied to every event source
const AnySource = "*"

// Policy maps event sources (sensor gateways, importers) to the permissions they hold.
// It is immutable after construction and safe for concurrent use.
type Policy struct {
	grants map[string][]string
}

// NewPolicy builds a policy from configured grants, rejecting malformed permission strings
func NewPolicy(grants map[string][]string) (*Policy, error) {
	p := &Policy{grants: make(map[string][]string, len(grants))}

	for source, perms := range grants {
		for _, perm := range perms {
			if !IsValidPermission(perm) {
				return nil, fmt.Errorf("invalid permission %q granted to source %q", perm, source)
			}
		}
		// viper lowercases map keys; match that for lookups
		p.grants[strings.ToLower(source)] = MergePermissions(perms)
	}

	return p, nil
}

// Allows reports whether source holds required, either directly or via AnySource grants
func (p *Policy) Allows(source, required string) bool {
	if p == nil {
		return false
	}
	granted := MergePermissions(p.grants[AnySource], p.grants[strings.ToLower(source)])
	return HasPermission(granted, required)
}
