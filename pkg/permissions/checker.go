// Package permissions matches granted permission strings against a required one.
//
// Permission Format:
//   - "*" - Full access (all permissions)
//   - "resource.*" - All actions on a resource (e.g., "bins.*")
//   - "resource.action" - Specific action (e.g., "bins.read")
//   - "resource.subresource.action" - Nested permission (e.g., "bins.level.write")
package permissions

import (
	"strings"
)

// Known permissions
const (
	BinsRead       = "bins.read"
	BinsLevelWrite = "bins.level.write"
)

// KnownPermissions lists the permissions the bin services check for
var KnownPermissions = []string{
	BinsRead,
	BinsLevelWrite,
	"bins.level.*",
	"bins.*",
	"*",
}

// HasPermission checks if the granted permissions include the required permission.
// Supports wildcard matching:
//   - "*" matches everything
//   - "bins.*" matches "bins.read", "bins.level.write", etc.
//   - Exact match for specific permissions
func HasPermission(granted []string, required string) bool {
	if required == "" {
		return true
	}

	for _, p := range granted {
		if p == "*" || p == required {
			return true
		}
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// HasAllPermissions checks if all of the required permissions are granted.
func HasAllPermissions(granted []string, required []string) bool {
	for _, req := range required {
		if !HasPermission(granted, req) {
			return false
		}
	}
	return true
}

// MergePermissions merges multiple permission sets, removing duplicates.
func MergePermissions(sets ...[]string) []string {
	seen := make(map[string]bool)
	var result []string

	for _, set := range sets {
		for _, p := range set {
			if !seen[p] {
				seen[p] = true
				result = append(result, p)
			}
		}
	}

	return result
}

// IsValidPermission accepts "*", known permissions, and anything shaped resource.action
func IsValidPermission(perm string) bool {
	if perm == "*" {
		return true
	}

	for _, p := range KnownPermissions {
		if p == perm {
			return true
		}
	}

	parts := strings.Split(perm, ".")
	if len(parts) < 2 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
	}
	return true
}
