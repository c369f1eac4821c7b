package utils

import "strings"

// MatchesPermission checks if a granted permission covers the required one.
// Permissions are written "resource:action" (an optional third ":scope" part is ignored).
//
// Wildcards:
//   - "*" or "*:*:*" grants everything
//   - "client:*" grants every action on clients
//   - "*:list" grants listing on every resource
func MatchesPermission(granted, required string) bool {
	if granted == required {
		return true
	}
	if granted == "*" || granted == "*:*:*" || granted == "*:*" {
		return true
	}

	grantedParts := strings.Split(granted, ":")
	requiredParts := strings.Split(required, ":")
	if len(grantedParts) < 2 || len(requiredParts) < 2 {
		return false
	}

	resourceMatch := grantedParts[0] == "*" || grantedParts[0] == requiredParts[0]
	actionMatch := grantedParts[1] == "*" || grantedParts[1] == requiredParts[1]
	return resourceMatch && actionMatch
}

// HasPermission reports whether any granted permission covers required.
func HasPermission(granted []string, required string) bool {
	for _, g := range granted {
		if MatchesPermission(g, required) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every required permission is covered.
func HasAllPermissions(granted, required []string) bool {
	for _, req := range required {
		if !HasPermission(granted, req) {
			return false
		}
	}
	return true
}
