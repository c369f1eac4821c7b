package auth

import "tallerpro.mx/shop/utils"

// Authorize reports whether granted satisfies every required permission.
// Wildcards in granted ("*", "*:*", "client:*", "*:list") are honoured.
func Authorize(required, granted []string) bool {
	return utils.HasAllPermissions(granted, required)
}
