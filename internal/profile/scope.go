package profile

import "strings"

const scopePrefix = "profile:"

// IsAuthorized reports whether the granted scopes allow any profile
// disclosure: "profile", "email" or any "profile:<sub-scope>". A token
// that only shares the prefix without the colon does not qualify.
func IsAuthorized(scopes []string) bool {
	for _, scope := range scopes {
		if scope == "profile" || scope == "email" || strings.HasPrefix(scope, scopePrefix) {
			return true
		}
	}
	return false
}
