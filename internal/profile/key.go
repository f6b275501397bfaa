package profile

import "profile_server/internal/batch"

// KeyFor is the cache key for a caller: the authenticated user only, so all
// of one user's requests share a cache entry whatever scope they carry.
func KeyFor(args batch.Args) string {
	return args.Credentials.User
}
