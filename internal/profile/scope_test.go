package profile

import (
	"testing"

	"profile_server/internal/batch"
	"profile_server/platform/httpkit"

	"github.com/stretchr/testify/assert"
)

func TestIsAuthorized(t *testing.T) {
	cases := []struct {
		scopes []string
		want   bool
	}{
		{[]string{"profile"}, true},
		{[]string{"email"}, true},
		{[]string{"profile:email"}, true},
		{[]string{"profile:display_name:write"}, true},
		{[]string{"openid", "profile:uid"}, true},
		{[]string{"profilebogie"}, false},
		{[]string{"openid"}, false},
		{[]string{"Profile"}, false},
		{[]string{"emailx"}, false},
		{[]string{}, false},
		{nil, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsAuthorized(tc.scopes), "scopes %v", tc.scopes)
	}
}

func TestKeyForDependsOnlyOnUser(t *testing.T) {
	a := batch.Args{Credentials: httpkit.Credentials{User: "u123", Scope: []string{"profile"}}, Authorization: "Bearer a"}
	b := batch.Args{Credentials: httpkit.Credentials{User: "u123", Scope: []string{"email", "openid"}}, Authorization: "Bearer b"}
	c := batch.Args{Credentials: httpkit.Credentials{User: "u456", Scope: []string{"profile"}}}

	assert.Equal(t, "u123", KeyFor(a))
	assert.Equal(t, KeyFor(a), KeyFor(b))
	assert.NotEqual(t, KeyFor(a), KeyFor(c))
}
