package profile

import (
	"encoding/json"
	"testing"
	"time"

	"profile_server/internal/batch"
	"profile_server/platform/httpkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func emailOnly() batch.Value {
	return batch.Value{
		FieldEmail:       strPtr("a@b.com"),
		FieldUID:         nil,
		FieldAvatar:      nil,
		FieldDisplayName: nil,
	}
}

var composeNow = time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)

func TestComposeFresh(t *testing.T) {
	creds := httpkit.Credentials{User: "u123", Scope: []string{"email"}}

	out, err := Compose(&batch.Outcome{Value: emailOnly()}, creds, composeNow, false)
	require.NoError(t, err)

	assert.Equal(t, "a@b.com", *out.Profile.Email)
	assert.Nil(t, out.Profile.Sub)
	assert.True(t, out.HasETag())
	assert.Equal(t, composeNow, out.LastModified)

	raw, err := json.Marshal(out.Profile)
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":"a@b.com","uid":null,"avatar":null,"displayName":null}`, string(raw))
}

func TestComposeETagIsDeterministic(t *testing.T) {
	creds := httpkit.Credentials{User: "u123", Scope: []string{"profile"}}

	a, err := Compose(&batch.Outcome{Value: emailOnly()}, creds, composeNow, false)
	require.NoError(t, err)
	b, err := Compose(&batch.Outcome{Value: emailOnly()}, creds, composeNow.Add(time.Hour), false)
	require.NoError(t, err)
	assert.Equal(t, a.ETag, b.ETag)
	assert.Regexp(t, `^"[0-9a-f]{40}"$`, a.ETag)

	changed := emailOnly()
	changed[FieldDisplayName] = strPtr("Ann")
	c, err := Compose(&batch.Outcome{Value: changed}, creds, composeNow, false)
	require.NoError(t, err)
	assert.NotEqual(t, a.ETag, c.ETag)
}

func TestComposeOpenIDAddsSub(t *testing.T) {
	creds := httpkit.Credentials{User: "u123", Scope: []string{"profile", "openid"}}

	value := emailOnly()
	value["sub"] = strPtr("someone-else")
	out, err := Compose(&batch.Outcome{Value: value}, creds, composeNow, false)
	require.NoError(t, err)
	require.NotNil(t, out.Profile.Sub)
	assert.Equal(t, "u123", *out.Profile.Sub)

	withoutSub, err := Compose(&batch.Outcome{Value: emailOnly()}, httpkit.Credentials{User: "u123", Scope: []string{"profile"}}, composeNow, false)
	require.NoError(t, err)
	assert.NotEqual(t, withoutSub.ETag, out.ETag)
}

func TestComposeEmptyProfile(t *testing.T) {
	creds := httpkit.Credentials{User: "u123", Scope: []string{"profile"}}
	empty := batch.Value{FieldEmail: nil, FieldUID: nil, FieldAvatar: nil, FieldDisplayName: nil}

	out, err := Compose(&batch.Outcome{Value: empty}, creds, composeNow, false)
	require.NoError(t, err)
	assert.False(t, out.HasETag())

	out, err = Compose(&batch.Outcome{Value: empty}, creds, composeNow, true)
	require.NoError(t, err)
	assert.True(t, out.HasETag())

	out, err = Compose(&batch.Outcome{}, creds, composeNow, true)
	require.NoError(t, err)
	assert.False(t, out.HasETag())
}

func TestComposeCachedLastModified(t *testing.T) {
	stored := time.Date(2024, 4, 30, 23, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	outcome := &batch.Outcome{
		Value:  emailOnly(),
		Cached: &batch.Cached{Stored: stored, TTL: time.Hour},
	}

	out, err := Compose(outcome, httpkit.Credentials{User: "u1", Scope: []string{"profile"}}, composeNow, false)
	require.NoError(t, err)
	assert.True(t, stored.Equal(out.LastModified))
	assert.Equal(t, time.UTC, out.LastModified.Location())
}
