package profile

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"profile_server/internal/batch"
	"profile_server/platform/httpkit"
)

const scopeOpenID = "openid"

// Profile is the response document. Field order here is the serialization
// order and therefore part of the ETag.
type Profile struct {
	Email       *string `json:"email"`
	UID         *string `json:"uid"`
	Avatar      *string `json:"avatar"`
	DisplayName *string `json:"displayName"`
	Sub         *string `json:"sub,omitempty"`
}

// IsEmpty reports whether no field carries a value.
func (p Profile) IsEmpty() bool {
	return p.Email == nil && p.UID == nil && p.Avatar == nil && p.DisplayName == nil && p.Sub == nil
}

// Composed is a profile together with its validators.
type Composed struct {
	Profile      Profile
	ETag         string
	LastModified time.Time
}

// HasETag reports whether an ETag should be sent.
func (c Composed) HasETag() bool { return c.ETag != "" }

// Compose builds the response for a usable outcome. now is used as the
// modification time of freshly computed values. When emitEmptyETag is false
// a profile without any value gets no ETag.
func Compose(outcome *batch.Outcome, creds httpkit.Credentials, now time.Time, emitEmptyETag bool) (Composed, error) {
	var p Profile
	present := outcome != nil && outcome.Value != nil
	if present {
		v := outcome.Value
		p = Profile{
			Email:       v[FieldEmail],
			UID:         v[FieldUID],
			Avatar:      v[FieldAvatar],
			DisplayName: v[FieldDisplayName],
		}
	}
	if creds.HasScope(scopeOpenID) {
		user := creds.User
		p.Sub = &user
	}

	out := Composed{Profile: p, LastModified: now.UTC()}
	if outcome.FromCache() {
		out.LastModified = outcome.Cached.Stored.UTC()
	}

	if (present || p.Sub != nil) && (emitEmptyETag || !p.IsEmpty()) {
		etag, err := ComputeETag(p)
		if err != nil {
			return Composed{}, err
		}
		out.ETag = etag
	}
	return out, nil
}

// ComputeETag returns a strong validator derived from the serialized profile.
func ComputeETag(p Profile) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode profile: %w", err)
	}
	sum := sha1.Sum(raw)
	return `"` + hex.EncodeToString(sum[:]) + `"`, nil
}
