package users

import (
	"strings"

	"github.com/angelmondragon/petshop-storefront/pkg/enums"
)

// DefaultAvatar is used when a profile carries no avatar selector.
const DefaultAvatar = "paw"

// Principal is the identity the session acts as. It is persisted under the
// "user" key and carries the authoritative LuckCoins balance.
type Principal struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Email   string     `json:"email,omitempty"`
	Avatar  string     `json:"avatar"`
	Role    enums.Role `json:"role"`
	Guest   bool       `json:"guest"`
	Credits int64      `json:"credits"`
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == enums.RoleAdmin
}

// Profile is the raw identity returned by the remote backend. Role and
// Credits may be absent; Normalize fills them.
type Profile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Avatar  string `json:"avatar,omitempty"`
	Role    string `json:"role,omitempty"`
	Credits *int64 `json:"credits,omitempty"`
}

// Normalize turns a remote profile into a principal: unknown or missing
// roles become user, a missing balance becomes startingGrant and a negative
// one is floored at zero.
func Normalize(p Profile, startingGrant int64) Principal {
	role, err := enums.ParseRole(strings.ToLower(strings.TrimSpace(p.Role)))
	if err != nil {
		role = enums.RoleUser
	}

	credits := startingGrant
	if p.Credits != nil {
		credits = *p.Credits
	}
	if credits < 0 {
		credits = 0
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		name, _, _ = strings.Cut(p.Email, "@")
	}

	avatar := strings.TrimSpace(p.Avatar)
	if avatar == "" {
		avatar = DefaultAvatar
	}

	return Principal{
		ID:      p.ID,
		Name:    name,
		Email:   strings.TrimSpace(p.Email),
		Avatar:  avatar,
		Role:    role,
		Credits: credits,
	}
}
