package models

import (
	"slices"
	"strings"
)

// SecurityConfig lists usernames exempt from destructive integrity responses.
type SecurityConfig struct {
	AuthorizedUsers []string `json:"authorizedUsers"`
}

// IsAuthorized uses exact, case-sensitive matching on the stored username.
func (c SecurityConfig) IsAuthorized(username string) bool {
	return username != "" && slices.Contains(c.AuthorizedUsers, username)
}

// NormalizeUsers trims, drops empties and de-duplicates while keeping order.
func NormalizeUsers(users []string) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		u = strings.TrimSpace(u)
		if u == "" || slices.Contains(out, u) {
			continue
		}
		out = append(out, u)
	}
	return out
}
