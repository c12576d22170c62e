// Package models defines the Sanctum client's data model: the session
// record, entities, transcripts, consent records and classifier outcomes.
package models

import (
	"slices"
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleBeta  Role = "beta"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleBeta, RoleUser:
		return true
	}
	return false
}

// Tier is the subscription level.
type Tier string

const (
	TierFree      Tier = "free"
	TierMonthly   Tier = "monthly"
	TierQuarterly Tier = "quarterly"
	TierYearly    Tier = "yearly"
)

func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierMonthly, TierQuarterly, TierYearly:
		return true
	}
	return false
}

// MaxStrikes is the strike count at which a session is terminated (or, for
// allowlisted users, locked).
const MaxStrikes = 3

// User is the persisted session record.
//
// Only Username, Role, Subscription, AccessibleEntities, Strikes and
// HasCompletedTour feed the checksum; see Checksum. HasCompletedTour is a
// pointer because records created before the tour ran carry no value at all,
// and that absence is part of their checksum.
type User struct {
	Username            string            `json:"username"`
	Role                Role              `json:"role"`
	Subscription        Tier              `json:"subscription"`
	SubscriptionEndDate *time.Time        `json:"subscriptionEndDate,omitempty"`
	AccessibleEntities  []string          `json:"accessibleEntities"`
	Strikes             int               `json:"strikes"`
	LastStrikeTimestamp *time.Time        `json:"lastStrikeTimestamp,omitempty"`
	HasCompletedTour    *bool             `json:"hasCompletedTour,omitempty"`
	AppAPIKey           string            `json:"appApiKey,omitempty"`
	EntityAPIKeys       map[string]string `json:"entityApiKeys,omitempty"`
	IntegrationAPIKey   string            `json:"integrationApiKey,omitempty"`
}

// TourCompleted reports whether onboarding has been finished.
func (u *User) TourCompleted() bool {
	return u.HasCompletedTour != nil && *u.HasCompletedTour
}

func (u *User) SetTourCompleted(done bool) {
	u.HasCompletedTour = &done
}

// Privileged is true for admin and beta accounts.
func (u *User) Privileged() bool {
	return u.Role == RoleAdmin || u.Role == RoleBeta
}

// CanAccess reports whether entityID is in the user's accessible set.
func (u *User) CanAccess(entityID string) bool {
	return slices.Contains(u.AccessibleEntities, entityID)
}

// SubscriptionExpired is true when an end date is set and lies before now.
func (u *User) SubscriptionExpired(now time.Time) bool {
	return u.SubscriptionEndDate != nil && u.SubscriptionEndDate.Before(now)
}

// Clone returns a deep copy, so a mutation can be prepared without touching
// the live record.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.AccessibleEntities = slices.Clone(u.AccessibleEntities)
	if u.SubscriptionEndDate != nil {
		t := *u.SubscriptionEndDate
		c.SubscriptionEndDate = &t
	}
	if u.LastStrikeTimestamp != nil {
		t := *u.LastStrikeTimestamp
		c.LastStrikeTimestamp = &t
	}
	if u.HasCompletedTour != nil {
		v := *u.HasCompletedTour
		c.HasCompletedTour = &v
	}
	if u.EntityAPIKeys != nil {
		c.EntityAPIKeys = make(map[string]string, len(u.EntityAPIKeys))
		for k, v := range u.EntityAPIKeys {
			c.EntityAPIKeys[k] = v
		}
	}
	return &c
}

// APIKeyFor returns the per-entity key when one is set, else the app key.
func (u *User) APIKeyFor(entityID string) string {
	if k := strings.TrimSpace(u.EntityAPIKeys[entityID]); k != "" {
		return k
	}
	return u.AppAPIKey
}
