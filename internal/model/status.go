// Package model defines the data structures used throughout the application.
package model

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of an account.
//
// The numeric values are the codes persisted in the account store. They are
// shared with existing records and clients, so they must never be renumbered.
// Any value outside the declared set is treated as unknown, never as approved.
type Status int

const (
	StatusPendingApproval Status = 1
	StatusApproved        Status = 2
	StatusBannedPermanent Status = 3
	StatusBanned24h       Status = 4
	StatusBanned7d        Status = 5
	StatusDeleted         Status = 6
	StatusServerError     Status = 7
	StatusCrashed         Status = 8
	StatusDeactivated     Status = 9
)

var statusNames = map[Status]string{
	StatusPendingApproval: "pending_approval",
	StatusApproved:        "approved",
	StatusBannedPermanent: "banned_permanent",
	StatusBanned24h:       "banned_24h",
	StatusBanned7d:        "banned_7d",
	StatusDeleted:         "deleted",
	StatusServerError:     "server_error",
	StatusCrashed:         "crashed",
	StatusDeactivated:     "deactivated",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// Known reports whether s is one of the declared status codes.
func (s Status) Known() bool {
	_, ok := statusNames[s]
	return ok
}

// IsBanned reports whether s is any of the ban tiers.
func (s Status) IsBanned() bool {
	return s == StatusBannedPermanent || s == StatusBanned24h || s == StatusBanned7d
}

// IsTemporaryBan reports whether s is a ban tier that expires on its own.
func (s Status) IsTemporaryBan() bool {
	return s == StatusBanned24h || s == StatusBanned7d
}

// ParseStatus accepts either the symbolic name ("approved") or the numeric
// code ("2") and returns the matching Status.
func ParseStatus(v string) (Status, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	for s, name := range statusNames {
		if v == name || v == fmt.Sprint(int(s)) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("model: unknown status %q", v)
}
