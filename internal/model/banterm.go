package model

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// BanUnit is the closed vocabulary a ban length is expressed in.
type BanUnit string

const (
	BanPermanent BanUnit = "permanent"
	BanHours     BanUnit = "hours"
	BanDays      BanUnit = "days"
)

// Ban lengths of the two fixed temporary tiers.
const (
	Ban24hDuration = 24 * time.Hour
	Ban7dDuration  = 7 * 24 * time.Hour
)

// Canonical labels persisted in banDuration and shown to users.
const (
	LabelPermanent = "Permanent"
	Label24Hours   = "24 Hours"
	Label7Days     = "7 Days"
)

// BanTerm is a structured ban length: a unit plus a magnitude. Permanent
// terms ignore Magnitude.
type BanTerm struct {
	Unit      BanUnit `json:"unit"`
	Magnitude int     `json:"magnitude,omitempty"`
}

var (
	Permanent  = BanTerm{Unit: BanPermanent}
	TwentyFour = BanTerm{Unit: BanHours, Magnitude: 24}
	SevenDays  = BanTerm{Unit: BanDays, Magnitude: 7}
)

// Status maps the term onto a ban tier: hour-based terms are Banned24h-style,
// day-based terms Banned7d-style, anything else permanent.
func (t BanTerm) Status() Status {
	switch t.Unit {
	case BanHours:
		return StatusBanned24h
	case BanDays:
		return StatusBanned7d
	default:
		return StatusBannedPermanent
	}
}

func (t BanTerm) unit() time.Duration {
	switch t.Unit {
	case BanHours:
		return time.Hour
	case BanDays:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Duration returns the ban length, or 0 for permanent bans.
func (t BanTerm) Duration() time.Duration {
	return time.Duration(t.Magnitude) * t.unit()
}

// Bounded returns t, or Permanent when t's length does not fit in a
// time.Duration. An overflowing multiplication would wrap and put the end
// of the ban in the past.
func (t BanTerm) Bounded() BanTerm {
	u := t.unit()
	if u == 0 {
		return Permanent
	}
	if int64(t.Magnitude) > math.MaxInt64/int64(u) {
		return Permanent
	}
	return t
}

// Until returns when a ban imposed at `at` ends. ok is false for permanent
// bans and for terms too long to represent.
func (t BanTerm) Until(at time.Time) (until time.Time, ok bool) {
	if t.Bounded().Unit == BanPermanent || t.Magnitude <= 0 {
		return time.Time{}, false
	}
	return at.Add(t.Duration()), true
}

// Label renders the term the way existing clients display it ("24 Hours",
// "7 Days", "Permanent").
func (t BanTerm) Label() string {
	switch t.Unit {
	case BanHours:
		return plural(t.Magnitude, "Hour")
	case BanDays:
		return plural(t.Magnitude, "Day")
	default:
		return LabelPermanent
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

var leadingNumber = regexp.MustCompile(`\d+`)

// ParseBanDuration interprets a loosely formatted duration string such as
// "24 Hours" or "7 Days".
//
// Rules: a string mentioning "hour" is an hour-based ban of the first number
// it contains (24 if none); one mentioning "day" is a day-based ban (7 if
// none); anything else, including the empty string, is permanent. A number
// too large to represent as a duration is also permanent.
func ParseBanDuration(s string) BanTerm {
	lower := strings.ToLower(strings.TrimSpace(s))

	var unit BanUnit
	var fallback int
	switch {
	case strings.Contains(lower, "hour"):
		unit, fallback = BanHours, 24
	case strings.Contains(lower, "day"):
		unit, fallback = BanDays, 7
	default:
		return Permanent
	}

	n := fallback
	if m := leadingNumber.FindString(lower); m != "" {
		v, err := strconv.Atoi(m)
		switch {
		case errors.Is(err, strconv.ErrRange):
			return Permanent
		case err == nil && v > 0:
			n = v
		}
	}
	return BanTerm{Unit: unit, Magnitude: n}.Bounded()
}

// TermForTier returns the fixed term of a ban status, used when a record has
// no explicit unbanAt.
func TermForTier(s Status) BanTerm {
	switch s {
	case StatusBanned24h:
		return TwentyFour
	case StatusBanned7d:
		return SevenDays
	default:
		return Permanent
	}
}
