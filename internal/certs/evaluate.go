// Package certs derives a display status from the TLS certificate details a
// scan recorded for the target host.
package certs

import (
	"sort"
	"strings"
	"time"

	"github.com/fish-not-phish/pixurebyte/internal/schema"
)

// Status is the certificate badge shown on the results view.
type Status string

const (
	Valid        Status = "valid"
	ExpiringSoon Status = "expiring_soon"
	Expired      Status = "expired"
	Unavailable  Status = "unavailable"
)

// DefaultWindowDays is how close to expiry a certificate counts as expiring.
const DefaultWindowDays = 30

const secondsPerDay = 24 * 60 * 60

var statusLabels = map[Status]string{
	Valid:        "Valid",
	ExpiringSoon: "Expires Soon",
	Expired:      "Expired",
	Unavailable:  "Unavailable",
}

// Label is the badge text for s.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Evaluation is the result of Evaluate. ValidFrom and ValidTo are epoch
// seconds and only meaningful when the matching Has flag is set.
type Evaluation struct {
	Status       Status
	WindowDays   int
	ValidFrom    int64
	HasValidFrom bool
	ValidTo      int64
	HasValidTo   bool
	Error        string
}

// Evaluate classifies info relative to now. A non-empty Error always yields
// Unavailable. A missing or unparsable valid_to is treated as neither expired
// nor expiring.
func Evaluate(info schema.SSLInfo, now time.Time, windowDays int) Evaluation {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	ev := Evaluation{Status: Valid, WindowDays: windowDays}
	if info.Error != "" {
		ev.Status = Unavailable
		ev.Error = info.Error
		return ev
	}

	ev.ValidFrom, ev.HasValidFrom = ParseEpoch(info.ValidFrom)
	ev.ValidTo, ev.HasValidTo = ParseEpoch(info.ValidTo)
	if !ev.HasValidTo {
		return ev
	}

	nowSec := now.Unix()
	switch {
	case ev.ValidTo < nowSec:
		ev.Status = Expired
	case ev.ValidTo <= nowSec+int64(windowDays)*secondsPerDay:
		ev.Status = ExpiringSoon
	}
	return ev
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseEpoch parses an ISO datetime into whole seconds since the epoch.
// Values without a zone are read as UTC.
func ParseEpoch(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix(), true
		}
	}
	return 0, false
}

// CommonName returns the CN of a distinguished name map, preferring the long
// attribute name.
func CommonName(dn map[string]string) string {
	if dn == nil {
		return ""
	}
	if cn, ok := dn["commonName"]; ok {
		return cn
	}
	return dn["CN"]
}

var dnLabels = map[string]string{
	"commonName":             "Common Name (CN)",
	"CN":                     "Common Name (CN)",
	"organizationName":       "Organization (O)",
	"O":                      "Organization (O)",
	"organizationalUnitName": "Org Unit (OU)",
	"OU":                     "Org Unit (OU)",
	"countryName":            "Country (C)",
	"C":                      "Country (C)",
	"stateOrProvinceName":    "State/Province (ST)",
	"ST":                     "State/Province (ST)",
	"localityName":           "Locality (L)",
	"L":                      "Locality (L)",
	"emailAddress":           "Email",
}

// Label maps a DN attribute key to its display label. Unknown keys are
// returned unchanged.
func Label(key string) string {
	if l, ok := dnLabels[key]; ok {
		return l
	}
	return key
}

// Attribute is one labelled row of a distinguished name.
type Attribute struct {
	Key   string
	Label string
	Value string
}

// Attributes lists the entries of dn sorted by key.
func Attributes(dn map[string]string) []Attribute {
	keys := make([]string, 0, len(dn))
	for k := range dn {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Attribute, 0, len(keys))
	for _, k := range keys {
		out = append(out, Attribute{Key: k, Label: Label(k), Value: dn[k]})
	}
	return out
}
