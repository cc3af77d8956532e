// Package scripts assigns heuristic risk tiers to the script sources a scan
// discovered on a page.
package scripts

import (
	"regexp"
	"sort"
	"strings"
)

// RiskTier is the severity label of a script source. Lower values are more
// severe.
type RiskTier int

const (
	PortUsage RiskTier = iota + 1
	IPAddress
	InsecureHTTP
	AsyncLoad
	Normal
)

var tierNames = map[RiskTier]string{
	PortUsage:    "port",
	IPAddress:    "ip",
	InsecureHTTP: "http",
	AsyncLoad:    "async",
	Normal:       "normal",
}

var tierLabels = map[RiskTier]string{
	PortUsage:    "Uses explicit port",
	IPAddress:    "Loaded from IP address",
	InsecureHTTP: "Insecure HTTP",
	AsyncLoad:    "Async load",
	Normal:       "Normal",
}

func (t RiskTier) String() string {
	if s, ok := tierNames[t]; ok {
		return s
	}
	return "unknown"
}

// Label is the human readable name shown next to a script.
func (t RiskTier) Label() string {
	if s, ok := tierLabels[t]; ok {
		return s
	}
	return "Unknown"
}

// Suspicious reports whether the tier should be counted as a warning.
func (t RiskTier) Suspicious() bool { return t < Normal }

func (t RiskTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Classification pairs a script source with its tier.
type Classification struct {
	Source string   `json:"source"`
	Tier   RiskTier `json:"tier"`
}

var (
	portPattern  = regexp.MustCompile(`:\d{2,5}`)
	ipPattern    = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}\b`)
	asyncPattern = regexp.MustCompile(`\basync\b`)
)

// Tier returns the most severe tier matching source. Rules are tried in
// priority order and the first match wins.
func Tier(source string) RiskTier {
	s := strings.ToLower(source)
	switch {
	case portPattern.MatchString(s):
		return PortUsage
	case ipPattern.MatchString(s):
		return IPAddress
	case strings.HasPrefix(s, "http://"):
		return InsecureHTTP
	case asyncPattern.MatchString(s):
		return AsyncLoad
	default:
		return Normal
	}
}

// Classify tiers every source and returns them most severe first. Sources
// with the same tier keep their input order.
func Classify(sources []string) []Classification {
	out := make([]Classification, 0, len(sources))
	for _, src := range sources {
		out = append(out, Classification{Source: src, Tier: Tier(src)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Tier < out[j].Tier
	})
	return out
}

// SuspiciousCount returns how many classifications rank above Normal.
func SuspiciousCount(cs []Classification) int {
	n := 0
	for _, c := range cs {
		if c.Tier.Suspicious() {
			n++
		}
	}
	return n
}
