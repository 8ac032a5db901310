// Package featureflags gates optional surfaces per user.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Flag names a gated surface.
type Flag string

const (
	// RecipeFeed gates websocket tickets and the realtime recipe feed.
	RecipeFeed Flag = "recipe_feed"
)

// Defaults apply when FEATURE_FLAGS does not mention a flag.
var Defaults = map[Flag]string{
	RecipeFeed: "on",
}

// Manager evaluates flags from a "name=value" list such as
// "recipe_feed=25%". Values are on/off/true/false/1/0 or a percentage.
type Manager struct {
	values map[Flag]string
}

// Parse builds a Manager from raw, layered over Defaults. Malformed pairs
// and unknown values are reported together so a typo fails startup.
func Parse(raw string) (*Manager, error) {
	values := make(map[Flag]string, len(Defaults))
	for f, v := range Defaults {
		values[f] = v
	}

	var problems []string
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		name, value = normalize(name), normalize(value)
		if !ok || name == "" || value == "" {
			problems = append(problems, fmt.Sprintf("%q is not name=value", pair))
			continue
		}
		if _, err := parseValue(value); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		values[Flag(name)] = value
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("feature flags: %s", strings.Join(problems, "; "))
	}
	return &Manager{values: values}, nil
}

// Enabled reports whether flag is on for userID. Percentage rollouts
// bucket users deterministically and never include anonymous users.
// A nil Manager falls back to Defaults.
func (m *Manager) Enabled(flag Flag, userID uint) bool {
	value, ok := Defaults[flag]
	if m != nil {
		value, ok = m.values[flag]
	}
	if !ok {
		return false
	}

	pct, err := parseValue(value)
	if err != nil {
		return false
	}
	switch {
	case pct <= 0:
		return false
	case pct >= 100:
		return true
	case userID == 0:
		return false
	}
	return rolloutBucket(flag, userID) < pct
}

// String renders the effective configuration in a stable order.
func (m *Manager) String() string {
	if m == nil {
		return ""
	}
	names := make([]string, 0, len(m.values))
	for f := range m.values {
		names = append(names, string(f))
	}
	sort.Strings(names)
	for i, n := range names {
		names[i] = n + "=" + m.values[Flag(n)]
	}
	return strings.Join(names, ",")
}

// parseValue maps a flag value to a rollout percentage.
func parseValue(v string) (int, error) {
	switch v {
	case "on", "true", "1":
		return 100, nil
	case "off", "false", "0":
		return 0, nil
	}
	raw, ok := strings.CutSuffix(v, "%")
	if !ok {
		return 0, fmt.Errorf("unknown value %q", v)
	}
	pct, err := strconv.Atoi(raw)
	if err != nil || pct < 0 || pct > 100 {
		return 0, fmt.Errorf("bad percentage %q", v)
	}
	return pct, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(flag Flag, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", flag, userID)
	return int(h.Sum32() % 100)
}
