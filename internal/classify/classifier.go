// internal/classify/classifier.go
package classify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"bt-discovery/internal/config"
	"bt-discovery/internal/model"
)

// Rule assigns MachineType to devices whose friendly name, COM port or
// address matches Pattern (case-insensitive). An empty Source matches every
// discovery source.
type Rule struct {
	Source      string
	Pattern     string
	MachineType model.MachineType
}

type compiledRule struct {
	source  string
	pattern *regexp.Regexp
	machine model.MachineType
}

// Classifier applies rules in order; the first match wins
type Classifier struct {
	rules []compiledRule
}

// New compiles the rules
func New(rules []Rule) (*Classifier, error) {
	c := &Classifier{rules: make([]compiledRule, 0, len(rules))}

	for i, r := range rules {
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d: invalid pattern %q: %w", i, r.Pattern, err)
		}
		if !r.MachineType.Valid() {
			return nil, fmt.Errorf("rule %d: unknown machine type %d", i, int(r.MachineType))
		}
		c.rules = append(c.rules, compiledRule{
			source:  strings.ToLower(r.Source),
			pattern: re,
			machine: r.MachineType,
		})
	}
	return c, nil
}

// FromConfig registers the configured machine types and compiles the rules
func FromConfig(cfg config.DiscoveryConfig) (*Classifier, error) {
	for name, code := range cfg.MachineTypes {
		if err := model.RegisterMachineType(model.MachineType(code), strings.ToUpper(name)); err != nil {
			return nil, fmt.Errorf("machine_types: %w", err)
		}
	}

	rules := make([]Rule, 0, len(cfg.MachineRules))
	for i, r := range cfg.MachineRules {
		machine, err := ParseMachineType(r.MachineType)
		if err != nil {
			return nil, fmt.Errorf("machine_rules[%d]: %w", i, err)
		}
		rules = append(rules, Rule{Source: r.Source, Pattern: r.Pattern, MachineType: machine})
	}
	return New(rules)
}

// ParseMachineType accepts a registered name or a numeric code
func ParseMachineType(s string) (model.MachineType, error) {
	s = strings.TrimSpace(s)
	if code, ok := model.MachineTypeByName(strings.ToUpper(s)); ok {
		return code, nil
	}
	if n, err := strconv.Atoi(s); err == nil && model.MachineType(n).Valid() {
		return model.MachineType(n), nil
	}
	return model.MachineUnknown, fmt.Errorf("unknown machine type %q", s)
}

// Classify returns the machine type of the first matching rule, or UNKNOWN
func (c *Classifier) Classify(s model.Sighting) model.MachineType {
	if c == nil {
		return model.MachineUnknown
	}

	for _, r := range c.rules {
		if r.source != "" && r.source != s.Source {
			continue
		}
		if matchAny(r.pattern, s.Device.BTFriendlyName, s.Device.ComPortName, s.Address) {
			return r.machine
		}
	}
	return model.MachineUnknown
}

// Len returns the number of rules
func (c *Classifier) Len() int {
	if c == nil {
		return 0
	}
	return len(c.rules)
}

func matchAny(re *regexp.Regexp, values ...string) bool {
	for _, v := range values {
		if v != "" && re.MatchString(v) {
			return true
		}
	}
	return false
}
