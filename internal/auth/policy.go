// Package auth decides which lock command, if any, a spoken phrase and PIN
// authorize. It never talks to the link.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/buckleypaul/doorlink/internal/lock"
)

var (
	ErrUnknownPhrase = errors.New("unknown command")
	ErrIncorrectPIN  = errors.New("incorrect PIN")
)

// DefaultPIN is the factory secret. Deployments override it in config.
const DefaultPIN = "2468"

// RuleSpec is the configurable form of a phrase rule.
type RuleSpec struct {
	Pattern string       `json:"pattern"`
	Command lock.Command `json:"command"`
}

// DefaultRules accept "open door" and "close door" in any case with optional
// whitespace between the words.
func DefaultRules() []RuleSpec {
	return []RuleSpec{
		{Pattern: `open\s*door`, Command: lock.Open},
		{Pattern: `close\s*door`, Command: lock.Close},
	}
}

type rule struct {
	re      *regexp.Regexp
	command lock.Command
}

// Policy holds the compiled phrase rules and the PIN secret.
type Policy struct {
	rules []rule
	pin   string
}

// New compiles rules into a policy. Patterns match the whole phrase and are
// case-insensitive; the PIN must be all digits.
func New(specs []RuleSpec, pin string) (*Policy, error) {
	if len(specs) == 0 {
		return nil, errors.New("no phrase rules configured")
	}
	if pin == "" {
		return nil, errors.New("PIN not configured")
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return nil, errors.New("PIN must contain only digits")
		}
	}

	p := &Policy{pin: pin}
	for _, s := range specs {
		pattern := strings.TrimSuffix(strings.TrimPrefix(s.Pattern, "^"), "$")
		re, err := regexp.Compile(`(?i)^(?:` + pattern + `)$`)
		if err != nil {
			return nil, fmt.Errorf("phrase rule %q: %w", s.Pattern, err)
		}
		p.rules = append(p.rules, rule{re: re, command: s.Command})
	}
	return p, nil
}

// PINLength is the number of digits the keypad collects.
func (p *Policy) PINLength() int { return len(p.pin) }

// Match returns the command for the first rule matching phrase.
func (p *Policy) Match(phrase string) (lock.Command, error) {
	phrase = strings.TrimSpace(phrase)
	for _, r := range p.rules {
		if r.re.MatchString(phrase) {
			return r.command, nil
		}
	}
	return 0, ErrUnknownPhrase
}

// VerifyPIN compares pin with the secret in constant time.
func (p *Policy) VerifyPIN(pin string) error {
	if subtle.ConstantTimeCompare([]byte(pin), []byte(p.pin)) != 1 {
		return ErrIncorrectPIN
	}
	return nil
}

// Authorize returns a command only when both the phrase and the PIN check out.
func (p *Policy) Authorize(phrase, pin string) (lock.Command, error) {
	cmd, err := p.Match(phrase)
	if err != nil {
		return 0, err
	}
	if err := p.VerifyPIN(pin); err != nil {
		return 0, err
	}
	return cmd, nil
}
