// Package hwkbd decides whether a physical keyboard is attached, which turns
// touch keyboard automation off.
package hwkbd

import (
	"fmt"
	"strings"
)

// IgnorePolicy selects which attached keyboards are disregarded when deciding
// whether a hardware keyboard is present.
type IgnorePolicy int

const (
	// DoNotIgnore counts every attached keyboard.
	DoNotIgnore IgnorePolicy = iota
	// IgnoreIfSingleInstanceOnList ignores a lone keyboard whose description
	// is on the ignore list.
	IgnoreIfSingleInstanceOnList
	// IgnoreIfSingleInstance ignores a lone keyboard.
	IgnoreIfSingleInstance
	// IgnoreIfOnList ignores every keyboard whose description is on the list.
	IgnoreIfOnList
	// IgnoreAll ignores every keyboard, so automation always runs.
	IgnoreAll
)

var policyNames = map[IgnorePolicy]string{
	DoNotIgnore:                  "DoNotIgnore",
	IgnoreIfSingleInstanceOnList: "IgnoreIfSingleInstanceOnList",
	IgnoreIfSingleInstance:       "IgnoreIfSingleInstance",
	IgnoreIfOnList:               "IgnoreIfOnList",
	IgnoreAll:                    "IgnoreAll",
}

// Policies lists every policy in declaration order.
func Policies() []IgnorePolicy {
	return []IgnorePolicy{DoNotIgnore, IgnoreIfSingleInstanceOnList, IgnoreIfSingleInstance, IgnoreIfOnList, IgnoreAll}
}

func (p IgnorePolicy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("IgnorePolicy(%d)", int(p))
}

// ParsePolicy parses a policy name, case-insensitively.
func ParsePolicy(s string) (IgnorePolicy, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DoNotIgnore, nil
	}
	for p, name := range policyNames {
		if strings.EqualFold(name, s) {
			return p, nil
		}
	}
	return DoNotIgnore, fmt.Errorf("unknown ignore policy %q", s)
}

func (p IgnorePolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *IgnorePolicy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Device is an attached keyboard as reported by the OS.
type Device struct {
	Description string `json:"description" yaml:"description"`
}

// Present applies policy to the attached devices and reports whether a
// hardware keyboard should be considered present.
func Present(devices []Device, policy IgnorePolicy, ignored []string) bool {
	if len(devices) == 0 {
		return false
	}

	onList := func(d Device) bool {
		for _, desc := range ignored {
			if d.Description == desc {
				return true
			}
		}
		return false
	}

	switch policy {
	case IgnoreAll:
		return false
	case DoNotIgnore:
		return true
	case IgnoreIfSingleInstance:
		return len(devices) > 1
	case IgnoreIfSingleInstanceOnList:
		return len(devices) > 1 || !onList(devices[0])
	case IgnoreIfOnList:
		for _, d := range devices {
			if !onList(d) {
				return true
			}
		}
		return false
	default:
		return true
	}
}
