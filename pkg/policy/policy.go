package policy

import (
	"path"
	"strings"

	"github.com/edgeopslabs/marketing-mcp/pkg/config"
)

type Decision int

const (
	Allow Decision = iota
	Deny
)

func (d Decision) String() string {
	if d == Deny {
		return "denied"
	}
	return "allowed"
}

// Policy decides which abilities an adapter may publish.
type Policy struct {
	cfg      config.PolicyConfig
	safeMode bool
}

func New(cfg config.PolicyConfig, safeMode bool) *Policy {
	return &Policy{cfg: cfg, safeMode: safeMode}
}

// Evaluate matches ability, a "namespace/verb" name, against the deny and
// allow lists. Patterns may name the full ability or only its verb. In safe
// mode anything not marked read-only is denied.
func (p *Policy) Evaluate(ability string, readOnly bool) Decision {
	if p.safeMode && !readOnly {
		return Deny
	}

	if matchesAny(p.cfg.DenyAbilities, ability) {
		return Deny
	}

	if len(p.cfg.AllowAbilities) > 0 && !matchesAny(p.cfg.AllowAbilities, ability) {
		return Deny
	}

	return Allow
}

func matchesAny(patterns []string, ability string) bool {
	_, verb, _ := strings.Cut(ability, "/")
	for _, pattern := range patterns {
		if matched, _ := path.Match(pattern, ability); matched {
			return true
		}
		if verb != "" {
			if matched, _ := path.Match(pattern, verb); matched {
				return true
			}
		}
	}
	return false
}
