package middleware

import (
	"fmt"
	"net/http"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/farmtech/livestock-auth/internal/errs"
	"github.com/farmtech/livestock-auth/internal/model"
)

// Rule maps an ant-style path pattern to the roles allowed through it.
// Empty Methods matches every method. A rule with no Roles only requires
// an authenticated caller; a Public rule requires nothing.
type Rule struct {
	Pattern string
	Methods []string
	Roles   []model.Role
	Public  bool
}

func (r Rule) String() string {
	m := "*"
	if len(r.Methods) > 0 {
		m = strings.Join(r.Methods, ",")
	}
	switch {
	case r.Public:
		return fmt.Sprintf("%s %s permitAll", m, r.Pattern)
	case len(r.Roles) == 0:
		return fmt.Sprintf("%s %s authenticated", m, r.Pattern)
	}
	roles := make([]string, len(r.Roles))
	for i, role := range r.Roles {
		roles[i] = role.String()
	}
	return fmt.Sprintf("%s %s hasAnyRole(%s)", m, r.Pattern, strings.Join(roles, ","))
}

func (r Rule) matchesMethod(method string) bool {
	if len(r.Methods) == 0 {
		return true
	}
	for _, m := range r.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// matchesPath treats a trailing "/**" as covering the parent itself, so
// "/api/auth/**" also matches "/api/auth".
func (r Rule) matchesPath(p string) bool {
	if base, ok := strings.CutSuffix(r.Pattern, "/**"); ok && p == base {
		return true
	}
	ok, _ := doublestar.Match(r.Pattern, p)
	return ok
}

// Policy is an ordered rule table. Evaluation is top-down and the first
// matching rule decides, so a narrower pattern must be listed before the
// broader one that contains it.
type Policy struct {
	rules []Rule
}

// NewPolicy validates every pattern and keeps the rules in the given order.
func NewPolicy(rules ...Rule) (*Policy, error) {
	for i, r := range rules {
		if !strings.HasPrefix(r.Pattern, "/") || !doublestar.ValidatePattern(r.Pattern) {
			return nil, fmt.Errorf("policy rule %d: invalid pattern %q", i, r.Pattern)
		}
		for _, role := range r.Roles {
			if !role.Valid() {
				return nil, fmt.Errorf("policy rule %d: invalid role %d", i, role)
			}
		}
	}
	return &Policy{rules: slices.Clone(rules)}, nil
}

// Rules returns a copy of the table.
func (p *Policy) Rules() []Rule { return slices.Clone(p.rules) }

// Decide returns the rule that matched (nil when none did) and a
// *errs.DeniedError when the caller may not proceed. Unmatched requests
// only require an authenticated caller.
func (p *Policy) Decide(method, urlPath string, who *Principal) (*Rule, error) {
	urlPath = cleanPath(urlPath)
	for i := range p.rules {
		r := &p.rules[i]
		if !r.matchesMethod(method) || !r.matchesPath(urlPath) {
			continue
		}
		switch {
		case r.Public:
			return r, nil
		case who == nil:
			return r, &errs.DeniedError{Path: urlPath, Anonymous: true}
		case len(r.Roles) == 0, slices.Contains(r.Roles, who.Role):
			return r, nil
		}
		return r, &errs.DeniedError{Path: urlPath, Role: who.Role.String()}
	}
	if who == nil {
		return nil, &errs.DeniedError{Path: urlPath, Anonymous: true}
	}
	return nil, nil
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}

// Shadow names a rule that can never be reached because an earlier rule
// matches every request it would.
type Shadow struct {
	Rule, By Rule
	Index    int
}

// Shadowed reports unreachable rules. It does not reorder anything; the
// table keeps its declared semantics.
func (p *Policy) Shadowed() []Shadow {
	var out []Shadow
	for j := 1; j < len(p.rules); j++ {
		later := p.rules[j]
		for i := 0; i < j; i++ {
			earlier := p.rules[i]
			if covers(earlier, later) {
				out = append(out, Shadow{Rule: later, By: earlier, Index: j})
				break
			}
		}
	}
	return out
}

// covers reports whether every request later matches is matched by
// earlier. Matching the later pattern text as a path is exact for literal
// patterns and for "**" suffixes.
func covers(earlier, later Rule) bool {
	if len(earlier.Methods) > 0 {
		if len(later.Methods) == 0 {
			return false
		}
		for _, m := range later.Methods {
			if !earlier.matchesMethod(m) {
				return false
			}
		}
	}
	if earlier.Pattern == later.Pattern {
		return true
	}
	if earlier.matchesPath(later.Pattern) {
		return true
	}
	base, ok := strings.CutSuffix(later.Pattern, "/**")
	return ok && earlier.matchesPath(base) && earlier.matchesPath(base+"/x/y")
}

// DefaultRules is the farm-management route table. The GET health-records
// rule and the livestock analytics rule are shadowed by the broader rules
// above them and are kept so the table behaves as it always has.
func DefaultRules() []Rule {
	farmerAdmin := []model.Role{model.RoleFarmer, model.RoleAdmin}
	return []Rule{
		{Pattern: "/api/auth/**", Public: true},
		{Pattern: "/api/public/**", Public: true},
		{Pattern: "/healthz", Public: true},
		{Pattern: "/readyz", Public: true},
		{Pattern: "/metrics", Methods: []string{http.MethodGet}, Public: true},
		{Pattern: "/api/admin/**", Roles: []model.Role{model.RoleAdmin}},
		{Pattern: "/api/livestock/image/upload", Roles: farmerAdmin},
		{Pattern: "/api/livestock/create", Roles: farmerAdmin},
		{Pattern: "/api/livestock/**", Roles: farmerAdmin},
		{Pattern: "/api/categories/**", Roles: farmerAdmin},
		{Pattern: "/api/health-records/**", Roles: []model.Role{model.RoleVeterinarian, model.RoleAdmin}},
		{Pattern: "/api/health-records/**", Methods: []string{http.MethodGet}, Roles: []model.Role{model.RoleVeterinarian, model.RoleAdmin, model.RoleFarmer}},
		{Pattern: "/api/breeds/**", Roles: farmerAdmin},
		{Pattern: "/api/livestock/analytics", Roles: farmerAdmin},
	}
}
