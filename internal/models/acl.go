package models

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Access is the bool-or-group-list access rule used at both the service
// and the API level. In the provisioning payload it appears either as a
// boolean or as an array of group codes.
type Access struct {
	Required bool
	Groups   []string
}

func (a *Access) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		a.Required = b
		a.Groups = nil
		return nil
	}
	var groups []string
	if err := json.Unmarshal(data, &groups); err != nil {
		return err
	}
	a.Required = true
	a.Groups = groups
	return nil
}

func (a *Access) MarshalJSON() ([]byte, error) {
	if len(a.Groups) > 0 {
		return json.Marshal(a.Groups)
	}
	return json.Marshal(a.Required)
}

// Restricted returns true when access is required at all. A nil rule and
// an explicit false both mean the subject is open.
func (a *Access) Restricted() bool {
	return a != nil && a.Required
}

// APIRule is the per-path access rule. A nil Access means the API
// inherits the service-level decision.
type APIRule struct {
	Access *Access `json:"access,omitempty"`
}

// RegexAPIRule carries a pattern-matched access rule. Patterns are
// compiled once when the ACL is resolved, never per match.
type RegexAPIRule struct {
	Pattern string  `json:"regExp"`
	Access  *Access `json:"access,omitempty"`

	re *regexp.Regexp
}

func (r *RegexAPIRule) Match(path string) bool {
	if r.re == nil {
		return false
	}
	return r.re.MatchString(path)
}

// Rule returns the regex entry as a plain API rule.
func (r *RegexAPIRule) Rule() *APIRule {
	return &APIRule{Access: r.Access}
}

// MethodACL narrows a service ACL to one HTTP method.
type MethodACL struct {
	APIs           map[string]*APIRule `json:"apis,omitempty"`
	APIsRegExp     []*RegexAPIRule     `json:"apisRegExp,omitempty"`
	APIsPermission string              `json:"apisPermission,omitempty"`
}

// ServiceACL is the resolved authorization rule set for one service.
// Values are never mutated in place: every narrowing step produces a
// fresh view so pipeline stages stay composable.
type ServiceACL struct {
	Access         *Access                `json:"access,omitempty"`
	APIsPermission string                 `json:"apisPermission,omitempty"`
	APIs           map[string]*APIRule    `json:"apis,omitempty"`
	APIsRegExp     []*RegexAPIRule        `json:"apisRegExp,omitempty"`
	Versions       map[string]*ServiceACL `json:"versions,omitempty"`
	Methods        map[string]*MethodACL  `json:"methods,omitempty"`
}

// APIPermissionRestricted is the apisPermission value that locks a
// service down to the explicitly listed APIs.
const APIPermissionRestricted = "restricted"

// PackageACL maps service name to its ACL inside a provisioned package.
type PackageACL map[string]*ServiceACL

// SanitizeVersion converts a dotted version into the key form used by
// the provisioning records ("2.1" is stored as "2x1").
func SanitizeVersion(version string) string {
	return strings.ReplaceAll(version, ".", "x")
}

// NarrowVersion returns the version-specific view of the ACL when one
// exists, otherwise the receiver unchanged.
func (s *ServiceACL) NarrowVersion(version string) *ServiceACL {
	if s == nil || version == "" {
		return s
	}
	if v, ok := s.Versions[SanitizeVersion(version)]; ok && v != nil {
		return v
	}
	return s
}

// NarrowMethod projects the ACL onto one HTTP method, carrying over the
// service access flag and falling back to the service-wide permission
// mode when the method block does not set its own.
func (s *ServiceACL) NarrowMethod(method string) *ServiceACL {
	if s == nil {
		return nil
	}
	m, ok := s.Methods[strings.ToLower(method)]
	if !ok || m == nil {
		return s
	}
	narrowed := &ServiceACL{
		Access:         s.Access,
		APIs:           m.APIs,
		APIsRegExp:     m.APIsRegExp,
		APIsPermission: m.APIsPermission,
	}
	if narrowed.APIsPermission == "" {
		narrowed.APIsPermission = s.APIsPermission
	}
	return narrowed.Compile()
}

// Compile prepares the ACL for matching: path-parameter API keys
// ("/item/:id") are converted into regex entries and all patterns are
// compiled. Returns a new view, the receiver is left untouched.
func (s *ServiceACL) Compile() *ServiceACL {
	if s == nil {
		return nil
	}
	out := &ServiceACL{
		Access:         s.Access,
		APIsPermission: s.APIsPermission,
		Methods:        s.Methods,
		APIs:           make(map[string]*APIRule, len(s.APIs)),
	}
	if len(s.Versions) > 0 {
		out.Versions = make(map[string]*ServiceACL, len(s.Versions))
		for v, sub := range s.Versions {
			out.Versions[v] = sub.Compile()
		}
	}
	for path, rule := range s.APIs {
		if strings.Contains(path, "/:") {
			out.APIsRegExp = append(out.APIsRegExp, &RegexAPIRule{
				Pattern: pathParamPattern(path),
				Access:  ruleAccess(rule),
			})
			continue
		}
		out.APIs[path] = rule
	}
	for _, rx := range s.APIsRegExp {
		out.APIsRegExp = append(out.APIsRegExp, &RegexAPIRule{Pattern: rx.Pattern, Access: rx.Access})
	}
	for _, rx := range out.APIsRegExp {
		if re, err := regexp.Compile(rx.Pattern); err == nil {
			rx.re = re
		}
	}
	return out
}

func ruleAccess(rule *APIRule) *Access {
	if rule == nil {
		return nil
	}
	return rule.Access
}

// pathParamPattern turns "/item/:id/tag" into "^/item/[^/]+/tag$".
func pathParamPattern(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, ":") {
			segments[i] = "[^/]+"
		} else {
			segments[i] = regexp.QuoteMeta(seg)
		}
	}
	return "^" + strings.Join(segments, "/") + "$"
}

// FindAPI resolves the rule for a path: exact entry first, then the
// regex list where the last matching entry wins.
func (s *ServiceACL) FindAPI(path string) *APIRule {
	if s == nil {
		return nil
	}
	if api, ok := s.APIs[path]; ok {
		return api
	}
	var matched *APIRule
	for _, rx := range s.APIsRegExp {
		if rx.Match(path) {
			matched = rx.Rule()
		}
	}
	return matched
}
