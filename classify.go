package wpclient

import "strings"

// ClassRule assigns Class to any path containing one of Contains.
type ClassRule struct {
	Class    EndpointClass
	Contains []string
}

// DefaultClassRules is evaluated in order, first match wins: credential
// scoped endpoints, then registries and settings, then taxonomies and
// users. Anything else is dynamic.
func DefaultClassRules() []ClassRule {
	return []ClassRule{
		{Class: ClassSession, Contains: []string{"users/me", "application-passwords", "jwt-auth"}},
		{Class: ClassStatic, Contains: []string{"settings", "types", "statuses", "taxonomies"}},
		{Class: ClassSemiStatic, Contains: []string{"categories", "tags", "users"}},
	}
}

// Classify resolves the endpoint class of path.
func Classify(path string, rules []ClassRule) EndpointClass {
	path = normalizePath(path)
	for _, rule := range rules {
		for _, fragment := range rule.Contains {
			if fragment != "" && strings.Contains(path, fragment) {
				return rule.Class
			}
		}
	}
	return ClassDynamic
}
