package wpclient

import (
	"strings"
)

// idPlaceholder in InvalidationRule.Affected is replaced by the written id.
const idPlaceholder = "{id}"

// InvalidationRule lists what a successful write to Trigger makes stale.
// Trigger matches the written path or any path below it. Affected entries
// are collection names or templates containing {id}.
type InvalidationRule struct {
	Trigger  string
	Affected []string
}

// DefaultInvalidationRules relates each content collection to the listings
// that embed or count it.
func DefaultInvalidationRules() []InvalidationRule {
	return []InvalidationRule{
		{Trigger: "posts", Affected: []string{"posts", "posts/{id}", "categories", "tags", "search"}},
		{Trigger: "pages", Affected: []string{"pages", "pages/{id}", "search"}},
		{Trigger: "comments", Affected: []string{"comments", "comments/{id}", "posts"}},
		{Trigger: "media", Affected: []string{"media", "media/{id}", "posts"}},
		{Trigger: "users", Affected: []string{"users", "users/{id}", "users/me"}},
		{Trigger: "categories", Affected: []string{"categories", "categories/{id}", "posts"}},
		{Trigger: "tags", Affected: []string{"tags", "tags/{id}", "posts"}},
		{Trigger: "settings", Affected: []string{"settings"}},
	}
}

// splitResource returns the collection and entity id of a path such as
// "posts/5/revisions". id is empty for collection writes.
func splitResource(path string) (collection, id string) {
	parts := strings.Split(normalizePath(path), "/")
	collection = parts[0]
	if len(parts) > 1 {
		id = parts[1]
	}
	return collection, id
}

// invalidationPatterns derives the DeletePattern patterns for a successful
// write to path. The written entity and its collection are always
// included; every matching rule adds its affected resources.
func invalidationPatterns(siteID, path string, rules []InvalidationRule) []string {
	path = normalizePath(path)
	collection, id := splitResource(path)
	prefix := "^" + siteID + ":GET:"

	var patterns []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		patterns = append(patterns, p)
	}
	addResource := func(resource string) {
		if resource == "" {
			return
		}
		add(prefix + resource + "$")
		add(prefix + resource + "?")
	}

	addResource(path)
	if id != "" {
		addResource(collection + "/" + id)
		add(prefix + collection + "/" + id + "/")
	}
	addResource(collection)

	for _, rule := range rules {
		trigger := normalizePath(rule.Trigger)
		if trigger == "" || (path != trigger && !strings.HasPrefix(path, trigger+"/")) {
			continue
		}
		for _, affected := range rule.Affected {
			if strings.Contains(affected, idPlaceholder) {
				if id == "" {
					continue
				}
				affected = strings.ReplaceAll(affected, idPlaceholder, id)
			}
			addResource(normalizePath(affected))
		}
	}
	return patterns
}
