package cache

import (
	"strconv"
	"strings"
)

// Prebuilt namespaces for the three logical caches that share one store.
const (
	NamespaceSearch   = "search"
	NamespaceAnalysis = "analysis"
	NamespaceResults  = "results"
)

// ValidateNamespace rejects namespaces that cannot form a key prefix: the
// empty string and anything containing KeySeparator. Any other string is
// used verbatim, so "Search" and "search" are distinct namespaces.
func ValidateNamespace(namespace string) error {
	switch {
	case namespace == "":
		return newInvalidNamespaceError(namespace, "is empty")
	case strings.Contains(namespace, KeySeparator):
		return newInvalidNamespaceError(namespace, "contains the key separator "+strconv.Quote(KeySeparator))
	}
	return nil
}
