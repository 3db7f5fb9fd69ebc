package github

import (
	"fmt"
	"strings"
)

// ShortName returns the repository part of owner/name
func ShortName(fullName string) string {
	if i := strings.LastIndex(fullName, "/"); i >= 0 {
		return fullName[i+1:]
	}
	return fullName
}

// NameKeywords turns a repository name into search words
func NameKeywords(name string) string {
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return strings.TrimSpace(name)
}

// RepositoryQuery builds a search query for terms in language that excludes
// repositories whose name matches excludeName
func RepositoryQuery(terms, language, excludeName string) string {
	q := strings.TrimSpace(terms)
	if language != "" {
		q += " language:" + language
	}
	if excludeName != "" {
		q += fmt.Sprintf(" -in:name %s", excludeName)
	}
	return strings.TrimSpace(q)
}

// SameRepository compares a candidate's owner/name with the analyzed
// repository, case-insensitively
func SameRepository(candidate, fullName string) bool {
	return strings.EqualFold(candidate, fullName)
}
