// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug turns arbitrary strings into page routes and validates
// routes taken from URLs.
package slug

import (
	"regexp"
	"strings"
)

// MaxRouteLength bounds a page route.
const MaxRouteLength = 64

var (
	// nonAlphanumeric matches anything that isn't a letter, digit, or space.
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9\s-]`)
	// multipleHyphens collapses consecutive hyphens into one.
	multipleHyphens = regexp.MustCompile(`-{2,}`)
	// routePattern is a lowercase hyphenated slug.
	routePattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

// Generate creates a URL-friendly slug from the given string.
// Example: "Hello, World! 2026" → "hello-world-2026"
func Generate(s string) string {
	result := strings.ToLower(strings.TrimSpace(s))
	result = strings.ReplaceAll(result, "_", " ")
	result = nonAlphanumeric.ReplaceAllString(result, "")
	result = strings.Join(strings.Fields(result), "-")
	result = multipleHyphens.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")
	if len(result) > MaxRouteLength {
		result = strings.TrimRight(result[:MaxRouteLength], "-")
	}
	return result
}

// Valid reports whether s is already a well-formed page route.
func Valid(s string) bool {
	return len(s) <= MaxRouteLength && routePattern.MatchString(s)
}

// Route normalises a route from a URL or a form. An empty input yields
// fallback; ok is false when nothing usable remains.
func Route(s, fallback string) (route string, ok bool) {
	s = strings.Trim(strings.TrimSpace(s), "/")
	if s == "" {
		return fallback, fallback != ""
	}
	route = Generate(s)
	return route, route != ""
}
