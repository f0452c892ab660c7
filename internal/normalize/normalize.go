// Package normalize holds the text and URL canonicalization rules shared by
// the dedupe fingerprint and the clustering similarity input.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// Boilerplate fragments publishers append to titles/excerpts; stripped
// before fingerprinting so syndicated copies hash identically.
var boilerplateRE = regexp.MustCompile(`(?i)\s*(\[read more.*?\]|read more\s*(>+|»)?|sponsored:?|advertisement)\s*$`)

// Text collapses whitespace and trims.
func Text(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(s, " "))
}

// Title is Text plus case folding and boilerplate stripping.
func Title(s string) string {
	return strings.ToLower(boilerplateRE.ReplaceAllString(Text(s), ""))
}

// CanonicalURL lowercases the host, drops www., fragments and trailing
// slashes so syndication variants of one link compare equal.
func CanonicalURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	} else if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String()
}

// Fingerprint is the dedupe identity: sha256 over the normalized title and
// body. Hash equality is treated as exact duplication.
func Fingerprint(title, body string) string {
	h := sha256.New()
	h.Write([]byte(Title(title)))
	h.Write([]byte("::"))
	h.Write([]byte(strings.ToLower(Text(body))))
	return hex.EncodeToString(h.Sum(nil))
}
