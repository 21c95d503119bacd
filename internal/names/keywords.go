// Package names maps source definitions to canonical target-language names:
// public-path search, stable canonical selection, alias re-exports and
// reserved-word escaping.
package names

import (
	"golang.org/x/text/unicode/norm"
)

// rustKeywords is the reserved-word list of the Rust target, including
// reserved-for-future-use words. Escaped with raw identifiers.
var rustKeywords = map[string]bool{
	"as": true, "async": true, "await": true, "break": true, "const": true,
	"continue": true, "crate": true, "dyn": true, "else": true, "enum": true,
	"extern": true, "false": true, "fn": true, "for": true, "if": true,
	"impl": true, "in": true, "let": true, "loop": true, "match": true,
	"mod": true, "move": true, "mut": true, "pub": true, "ref": true,
	"return": true, "self": true, "Self": true, "static": true, "struct": true,
	"super": true, "trait": true, "true": true, "type": true, "unsafe": true,
	"use": true, "where": true, "while": true,
	"abstract": true, "become": true, "box": true, "do": true, "final": true,
	"macro": true, "override": true, "priv": true, "try": true, "typeof": true,
	"unsized": true, "virtual": true, "yield": true,
}

// rawForbidden are Rust keywords that cannot be raw identifiers; they get a
// trailing underscore instead of the r# prefix.
var rawForbidden = map[string]bool{
	"crate": true, "self": true, "Self": true, "super": true, "extern": true,
}

// cppKeywords is the reserved-word list of the C++ target.
var cppKeywords = map[string]bool{
	"alignas": true, "alignof": true, "and": true, "asm": true, "auto": true,
	"bool": true, "break": true, "case": true, "catch": true, "char": true,
	"class": true, "concept": true, "const": true, "consteval": true,
	"constexpr": true, "constinit": true, "continue": true, "decltype": true,
	"default": true, "delete": true, "do": true, "double": true, "else": true,
	"enum": true, "explicit": true, "export": true, "extern": true,
	"false": true, "float": true, "for": true, "friend": true, "goto": true,
	"if": true, "inline": true, "int": true, "long": true, "mutable": true,
	"namespace": true, "new": true, "noexcept": true, "not": true,
	"nullptr": true, "operator": true, "or": true, "private": true,
	"protected": true, "public": true, "register": true, "requires": true,
	"return": true, "short": true, "signed": true, "sizeof": true,
	"static": true, "struct": true, "switch": true, "template": true,
	"this": true, "throw": true, "true": true, "try": true, "typedef": true,
	"typeid": true, "typename": true, "union": true, "unsigned": true,
	"using": true, "virtual": true, "void": true, "volatile": true,
	"while": true,
}

// normalize brings an identifier to NFC before keyword checks, matching how
// both compilers compare identifiers.
func normalize(ident string) string {
	return norm.NFC.String(ident)
}

// IsRustKeyword reports whether ident is reserved in the Rust target.
func IsRustKeyword(ident string) bool {
	return rustKeywords[normalize(ident)]
}

// IsCppKeyword reports whether ident is reserved in the C++ target.
func IsCppKeyword(ident string) bool {
	return cppKeywords[normalize(ident)]
}

// EscapeRust mechanically escapes a source identifier for the Rust target.
func EscapeRust(ident string) string {
	ident = normalize(ident)
	if !rustKeywords[ident] {
		return ident
	}
	if rawForbidden[ident] {
		return ident + "_"
	}
	return "r#" + ident
}

// EscapeCpp mechanically escapes a source identifier for the C++ target.
func EscapeCpp(ident string) string {
	ident = normalize(ident)
	if cppKeywords[ident] {
		return ident + "_"
	}
	return ident
}
