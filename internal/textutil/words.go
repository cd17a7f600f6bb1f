package textutil

import "strings"

// PastTense derives the simple past of a regular verb: "extract" becomes
// "extracted" and "merge" becomes "merged". A non-empty override wins.
func PastTense(verb, override string) string {
	if override != "" {
		return override
	}
	if verb == "" {
		return ""
	}
	if strings.HasSuffix(verb, "e") {
		return verb + "d"
	}
	return verb + "ed"
}

// Plural appends "s" to noun unless count is exactly one.
func Plural(count int, noun string) string {
	return noun + Ternary(count == 1, "", "s")
}
