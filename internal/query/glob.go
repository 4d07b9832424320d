package query

import "strings"

// globToLike converts a shell-style glob (`*` any run, `?` single char)
// into a SQL LIKE pattern escaped with backslash: literal `\`, `%`, and `_`
// are escaped first so they aren't mistaken for LIKE metacharacters, then
// `*`→`%` and `?`→`_` are substituted.
func globToLike(pattern string) string {
	return GlobToLike(pattern)
}

// GlobToLike is the exported form, shared with internal/trim's pattern
// filter, which applies the identical glob-to-LIKE conversion against
// filenames.
func GlobToLike(pattern string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`%`, `\%`,
		`_`, `\_`,
		`*`, `%`,
		`?`, `_`,
	)
	return r.Replace(pattern)
}
