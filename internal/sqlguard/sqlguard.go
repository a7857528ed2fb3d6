// Package sqlguard screens generated SQL before it reaches the warehouse.
//
// The checks are textual: comments are removed, then a denylist of mutating
// verbs, a ban on statement batches and a default row cap are applied. Quoted
// literals and identifiers are masked before looking for separators and
// LIMIT, but the denylist scans them too, so a literal such as 'update'
// rejects the statement. Dollar-quoted strings are not recognized. The
// checks do not parse SQL, so they cannot prove a statement is harmless; the
// executor's read-only transaction is the second line of defense.
package sqlguard

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// DefaultRowLimit is appended to row-returning statements without a LIMIT.
const DefaultRowLimit = 10

var (
	ErrEmpty          = errors.New("statement is empty")
	ErrMutating       = errors.New("statement contains a mutating keyword")
	ErrMultiStatement = errors.New("statement contains more than one statement")
)

// MutatingKeywords are rejected wherever they appear as a standalone word.
var MutatingKeywords = []string{"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "TRUNCATE"}

var (
	mutatingPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(MutatingKeywords, "|") + `)\b`)
	selectPattern   = regexp.MustCompile(`(?i)\bSELECT\b`)
	limitPattern    = regexp.MustCompile(`(?i)\bLIMIT\b`)
)

// Sanitize returns the statement to execute, or false when it must not run.
func Sanitize(raw string) (string, bool) {
	sql, err := Inspect(raw)
	if err != nil {
		return "", false
	}
	return sql, true
}

// Inspect is Sanitize with the rejection reason.
func Inspect(raw string) (string, error) {
	sql := strings.TrimSpace(StripComments(StripFences(raw)))
	sql = strings.TrimSpace(strings.TrimSuffix(sql, ";"))
	if sql == "" {
		return "", ErrEmpty
	}
	if mutatingPattern.MatchString(sql) {
		return "", ErrMutating
	}
	code := maskQuoted(sql)
	if strings.Contains(code, ";") {
		return "", ErrMultiStatement
	}
	if selectPattern.MatchString(code) && !hasOuterLimit(code) {
		sql += " LIMIT " + strconv.Itoa(DefaultRowLimit)
	}
	return sql, nil
}

// StripComments removes "--" line comments and "/* */" block comments that
// are outside quoted literals and identifiers. A block comment becomes a
// single space; an unterminated one runs to the end of the text.
func StripComments(sql string) string {
	var out strings.Builder
	out.Grow(len(sql))
	var quote byte
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case quote != 0:
			out.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
			out.WriteByte(c)
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			if i < len(sql) {
				out.WriteByte('\n')
			}
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				i = len(sql)
			} else {
				i += end + 3
			}
			out.WriteByte(' ')
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

// maskQuoted blanks the contents of quoted literals and identifiers, keeping
// the quotes and byte offsets. Doubled quotes close and reopen, which masks
// them the same way.
func maskQuoted(sql string) string {
	masked := []byte(sql)
	var quote byte
	for i, c := range masked {
		switch {
		case quote != 0 && c == quote:
			quote = 0
		case quote != 0:
			masked[i] = ' '
		case c == '\'' || c == '"':
			quote = c
		}
	}
	return string(masked)
}

// hasOuterLimit reports whether a LIMIT sits outside every parenthesis, so
// a limited subquery does not stand in for the statement's own cap.
func hasOuterLimit(code string) bool {
	for _, loc := range limitPattern.FindAllStringIndex(code, -1) {
		depth := 0
		for _, c := range code[:loc[0]] {
			switch c {
			case '(':
				depth++
			case ')':
				depth--
			}
		}
		if depth <= 0 {
			return true
		}
	}
	return false
}

// StripFences removes markdown code fences wrapped around a statement.
func StripFences(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if len(trimmed) >= 3 && strings.EqualFold(trimmed[:3], "sql") {
			trimmed = trimmed[3:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
