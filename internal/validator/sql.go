package validator

import (
	"fmt"
	"strings"
	"unicode"
)

// writeKeywords is the fixed forbidden set for read-only SQL: data
// modification, data definition, privilege control, and procedure
// execution keywords (§4.3).
var writeKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true, "REPLACE": true,
	"CREATE": true, "ALTER": true, "DROP": true, "TRUNCATE": true,
	"GRANT": true, "REVOKE": true,
	"CALL": true, "EXEC": true, "EXECUTE": true,
}

// ddlKeywords is the set ValidateDDL requires as the leading token.
var ddlKeywords = map[string]bool{
	"CREATE": true, "ALTER": true, "DROP": true, "TRUNCATE": true,
}

// ValidateSQL enforces that rendered is exactly one read-only statement
// (§4.3 "SQL validation"). Comments are stripped from a working copy first;
// the caller's original text (with parameter placeholders) is unaffected.
func (v *Validator) ValidateSQL(rendered string) error {
	stripped := stripSQLComments(rendered)
	statements := splitStatements(stripped)
	if len(statements) == 0 {
		return fmt.Errorf("%w: empty statement", ErrInvalidStructure)
	}
	if len(statements) > 1 {
		return fmt.Errorf("%w: found %d statements", ErrMultipleStatements, len(statements))
	}

	stmt := strings.TrimSpace(statements[0])
	tokens := tokenize(stmt)
	if len(tokens) == 0 {
		return fmt.Errorf("%w: empty statement", ErrInvalidStructure)
	}

	first := strings.ToUpper(tokens[0])
	if first != "SELECT" && !(first == "WITH" && containsSelect(tokens)) {
		return fmt.Errorf("%w: statement does not begin with SELECT or WITH...SELECT", ErrNotReadOnly)
	}

	for _, tok := range tokens {
		if writeKeywords[strings.ToUpper(tok)] {
			return fmt.Errorf("%w: forbidden keyword %q present", ErrNotReadOnly, strings.ToUpper(tok))
		}
	}

	return nil
}

// ValidateDDL enforces the inverted rule used only by the DDL meta-tool:
// the first significant token must be CREATE/ALTER/DROP/TRUNCATE, and the
// single-statement rule still holds.
func (v *Validator) ValidateDDL(body string) error {
	stripped := stripSQLComments(body)
	statements := splitStatements(stripped)
	if len(statements) == 0 {
		return fmt.Errorf("%w: empty statement", ErrInvalidStructure)
	}
	if len(statements) > 1 {
		return fmt.Errorf("%w: found %d statements", ErrMultipleStatements, len(statements))
	}

	tokens := tokenize(strings.TrimSpace(statements[0]))
	if len(tokens) == 0 {
		return fmt.Errorf("%w: empty statement", ErrInvalidStructure)
	}
	first := strings.ToUpper(tokens[0])
	if !ddlKeywords[first] {
		return fmt.Errorf("%w: statement does not begin with CREATE, ALTER, DROP, or TRUNCATE", ErrInvalidStructure)
	}
	return nil
}

func containsSelect(tokens []string) bool {
	for _, tok := range tokens {
		if strings.ToUpper(tok) == "SELECT" {
			return true
		}
	}
	return false
}

// stripSQLComments removes "--" line comments and "/* ... */" block
// comments, respecting single-quoted string literals so a literal
// containing "--" is not mistaken for a comment.
func stripSQLComments(sql string) string {
	var out strings.Builder
	inString := false
	runes := []rune(sql)
	for i := 0; i < len(runes); i++ {
		c := runes[i]

		if inString {
			out.WriteRune(c)
			if c == '\'' {
				inString = false
			}
			continue
		}

		if c == '\'' {
			inString = true
			out.WriteRune(c)
			continue
		}

		if c == '-' && i+1 < len(runes) && runes[i+1] == '-' {
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			if i < len(runes) {
				out.WriteRune('\n')
			}
			continue
		}

		if c == '/' && i+1 < len(runes) && runes[i+1] == '*' {
			i += 2
			for i+1 < len(runes) && !(runes[i] == '*' && runes[i+1] == '/') {
				i++
			}
			i++ // consume the '/'
			continue
		}

		out.WriteRune(c)
	}
	return out.String()
}

// splitStatements splits on ';' outside of string literals, discarding a
// single trailing empty statement (a tolerated trailing terminator) but
// treating any interior terminator as a separate statement.
func splitStatements(sql string) []string {
	var parts []string
	var cur strings.Builder
	inString := false
	for _, c := range sql {
		if c == '\'' {
			inString = !inString
			cur.WriteRune(c)
			continue
		}
		if c == ';' && !inString {
			parts = append(parts, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteRune(c)
	}
	if strings.TrimSpace(cur.String()) != "" {
		parts = append(parts, cur.String())
	}

	var nonEmpty []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return nonEmpty
}

// tokenize performs a minimal whitespace/punctuation split sufficient to
// find keywords; it is not a full SQL lexer (no third-party SQL parser
// exists anywhere in the example pack — see DESIGN.md).
func tokenize(sql string) []string {
	var tokens []string
	var cur strings.Builder
	inString := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, c := range sql {
		if c == '\'' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		if unicode.IsSpace(c) || strings.ContainsRune("(),;", c) {
			flush()
			continue
		}
		cur.WriteRune(c)
	}
	flush()
	return tokens
}
