package dbms

import (
	"fmt"
	"regexp"
	"strings"
)

// quotedLiteralPattern matches single-quoted SQL string literals, e.g. 'admin'.
// It does not attempt to handle doubled-quote escaping inside the literal;
// expressions built by this engine's own payload templates never nest quotes.
var quotedLiteralPattern = regexp.MustCompile(`'([^']*)'`)

// unescapeToHex rewrites every single-quoted string literal in expr into an
// equivalent hex literal (0x...), which several DBMS (MySQL, MSSQL, SQLite)
// accept in place of a quoted string. This lets the injected expression
// survive filters that strip or escape quote characters, mirroring
// sqlmap's unescaper for these dialects.
func unescapeToHex(expr string) string {
	return quotedLiteralPattern.ReplaceAllStringFunc(expr, func(match string) string {
		inner := match[1 : len(match)-1]
		if inner == "" {
			return match
		}
		var b strings.Builder
		b.WriteString("0x")
		for i := 0; i < len(inner); i++ {
			fmt.Fprintf(&b, "%02x", inner[i])
		}
		return b.String()
	})
}
