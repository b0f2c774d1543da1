package dialect

import (
	"fmt"
	"hash/fnv"
	"slices"
	"strconv"
	"strings"

	"sqlkit/internal/core"
)

// ColumnParts are the rendered pieces of a column definition.
type ColumnParts struct {
	Name     string
	Type     string
	Identity string
	Default  string
	// Null is "NOT NULL", "NULL" or empty.
	Null    string
	Comment string
}

// String joins the parts in ANSI order: name type identity default null.
func (p ColumnParts) String() string {
	parts := []string{p.Name, p.Type}
	for _, s := range []string{p.Identity, p.Default, p.Null, p.Comment} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// StandardColumnParts renders the parts every dialect shares. The identity
// clause and comment are left to the caller.
func StandardColumnParts(h Helper, col *core.Column) (ColumnParts, error) {
	typ, err := h.SQLType(col)
	if err != nil {
		return ColumnParts{}, err
	}
	p := ColumnParts{Name: h.QuoteIdentifier(col.Name), Type: typ}
	if col.DefaultValue != nil {
		p.Default = "DEFAULT " + FormatDefault(h, col)
	}
	if col.Mandatory {
		p.Null = "NOT NULL"
	}
	return p, nil
}

var defaultKeywords = []string{"NULL", "CURRENT_TIMESTAMP", "CURRENT_DATE", "CURRENT_TIME", "NOW()", "SYSDATE", "SYSTIMESTAMP", "GETDATE()"}

// FormatDefault renders a column default value as a SQL literal. Defaults are
// stored in their literal form; string quotes are added here.
func FormatDefault(h Helper, col *core.Column) string {
	if col.DefaultValue == nil {
		return "NULL"
	}
	v := strings.TrimSpace(*col.DefaultValue)
	upper := strings.ToUpper(v)
	if slices.Contains(defaultKeywords, upper) {
		return upper
	}

	switch {
	case col.Type == core.TypeBoolean:
		switch strings.ToLower(v) {
		case "true", "1", "yes", "on":
			return h.BoolLiteral(true)
		case "false", "0", "no", "off":
			return h.BoolLiteral(false)
		}
	case col.Type.IsNumeric():
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			return v
		}
	}
	if strings.HasSuffix(v, ")") && strings.Contains(v, "(") && !col.Type.IsTextual() {
		return v
	}
	return h.QuoteString(*col.DefaultValue)
}

// SplitSQLType splits a database type name such as "DECIMAL(10, 2) UNSIGNED"
// into its lower-cased base name, numeric arguments and trailing modifiers.
// Non-numeric arguments like MAX are reported as -1.
func SplitSQLType(raw string) (base string, args []int, rest string) {
	s := strings.ToLower(strings.TrimSpace(raw))
	open := strings.IndexByte(s, '(')
	if open < 0 {
		fields := strings.Fields(s)
		if len(fields) == 0 {
			return "", nil, ""
		}
		return knownMultiword(fields)
	}
	closing := strings.IndexByte(s[open:], ')')
	if closing < 0 {
		return strings.TrimSpace(s[:open]), nil, ""
	}
	base = strings.TrimSpace(s[:open])
	for _, a := range strings.Split(s[open+1:open+closing], ",") {
		a = strings.TrimSpace(a)
		// VARCHAR2(10 CHAR)
		if f := strings.Fields(a); len(f) > 0 {
			a = f[0]
		}
		n, err := strconv.Atoi(a)
		if err != nil {
			n = -1
		}
		args = append(args, n)
	}
	rest = strings.TrimSpace(s[open+closing+1:])
	return base, args, rest
}

// knownMultiword keeps multi word type names like "double precision" or
// "timestamp without time zone" together.
func knownMultiword(fields []string) (string, []int, string) {
	joined := strings.Join(fields, " ")
	for _, prefix := range []string{
		"double precision", "character varying", "timestamp without time zone",
		"timestamp with time zone", "time without time zone", "time with time zone",
	} {
		if strings.HasPrefix(joined, prefix) {
			return prefix, nil, strings.TrimSpace(strings.TrimPrefix(joined, prefix))
		}
	}
	return fields[0], nil, strings.Join(fields[1:], " ")
}

// TruncateIdentifier shortens name to limit characters. Truncated names keep
// a hash suffix so that distinct long names stay distinct.
func TruncateIdentifier(name string, limit int) string {
	if limit <= 0 || len(name) <= limit {
		return name
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	suffix := fmt.Sprintf("_%08x", h.Sum32())
	keep := limit - len(suffix)
	if keep <= 0 {
		return suffix[len(suffix)-limit:]
	}
	return name[:keep] + suffix
}

// BackupSuffix marks tables renamed instead of dropped.
const BackupSuffix = "__bak_"

// BackupName is the name a removed table is renamed to when it must be kept.
// It is stable for the same input and fits the dialect identifier limit.
func BackupName(h Helper, table string) string {
	base := strings.TrimSpace(table)
	hash := fnv.New32a()
	_, _ = hash.Write([]byte(base))
	suffix := fmt.Sprintf("%s%08x", BackupSuffix, hash.Sum32())
	if limit := h.MaxIdentifierLength(); limit > 0 && len(base)+len(suffix) > limit {
		base = base[:max(limit-len(suffix), 0)]
	}
	return base + suffix
}

// ConstraintName derives a constraint name that fits the dialect limit.
func ConstraintName(h Helper, prefix, table string, columns []string) string {
	name := prefix + "_" + table
	if len(columns) > 0 {
		name += "_" + strings.Join(columns, "_")
	}
	return TruncateIdentifier(strings.ToLower(name), h.MaxIdentifierLength())
}

// SameDefault reports whether two columns render the same default value.
func SameDefault(h Helper, a, b *core.Column) bool {
	if (a.DefaultValue == nil) != (b.DefaultValue == nil) {
		return false
	}
	return a.DefaultValue == nil || FormatDefault(h, a) == FormatDefault(h, b)
}

// StoresComments reports whether the dialect can persist table comments,
// either inline or through separate statements.
func StoresComments(h Helper) bool {
	t := &core.Table{Name: "t", Comment: "c"}
	return len(h.CommentStatements(t)) > 0 || h.TableSuffix(t) != ""
}
