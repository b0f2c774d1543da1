package core

import (
	"fmt"
	"strings"
)

// DBType is the abstract, database independent type of a column.
// Dialects map each value to their own SQL syntax.
type DBType int

const (
	TypeUnknown DBType = iota
	TypeBoolean
	TypeByte
	TypeShort
	TypeInt
	TypeLong
	TypeID
	TypeFloat
	TypeDouble
	TypeDecimal
	TypeString
	TypeChar
	TypeClob
	TypeBlob
	TypeDate
	TypeTime
	TypeDateTime
)

var dbTypeNames = [...]string{
	TypeUnknown:  "unknown",
	TypeBoolean:  "boolean",
	TypeByte:     "byte",
	TypeShort:    "short",
	TypeInt:      "int",
	TypeLong:     "long",
	TypeID:       "id",
	TypeFloat:    "float",
	TypeDouble:   "double",
	TypeDecimal:  "decimal",
	TypeString:   "string",
	TypeChar:     "char",
	TypeClob:     "clob",
	TypeBlob:     "blob",
	TypeDate:     "date",
	TypeTime:     "time",
	TypeDateTime: "datetime",
}

// dbTypeAliases accepts the spellings people commonly write in schema files.
var dbTypeAliases = map[string]DBType{
	"bool":      TypeBoolean,
	"tinyint":   TypeByte,
	"smallint":  TypeShort,
	"integer":   TypeInt,
	"bigint":    TypeLong,
	"real":      TypeFloat,
	"numeric":   TypeDecimal,
	"varchar":   TypeString,
	"text":      TypeClob,
	"binary":    TypeBlob,
	"timestamp": TypeDateTime,
}

// AllTypes lists every known abstract type, excluding TypeUnknown.
func AllTypes() []DBType {
	types := make([]DBType, 0, len(dbTypeNames)-1)
	for t := TypeBoolean; t <= TypeDateTime; t++ {
		types = append(types, t)
	}
	return types
}

func (t DBType) String() string {
	if t < 0 || int(t) >= len(dbTypeNames) {
		return fmt.Sprintf("DBType(%d)", int(t))
	}
	return dbTypeNames[t]
}

// ParseDBType resolves a type name (case-insensitive, aliases allowed).
func ParseDBType(s string) (DBType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range dbTypeNames {
		if i != int(TypeUnknown) && n == name {
			return DBType(i), nil
		}
	}
	if t, ok := dbTypeAliases[name]; ok {
		return t, nil
	}
	return TypeUnknown, fmt.Errorf("unknown column type %q", s)
}

func (t DBType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *DBType) UnmarshalText(text []byte) error {
	parsed, err := ParseDBType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Canonical returns the type used for storage comparison. TypeID is stored
// exactly like TypeLong.
func (t DBType) Canonical() DBType {
	if t == TypeID {
		return TypeLong
	}
	return t
}

func (t DBType) IsIntegral() bool {
	switch t {
	case TypeByte, TypeShort, TypeInt, TypeLong, TypeID:
		return true
	}
	return false
}

func (t DBType) IsNumeric() bool {
	return t.IsIntegral() || t == TypeFloat || t == TypeDouble || t == TypeDecimal
}

func (t DBType) IsTextual() bool {
	return t == TypeString || t == TypeChar || t == TypeClob
}

func (t DBType) IsTemporal() bool {
	return t == TypeDate || t == TypeTime || t == TypeDateTime
}

// SizeRequired reports whether columns of this type must declare a size.
func (t DBType) SizeRequired() bool {
	return t == TypeString || t == TypeChar
}

// SupportsPrecision reports whether the type carries a scale in addition to a size.
func (t DBType) SupportsPrecision() bool {
	return t == TypeDecimal
}

// rank orders integral and floating types by width so that narrowing
// conversions can be detected.
func (t DBType) rank() int {
	switch t.Canonical() {
	case TypeBoolean:
		return 1
	case TypeByte:
		return 2
	case TypeShort:
		return 3
	case TypeInt:
		return 4
	case TypeLong:
		return 5
	case TypeFloat:
		return 6
	case TypeDouble:
		return 7
	}
	return 0
}

// Narrows reports whether converting a column from t to target can lose data.
func (t DBType) Narrows(target DBType) bool {
	if t.Canonical() == target.Canonical() {
		return false
	}
	from, to := t.rank(), target.rank()
	if from > 0 && to > 0 {
		return to < from
	}
	switch {
	case t == TypeClob && target.IsTextual():
		return true
	case t.IsTextual() && !target.IsTextual():
		return true
	case t == TypeBlob:
		return true
	case t == TypeDateTime && (target == TypeDate || target == TypeTime):
		return true
	}
	return t.IsNumeric() != target.IsNumeric()
}
