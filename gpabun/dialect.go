package gpabun

import (
	"fmt"
	"strings"

	"github.com/lemmego/criteria/metamodel"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// Dialect constants
const (
	DialectSQLite = "sqlite"
	DialectMySQL  = "mysql"
	DialectPgSQL  = "pgsql"
)

// SupportedDialects is a list of all dialects models can be seeded through
var SupportedDialects = []string{
	DialectSQLite,
	DialectMySQL,
	DialectPgSQL,
}

// IsDialectSupported checks if the given dialect is supported
func IsDialectSupported(dialect string) bool {
	for _, d := range SupportedDialects {
		if d == dialect {
			return true
		}
	}
	return false
}

// NewDialect creates the bun dialect registered under name.
// Driver aliases such as "postgres" and "sqlite3" are accepted.
func NewDialect(name string) (schema.Dialect, error) {
	switch strings.ToLower(name) {
	case DialectPgSQL, "postgres", "postgresql":
		return pgdialect.New(), nil
	case DialectMySQL:
		return mysqldialect.New(), nil
	case DialectSQLite, "sqlite3":
		return sqlitedialect.New(), nil
	}
	return nil, fmt.Errorf("%w: unsupported bun dialect %q", metamodel.ErrInvalidDeclaration, name)
}
