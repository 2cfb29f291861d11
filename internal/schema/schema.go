// Package schema loads the declarative schema definition that the catalog
// instantiates.
//
// EDUCATIONAL NOTES:
// ------------------
// A schema definition is a small JSON document:
//
//	{
//	  "name": "shop",
//	  "tuples_limit": 1000,
//	  "structure": {
//	    "customers": ["name", "email"],
//	    "orders":    ["customer", "total"]
//	  }
//	}
//
// "tuples_limit" is the page capacity: how many rows fit in one page file
// before a new page is opened. "structure" maps each table to its ordered
// column list. JSON objects are unordered as far as encoding/json's map
// decoding is concerned, so Structure is decoded token by token to keep the
// tables in document order.

package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/cabewaldrop/csvdb/internal/dberror"
	"github.com/cabewaldrop/csvdb/internal/sql/lexer"
	"github.com/cabewaldrop/csvdb/internal/storage"
)

// identifierPattern matches names that are also safe as directory names.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// IsValidIdentifier reports whether s can name a schema, table or column.
// Command keywords such as FROM or startsWith are rejected, since the
// lexer would never read them back as names.
func IsValidIdentifier(s string) bool {
	return s != "" && identifierPattern.MatchString(s) && lexer.LookupIdent(s) == lexer.TokenIdent
}

// TableDef is one table of the definition.
type TableDef struct {
	Name    string
	Columns []string
}

// Structure is the ordered list of tables.
type Structure []TableDef

// UnmarshalJSON decodes the "structure" object preserving key order.
func (s *Structure) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("structure must be an object")
	}

	var out Structure
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("structure key must be a string")
		}

		var columns []string
		if err := dec.Decode(&columns); err != nil {
			return fmt.Errorf("table %q: columns must be a list of strings: %w", name, err)
		}
		out = append(out, TableDef{Name: name, Columns: columns})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*s = out
	return nil
}

// Definition is a parsed schema document.
type Definition struct {
	Name        string    `json:"name"`
	TuplesLimit *int      `json:"tuples_limit"`
	Structure   Structure `json:"structure"`
}

// PageCapacity returns the configured page capacity, or 0 if unset.
func (d *Definition) PageCapacity() int {
	if d.TuplesLimit == nil {
		return 0
	}
	return *d.TuplesLimit
}

// Load reads and validates a definition from a file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dberror.Wrap(dberror.KindSchema, "Load", fmt.Errorf("read %s: %w", path, err))
	}
	return Parse(data)
}

// Parse decodes and validates a definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, dberror.Wrap(dberror.KindSchema, "Parse", fmt.Errorf("invalid JSON: %w", err))
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks the invariants the catalog relies on.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return dberror.New(dberror.KindSchema, "Validate", "missing field \"name\"")
	}
	if !IsValidIdentifier(d.Name) {
		return dberror.New(dberror.KindSchema, "Validate", "invalid schema name %q", d.Name)
	}
	if d.TuplesLimit == nil {
		return dberror.New(dberror.KindSchema, "Validate", "missing field \"tuples_limit\"")
	}
	if *d.TuplesLimit <= 0 {
		return dberror.New(dberror.KindSchema, "Validate", "tuples_limit must be positive, got %d", *d.TuplesLimit)
	}

	seenTables := make(map[string]bool, len(d.Structure))
	for _, tbl := range d.Structure {
		if !IsValidIdentifier(tbl.Name) {
			return dberror.New(dberror.KindSchema, "Validate", "invalid table name %q", tbl.Name)
		}
		if seenTables[tbl.Name] {
			return dberror.New(dberror.KindSchema, "Validate", "duplicate table %q", tbl.Name)
		}
		seenTables[tbl.Name] = true

		if len(tbl.Columns) == 0 {
			return dberror.New(dberror.KindSchema, "Validate", "table %q has no columns", tbl.Name)
		}
		seenCols := make(map[string]bool, len(tbl.Columns))
		for _, col := range tbl.Columns {
			if !IsValidIdentifier(col) {
				return dberror.New(dberror.KindSchema, "Validate", "table %q: invalid column name %q", tbl.Name, col)
			}
			if col == storage.PrimaryKeyColumn {
				return dberror.New(dberror.KindSchema, "Validate", "table %q: column name %q is reserved", tbl.Name, col)
			}
			if seenCols[col] {
				return dberror.New(dberror.KindSchema, "Validate", "table %q: duplicate column %q", tbl.Name, col)
			}
			seenCols[col] = true
		}
	}

	return nil
}
