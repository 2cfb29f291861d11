// Package catalog manages the database catalog (metadata about tables).
//
// EDUCATIONAL NOTES:
// ------------------
// Every database has a "catalog" that answers questions like:
// - What tables exist?
// - What columns does each table have, and in what order?
// - Where does each table live on disk?
//
// csvdb builds its catalog from a declarative schema definition at
// startup. Creating the catalog also INSTANTIATES the schema on disk: for
// each table it creates <data>/<schema>/<table>/ with page 1, a primary
// key sequence file and a lock file.
//
// If a table directory already exists, an InitPolicy decides what happens:
//   - keep:  reuse the existing files (the header must match the schema)
//   - reset: wipe pages and restart the sequence
//   - fail:  refuse to start
//
// After startup the catalog is read-only. Entries are kept in a B-tree
// ordered by table name, so listings come back sorted.

package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/btree"
	"golang.org/x/sync/errgroup"

	"github.com/cabewaldrop/csvdb/internal/dberror"
	"github.com/cabewaldrop/csvdb/internal/logging"
	"github.com/cabewaldrop/csvdb/internal/schema"
	"github.com/cabewaldrop/csvdb/internal/storage"
)

// btreeDegree is the fan-out of the entry index. Catalogs are small.
const btreeDegree = 8

// InitPolicy decides how Create treats a table directory that already exists.
type InitPolicy string

const (
	PolicyKeep  InitPolicy = "keep"
	PolicyReset InitPolicy = "reset"
	PolicyFail  InitPolicy = "fail"
)

// ParseInitPolicy converts a command line value to an InitPolicy. The empty
// string means PolicyKeep.
func ParseInitPolicy(s string) (InitPolicy, error) {
	switch p := InitPolicy(s); p {
	case PolicyKeep, PolicyReset, PolicyFail:
		return p, nil
	case "":
		return PolicyKeep, nil
	default:
		return "", fmt.Errorf("unknown init policy %q (want keep, reset or fail)", s)
	}
}

// Entry describes one table.
type Entry struct {
	TableName string

	// Columns are the user columns in schema order, without PrimaryKey.
	Columns []string

	// StorageRoot is the directory holding the table's files.
	StorageRoot string

	// PageCapacity is the maximum number of rows per page.
	PageCapacity int
}

// Header returns the page header: PrimaryKey followed by Columns.
func (e Entry) Header() []string {
	return storage.HeaderFor(e.Columns)
}

// HasColumn reports whether name is PrimaryKey or one of the user columns.
func (e Entry) HasColumn(name string) bool {
	return name == storage.PrimaryKeyColumn || slices.Contains(e.Columns, name)
}

func (e Entry) clone() Entry {
	e.Columns = slices.Clone(e.Columns)
	return e
}

// Catalog maps table names to entries.
type Catalog struct {
	schemaName string
	root       string
	entries    *btree.BTreeG[Entry]
}

// Create validates def, instantiates every table under root/<schema name>
// and returns the catalog. Tables are instantiated concurrently; the first
// failure is returned.
func Create(root string, def *schema.Definition, policy InitPolicy) (*Catalog, error) {
	if def == nil {
		return nil, dberror.New(dberror.KindSchema, "Create", "no schema definition")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if policy == "" {
		policy = PolicyKeep
	}

	log := logging.WithComponent("catalog")
	schemaDir := filepath.Join(root, def.Name)

	c := &Catalog{
		schemaName: def.Name,
		root:       schemaDir,
		entries: btree.NewG(btreeDegree, func(a, b Entry) bool {
			return a.TableName < b.TableName
		}),
	}

	entries := make([]Entry, 0, len(def.Structure))
	for _, t := range def.Structure {
		entries = append(entries, Entry{
			TableName:    t.Name,
			Columns:      slices.Clone(t.Columns),
			StorageRoot:  filepath.Join(schemaDir, t.Name),
			PageCapacity: def.PageCapacity(),
		})
	}

	if err := os.MkdirAll(schemaDir, 0o755); err != nil {
		return nil, dberror.Wrap(dberror.KindStorage, "Create", err)
	}

	var g errgroup.Group
	for _, e := range entries {
		g.Go(func() error {
			return instantiate(e, policy)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, e := range entries {
		c.entries.ReplaceOrInsert(e)
	}

	log.Info("schema instantiated",
		"schema", def.Name,
		"root", schemaDir,
		"tables", len(entries),
		"page_capacity", def.PageCapacity(),
		"policy", string(policy))
	return c, nil
}

// instantiate makes sure the files of one table exist according to policy.
func instantiate(e Entry, policy InitPolicy) error {
	log := logging.WithTable(e.TableName)

	_, err := os.Stat(e.StorageRoot)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Debug("creating table", "dir", e.StorageRoot)
		return createTableFiles(e)
	case err != nil:
		return dberror.Wrap(dberror.KindStorage, "Create", err)
	}

	switch policy {
	case PolicyFail:
		return dberror.New(dberror.KindSchema, "Create", "table directory %s already exists", e.StorageRoot).WithTable(e.TableName)
	case PolicyReset:
		log.Warn("resetting existing table", "dir", e.StorageRoot)
		return createTableFiles(e)
	default:
		log.Debug("keeping existing table", "dir", e.StorageRoot)
		return keepTableFiles(e)
	}
}

// createTableFiles writes an empty table: page 1, sequence at 1, unlocked.
func createTableFiles(e Entry) error {
	if _, err := storage.CreatePageStore(e.StorageRoot, e.TableName, e.Columns, e.PageCapacity); err != nil {
		return err
	}
	if _, err := storage.CreateSequencer(e.StorageRoot, e.TableName); err != nil {
		return err
	}
	if _, err := storage.CreateTableLock(e.StorageRoot, e.TableName); err != nil {
		return err
	}
	return nil
}

// keepTableFiles reuses an existing table, filling in any missing file.
// The page header must match the schema.
func keepTableFiles(e Entry) error {
	firstPage := filepath.Join(e.StorageRoot, storage.PageFileName(1))
	if !exists(firstPage) {
		if _, err := storage.CreatePageStore(e.StorageRoot, e.TableName, e.Columns, e.PageCapacity); err != nil {
			return err
		}
	} else {
		header, err := storage.ReadHeaderFile(firstPage)
		if err != nil {
			return dberror.Wrap(dberror.KindStorage, "Create", err)
		}
		if !slices.Equal(header, e.Header()) {
			return dberror.New(dberror.KindSchema, "Create",
				"existing header %v does not match schema %v", header, e.Header()).WithTable(e.TableName)
		}
	}

	if !exists(filepath.Join(e.StorageRoot, storage.SequenceFileName(e.TableName))) {
		if _, err := storage.CreateSequencer(e.StorageRoot, e.TableName); err != nil {
			return err
		}
	}
	if !exists(filepath.Join(e.StorageRoot, storage.LockFileName(e.TableName))) {
		if _, err := storage.CreateTableLock(e.StorageRoot, e.TableName); err != nil {
			return err
		}
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// SchemaName returns the name of the instantiated schema.
func (c *Catalog) SchemaName() string {
	return c.schemaName
}

// Root returns the schema directory.
func (c *Catalog) Root() string {
	return c.root
}

// Lookup returns the entry for a table. Names are case-sensitive.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	e, ok := c.entries.Get(Entry{TableName: name})
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// Resolve is Lookup returning a TableNotFound error for unknown names.
func (c *Catalog) Resolve(name string) (Entry, error) {
	e, ok := c.Lookup(name)
	if !ok {
		return Entry{}, dberror.New(dberror.KindTableNotFound, "Lookup", "no table %q", name).WithTable(name)
	}
	return e, nil
}

// Tables returns all table names in ascending order.
func (c *Catalog) Tables() []string {
	names := make([]string, 0, c.entries.Len())
	c.entries.Ascend(func(e Entry) bool {
		names = append(names, e.TableName)
		return true
	})
	return names
}

// Entries returns all entries in ascending name order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, c.entries.Len())
	c.entries.Ascend(func(e Entry) bool {
		out = append(out, e.clone())
		return true
	})
	return out
}

// Len returns the number of tables.
func (c *Catalog) Len() int {
	return c.entries.Len()
}
