package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cabewaldrop/csvdb/internal/dberror"
	"github.com/cabewaldrop/csvdb/internal/schema"
	"github.com/cabewaldrop/csvdb/internal/storage"
)

func testDefinition(t *testing.T) *schema.Definition {
	t.Helper()
	def, err := schema.Parse([]byte(`{
		"name": "shop",
		"tuples_limit": 2,
		"structure": {
			"users":  ["name", "age"],
			"orders": ["item", "qty"]
		}
	}`))
	require.NoError(t, err)
	return def
}

func TestCreateInstantiatesTables(t *testing.T) {
	root := t.TempDir()

	cat, err := Create(root, testDefinition(t), PolicyKeep)
	require.NoError(t, err)

	assert.Equal(t, "shop", cat.SchemaName())
	assert.Equal(t, []string{"orders", "users"}, cat.Tables())
	assert.Equal(t, 2, cat.Len())

	for _, name := range []string{"users", "orders"} {
		dir := filepath.Join(root, "shop", name)

		data, err := os.ReadFile(filepath.Join(dir, "1.csv"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "PrimaryKey,")

		seq, err := os.ReadFile(filepath.Join(dir, name+"_pk_sequence.txt"))
		require.NoError(t, err)
		assert.Equal(t, "1\n", string(seq))

		lock, err := os.ReadFile(filepath.Join(dir, name+"_lock.txt"))
		require.NoError(t, err)
		assert.Equal(t, "unlocked\n", string(lock))
	}
}

func TestLookup(t *testing.T) {
	root := t.TempDir()
	cat, err := Create(root, testDefinition(t), PolicyKeep)
	require.NoError(t, err)

	e, ok := cat.Lookup("users")
	require.True(t, ok)
	assert.Equal(t, "users", e.TableName)
	assert.Equal(t, []string{"name", "age"}, e.Columns)
	assert.Equal(t, []string{"PrimaryKey", "name", "age"}, e.Header())
	assert.Equal(t, filepath.Join(root, "shop", "users"), e.StorageRoot)
	assert.Equal(t, 2, e.PageCapacity)
	assert.True(t, e.HasColumn("PrimaryKey"))
	assert.False(t, e.HasColumn("email"))

	// Entries are copies.
	e.Columns[0] = "mutated"
	again, _ := cat.Lookup("users")
	assert.Equal(t, "name", again.Columns[0])

	_, ok = cat.Lookup("Users")
	assert.False(t, ok)

	_, err = cat.Resolve("ghosts")
	assert.True(t, errors.Is(err, dberror.ErrTableNotFound))
}

func TestCreateKeepReusesData(t *testing.T) {
	root := t.TempDir()
	_, err := Create(root, testDefinition(t), PolicyKeep)
	require.NoError(t, err)

	dir := filepath.Join(root, "shop", "users")
	seq, err := storage.OpenSequencer(dir, "users")
	require.NoError(t, err)
	_, err = seq.NextKey()
	require.NoError(t, err)

	_, err = Create(root, testDefinition(t), PolicyKeep)
	require.NoError(t, err)

	next, err := seq.Peek()
	require.NoError(t, err)
	assert.Equal(t, int64(2), next)
}

func TestCreateResetWipesData(t *testing.T) {
	root := t.TempDir()
	_, err := Create(root, testDefinition(t), PolicyKeep)
	require.NoError(t, err)

	dir := filepath.Join(root, "shop", "users")
	store, err := storage.OpenPageStore(dir, "users", 2)
	require.NoError(t, err)
	for i := int64(1); i <= 3; i++ {
		_, err := store.AppendOrUpdate(storage.Row{Key: i, Values: []string{"x", "1"}})
		require.NoError(t, err)
	}
	require.Equal(t, 2, store.PageCount())

	_, err = Create(root, testDefinition(t), PolicyReset)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "2.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestCreateFailPolicy(t *testing.T) {
	root := t.TempDir()
	_, err := Create(root, testDefinition(t), PolicyKeep)
	require.NoError(t, err)

	_, err = Create(root, testDefinition(t), PolicyFail)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dberror.ErrSchema))
}

func TestCreateKeepRejectsHeaderMismatch(t *testing.T) {
	root := t.TempDir()
	_, err := Create(root, testDefinition(t), PolicyKeep)
	require.NoError(t, err)

	changed, err := schema.Parse([]byte(`{"name": "shop", "tuples_limit": 2, "structure": {"users": ["name", "email"]}}`))
	require.NoError(t, err)

	_, err = Create(root, changed, PolicyKeep)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dberror.ErrSchema))
}

func TestCreateRejectsInvalidDefinition(t *testing.T) {
	_, err := Create(t.TempDir(), nil, PolicyKeep)
	assert.True(t, errors.Is(err, dberror.ErrSchema))

	_, err = Create(t.TempDir(), &schema.Definition{Name: "s"}, PolicyKeep)
	assert.True(t, errors.Is(err, dberror.ErrSchema))
}

func TestParseInitPolicy(t *testing.T) {
	for in, want := range map[string]InitPolicy{"": PolicyKeep, "keep": PolicyKeep, "reset": PolicyReset, "fail": PolicyFail} {
		got, err := ParseInitPolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseInitPolicy("Reset")
	assert.Error(t, err)
}
