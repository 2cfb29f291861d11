package executor

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cabewaldrop/csvdb/internal/catalog"
	"github.com/cabewaldrop/csvdb/internal/dberror"
	"github.com/cabewaldrop/csvdb/internal/logging"
	"github.com/cabewaldrop/csvdb/internal/schema"
	"github.com/cabewaldrop/csvdb/internal/storage"
)

const testSchema = `{
	"name": "shop",
	"tuples_limit": 2,
	"structure": {
		"T":      ["colA", "colB"],
		"scores": ["name", "score"],
		"users":  ["name", "city"],
		"orders": ["user", "item"]
	}
}`

func setupTestExecutor(t *testing.T) *Executor {
	t.Helper()
	logging.SetOutput(io.Discard, slog.LevelError)

	def, err := schema.Parse([]byte(testSchema))
	require.NoError(t, err)

	cat, err := catalog.Create(t.TempDir(), def, catalog.PolicyKeep)
	require.NoError(t, err)

	exec, err := New(cat)
	require.NoError(t, err)
	return exec
}

func executeCommand(t *testing.T, exec *Executor, command string) *Result {
	t.Helper()
	result, err := exec.ExecuteCommand(command)
	require.NoError(t, err, "command %q", command)
	return result
}

func TestProjection(t *testing.T) {
	exec := setupTestExecutor(t)

	executeCommand(t, exec, "INSERT INTO T VALUES (a, b)")
	executeCommand(t, exec, "INSERT INTO T VALUES (c, d)")

	result := executeCommand(t, exec, "SELECT colB FROM T")
	assert.Equal(t, "colB\nb\nd", result.String())

	result = executeCommand(t, exec, "SELECT colB colA FROM T")
	assert.Equal(t, []string{"colB", "colA"}, result.Columns)
	assert.Equal(t, [][]string{{"b", "a"}, {"d", "c"}}, result.Rows)
}

func TestSelectAllIncludesPrimaryKey(t *testing.T) {
	exec := setupTestExecutor(t)

	executeCommand(t, exec, "INSERT INTO T VALUES (a, b)")

	for _, command := range []string{"SELECT * FROM T", "SELECT FROM T"} {
		result := executeCommand(t, exec, command)
		assert.Equal(t, "PrimaryKey,colA,colB\n1,a,b", result.String(), command)
	}
}

func TestSelectEmptyTable(t *testing.T) {
	exec := setupTestExecutor(t)

	result := executeCommand(t, exec, "SELECT colA FROM T")
	assert.Equal(t, "colA", result.String())
	assert.Empty(t, result.Rows)
	assert.Equal(t, "(no rows)", result.Table())
}

func TestSelectSkipsUnknownColumns(t *testing.T) {
	exec := setupTestExecutor(t)
	executeCommand(t, exec, "INSERT INTO T VALUES (a, b)")

	result := executeCommand(t, exec, "SELECT nope, colA FROM T")
	assert.Equal(t, []string{"colA"}, result.Columns)
	assert.Equal(t, [][]string{{"a"}}, result.Rows)

	_, err := exec.ExecuteCommand("SELECT nope, other FROM T")
	require.Error(t, err)
	assert.True(t, errors.Is(err, dberror.ErrColumnNotFound))
}

func TestWhereFilter(t *testing.T) {
	exec := setupTestExecutor(t)

	executeCommand(t, exec, "INSERT INTO scores VALUES (x, 3)")
	executeCommand(t, exec, "INSERT INTO scores VALUES (y, 9)")

	result := executeCommand(t, exec, "SELECT * FROM scores WHERE score > 5")
	assert.Equal(t, [][]string{{"2", "y", "9"}}, result.Rows)

	result = executeCommand(t, exec, "SELECT name FROM scores WHERE score < 5")
	assert.Equal(t, [][]string{{"x"}}, result.Rows)
}

func TestWhereOperators(t *testing.T) {
	exec := setupTestExecutor(t)

	executeCommand(t, exec, "INSERT INTO scores VALUES (Jo, 10)")
	executeCommand(t, exec, "INSERT INTO scores VALUES (John, 20)")
	executeCommand(t, exec, "INSERT INTO scores VALUES (Ann, n/a)")
	executeCommand(t, exec, "INSERT INTO scores VALUES ('Jo Ann', 30)")

	tests := []struct {
		command  string
		expected []string
	}{
		{`SELECT name FROM scores WHERE name = 'Jo'`, []string{"Jo"}},
		{`SELECT name FROM scores WHERE name = "Jo Ann"`, []string{"Jo Ann"}},
		{`SELECT name FROM scores WHERE name startsWith 'Jo'`, []string{"Jo", "John", "Jo Ann"}},
		{`SELECT name FROM scores WHERE score > 15`, []string{"John", "Jo Ann"}},
		// A non-numeric value makes the comparison false.
		{`SELECT name FROM scores WHERE score < 100`, []string{"Jo", "John", "Jo Ann"}},
		{`SELECT name FROM scores WHERE score > 'abc'`, nil},
		{`SELECT name FROM scores WHERE score = 'n/a'`, []string{"Ann"}},
		{`SELECT name FROM scores WHERE PrimaryKey = 2`, []string{"John"}},
		{`SELECT name FROM scores WHERE 10 = score`, []string{"Jo"}},
	}

	for _, tt := range tests {
		result := executeCommand(t, exec, tt.command)
		var names []string
		for _, row := range result.Rows {
			names = append(names, row[0])
		}
		assert.Equal(t, tt.expected, names, tt.command)
	}
}

func TestWhereAndBindsTighterThanOr(t *testing.T) {
	exec := setupTestExecutor(t)

	executeCommand(t, exec, "INSERT INTO scores VALUES (a, 1)")
	executeCommand(t, exec, "INSERT INTO scores VALUES (b, 2)")
	executeCommand(t, exec, "INSERT INTO scores VALUES (c, 3)")

	result := executeCommand(t, exec, "SELECT name FROM scores WHERE name = 'a' OR name = 'b' AND score = 3")
	assert.Equal(t, [][]string{{"a"}}, result.Rows)

	result = executeCommand(t, exec, "SELECT name FROM scores WHERE (name = 'a' OR name = 'b') AND score < 3")
	assert.Equal(t, [][]string{{"a"}, {"b"}}, result.Rows)
}

func TestWhereUnknownColumn(t *testing.T) {
	exec := setupTestExecutor(t)

	_, err := exec.ExecuteCommand("SELECT name FROM scores WHERE nope = 1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, dberror.ErrColumnNotFound))

	_, err = exec.ExecuteCommand("SELECT name FROM scores WHERE users.name = 1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, dberror.ErrColumnNotFound))
}

func TestCrossJoin(t *testing.T) {
	exec := setupTestExecutor(t)

	executeCommand(t, exec, "INSERT INTO users VALUES (ann, Oslo)")
	executeCommand(t, exec, "INSERT INTO users VALUES (bob, Rome)")
	executeCommand(t, exec, "INSERT INTO users VALUES (cid, Lima)")
	executeCommand(t, exec, "INSERT INTO orders VALUES (bob, pen)")
	executeCommand(t, exec, "INSERT INTO orders VALUES (ann, ink)")

	result := executeCommand(t, exec, "SELECT * FROM users, orders")
	assert.Equal(t, []string{
		"users.PrimaryKey", "users.name", "users.city",
		"orders.PrimaryKey", "orders.user", "orders.item",
	}, result.Columns)
	assert.Len(t, result.Rows, 6)
	assert.Equal(t, []string{"1", "ann", "Oslo", "1", "bob", "pen"}, result.Rows[0])

	result = executeCommand(t, exec,
		"SELECT users.name, orders.item FROM users, orders WHERE users.name = orders.user")
	assert.Equal(t, []string{"users.name", "orders.item"}, result.Columns)
	assert.Equal(t, [][]string{{"ann", "ink"}, {"bob", "pen"}}, result.Rows)

	// Unqualified names resolve when only one table has them.
	result = executeCommand(t, exec, "SELECT city, item FROM users, orders WHERE name = user AND item startsWith 'p'")
	assert.Equal(t, [][]string{{"Rome", "pen"}}, result.Rows)
}

func TestCrossJoinAmbiguousColumn(t *testing.T) {
	exec := setupTestExecutor(t)

	_, err := exec.ExecuteCommand("SELECT name FROM users, orders WHERE PrimaryKey = 1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, dberror.ErrParse))
	assert.Contains(t, err.Error(), "ambiguous")
}

func TestCrossJoinEmptySide(t *testing.T) {
	exec := setupTestExecutor(t)
	executeCommand(t, exec, "INSERT INTO users VALUES (ann, Oslo)")

	result := executeCommand(t, exec, "SELECT * FROM users, orders")
	assert.Empty(t, result.Rows)
}

func TestInsertRoundTrip(t *testing.T) {
	exec := setupTestExecutor(t)

	result := executeCommand(t, exec, `INSERT INTO users VALUES ('Smith, Jane', "New ""York""")`)
	assert.Equal(t, int64(1), result.Key)
	assert.Equal(t, 1, result.Page)
	assert.Contains(t, result.Message, "inserted key 1 into users")

	executeCommand(t, exec, "INSERT INTO users VALUES (  John Smith  , Oslo )")
	executeCommand(t, exec, "INSERT INTO users VALUES (O'Brien, Dun Laoghaire)")

	result = executeCommand(t, exec, "SELECT name, city FROM users")
	assert.Equal(t, [][]string{
		{"Smith, Jane", `New "York"`},
		{"John Smith", "Oslo"},
		{"O'Brien", "Dun Laoghaire"},
	}, result.Rows)

	result = executeCommand(t, exec, `SELECT city FROM users WHERE name = "O'Brien"`)
	assert.Equal(t, [][]string{{"Dun Laoghaire"}}, result.Rows)
}

func TestInsertPagination(t *testing.T) {
	exec := setupTestExecutor(t)

	var pages []int
	for i := 0; i < 5; i++ {
		pages = append(pages, executeCommand(t, exec, "INSERT INTO T VALUES (a, b)").Page)
	}
	assert.Equal(t, []int{1, 1, 2, 2, 3}, pages)

	result := executeCommand(t, exec, "SELECT PrimaryKey FROM T")
	assert.Equal(t, [][]string{{"1"}, {"2"}, {"3"}, {"4"}, {"5"}}, result.Rows)
}

func TestInsertWithColumns(t *testing.T) {
	exec := setupTestExecutor(t)

	executeCommand(t, exec, "INSERT INTO users (city) VALUES (Oslo)")

	result := executeCommand(t, exec, "SELECT * FROM users")
	assert.Equal(t, [][]string{{"1", "", "Oslo"}}, result.Rows)
}

func TestInsertUpsert(t *testing.T) {
	exec := setupTestExecutor(t)

	executeCommand(t, exec, "INSERT INTO users VALUES (ann, Oslo)")
	executeCommand(t, exec, "INSERT INTO users VALUES (bob, Rome)")

	result := executeCommand(t, exec, "INSERT INTO users (PrimaryKey, name, city) VALUES (1, ann, Lima)")
	assert.Equal(t, int64(1), result.Key)

	// Applying the same update again changes nothing.
	executeCommand(t, exec, "INSERT INTO users (PrimaryKey, name, city) VALUES (1, ann, Lima)")

	result = executeCommand(t, exec, "SELECT * FROM users")
	assert.Equal(t, [][]string{{"1", "ann", "Lima"}, {"2", "bob", "Rome"}}, result.Rows)

	// An explicit key past the sequence advances it.
	executeCommand(t, exec, "INSERT INTO users (PrimaryKey, name) VALUES (10, zed)")
	result = executeCommand(t, exec, "INSERT INTO users VALUES (amy, Bonn)")
	assert.Equal(t, int64(11), result.Key)
}

func TestInsertErrors(t *testing.T) {
	exec := setupTestExecutor(t)

	tests := []struct {
		command string
		kind    error
	}{
		{"INSERT INTO nope VALUES (a)", dberror.ErrTableNotFound},
		{"INSERT INTO users VALUES (a)", dberror.ErrParse},
		{"INSERT INTO users VALUES (a, b, c)", dberror.ErrParse},
		{"INSERT INTO users (name, name) VALUES (a, b)", dberror.ErrParse},
		{"INSERT INTO users (name) VALUES (a, b)", dberror.ErrParse},
		{"INSERT INTO users (nope) VALUES (a)", dberror.ErrColumnNotFound},
		{"INSERT INTO users (PrimaryKey, name) VALUES (zero, a)", dberror.ErrParse},
		{"INSERT INTO users (PrimaryKey, name) VALUES (0, a)", dberror.ErrParse},
		{"SELECT * FROM nope", dberror.ErrTableNotFound},
		{"SELECT * FROM users, nope", dberror.ErrTableNotFound},
		{"DELETE FROM users", dberror.ErrUnknownCommand},
		{"select * from users", dberror.ErrUnknownCommand},
		{"INSERT INTO users VALUES (a, b)\x00 garbage", dberror.ErrParse},
	}

	for _, tt := range tests {
		_, err := exec.ExecuteCommand(tt.command)
		require.Error(t, err, tt.command)
		assert.True(t, errors.Is(err, tt.kind), "%s: got %v", tt.command, err)
	}

	// None of the failed inserts consumed a key.
	result := executeCommand(t, exec, "INSERT INTO users VALUES (ann, Oslo)")
	assert.Equal(t, int64(1), result.Key)
}

func TestInsertLockedTable(t *testing.T) {
	exec := setupTestExecutor(t)

	entry, ok := exec.Catalog().Lookup("users")
	require.True(t, ok)

	other, err := storage.OpenTableLock(entry.StorageRoot, "users")
	require.NoError(t, err)
	guard, err := other.TryAcquire()
	require.NoError(t, err)

	_, err = exec.ExecuteCommand("INSERT INTO users VALUES (ann, Oslo)")
	require.Error(t, err)
	assert.True(t, errors.Is(err, dberror.ErrTableLocked))

	// Reads do not take the lock.
	executeCommand(t, exec, "SELECT * FROM users")

	require.NoError(t, guard.Release())
	result := executeCommand(t, exec, "INSERT INTO users VALUES (ann, Oslo)")
	assert.Equal(t, int64(1), result.Key)
}

func TestConcurrentInserts(t *testing.T) {
	exec := setupTestExecutor(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := exec.ExecuteCommand("INSERT INTO T VALUES (a, b)")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	result := executeCommand(t, exec, "SELECT PrimaryKey FROM T")
	require.Len(t, result.Rows, 8)
	for i, row := range result.Rows {
		assert.Equal(t, []string{string(rune('1' + i))}, row)
	}
}

func TestStatsDuringInserts(t *testing.T) {
	exec := setupTestExecutor(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := exec.ExecuteCommand("INSERT INTO T VALUES (a, b)")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			stats, err := exec.Stats("T")
			assert.NoError(t, err)
			assert.GreaterOrEqual(t, stats.Pages, 1)
			assert.Equal(t, storage.Unlocked, stats.LockState)
		}()
	}
	wg.Wait()

	stats, err := exec.Stats("T")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Pages)
	assert.Equal(t, int64(9), stats.NextKey)

	_, err = exec.Stats("nope")
	assert.True(t, errors.Is(err, dberror.ErrTableNotFound))
}

func TestResultTable(t *testing.T) {
	result := &Result{
		Columns: []string{"id", "name"},
		Rows:    [][]string{{"1", "Alice"}},
	}

	out := result.Table()
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "+----+-------+", lines[0])
	assert.Equal(t, "| id | name  |", lines[1])
	assert.Equal(t, "| 1  | Alice |", lines[3])
	assert.Equal(t, "(1 rows)", lines[5])

	assert.Equal(t, "done", (&Result{Message: "done"}).Table())
}

func TestExecutorTables(t *testing.T) {
	exec := setupTestExecutor(t)

	assert.Equal(t, []string{"T", "orders", "scores", "users"}, exec.Tables())

	tbl, ok := exec.Table("users")
	require.True(t, ok)
	assert.Equal(t, []string{"PrimaryKey", "name", "city"}, tbl.Header())

	_, ok = exec.Table("nope")
	assert.False(t, ok)
}
