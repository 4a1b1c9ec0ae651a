package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSQL(t *testing.T) {
	script := `-- wallets
CREATE TABLE a (
  id text primary key
);

-- note
CREATE INDEX a_idx ON a (id);
`
	stmts := splitSQL(script)
	assert.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE TABLE a")
	assert.Equal(t, "CREATE INDEX a_idx ON a (id);", stmts[1])
}

func TestUpSectionStopsAtDownMarker(t *testing.T) {
	content := "CREATE TABLE a (id text);\n-- +migrate Down\nDROP TABLE a;\n"
	stmts := splitSQL(upSection(content))
	assert.Equal(t, []string{"CREATE TABLE a (id text);"}, stmts)
}

func TestSplitSQLKeepsTrailingStatement(t *testing.T) {
	stmts := splitSQL("SELECT 1")
	assert.Equal(t, []string{"SELECT 1"}, stmts)
}
