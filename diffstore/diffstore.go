// Package diffstore persists a per-selector classification snapshot in a
// SQLite database and compares a later analysis run against it, backing
// the `som diff` watch-mode workflow.
package diffstore

import (
	"fmt"
	"sort"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"som/rules"
)

const schema = `CREATE TABLE IF NOT EXISTS rule_snapshot (
	selector TEXT PRIMARY KEY,
	hash     INTEGER NOT NULL,
	class    TEXT NOT NULL
)`

// Change records one selector whose final classification differs
// between the stored snapshot and the current analysis.
type Change struct {
	Selector string
	OldClass string
	NewClass string
}

// Diff is the result of comparing the current analysis against a
// previously stored snapshot.
type Diff struct {
	Added   []string
	Removed []string
	Changed []Change
}

func (d *Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

func open(path string) (*sqlite.Conn, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate)
	if err != nil {
		return nil, fmt.Errorf("diffstore: open %q: %w", path, err)
	}
	return conn, nil
}

// Save replaces path's stored snapshot with one row per rule in all,
// recording each rule's selector, selector hash, and final
// classification.
func Save(path string, all []*rules.Rule) error {
	conn, err := open(path)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := sqlitex.Execute(conn, schema, nil); err != nil {
		return fmt.Errorf("diffstore: create schema: %w", err)
	}
	if err := sqlitex.Execute(conn, "DELETE FROM rule_snapshot", nil); err != nil {
		return fmt.Errorf("diffstore: clear snapshot: %w", err)
	}

	for _, r := range all {
		err := sqlitex.Execute(conn,
			"INSERT INTO rule_snapshot (selector, hash, class) VALUES (?, ?, ?)",
			&sqlitex.ExecOptions{
				Args: []any{r.Selector, int64(rules.HashSelector(r.Selector)), r.FinalClass.String()},
			})
		if err != nil {
			return fmt.Errorf("diffstore: insert %q: %w", r.Selector, err)
		}
	}
	return nil
}

// Compare loads path's stored snapshot and reports which selectors in
// all were added, removed, or reclassified relative to it. A snapshot
// file that does not yet exist is treated as empty: every current
// selector reports as added.
func Compare(path string, all []*rules.Rule) (*Diff, error) {
	conn, err := open(path)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := sqlitex.Execute(conn, schema, nil); err != nil {
		return nil, fmt.Errorf("diffstore: create schema: %w", err)
	}

	prior := make(map[string]string)
	err = sqlitex.Execute(conn, "SELECT selector, class FROM rule_snapshot", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			prior[stmt.ColumnText(0)] = stmt.ColumnText(1)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("diffstore: read snapshot: %w", err)
	}

	current := make(map[string]string, len(all))
	for _, r := range all {
		current[r.Selector] = r.FinalClass.String()
	}

	d := &Diff{}
	for sel, class := range current {
		old, existed := prior[sel]
		switch {
		case !existed:
			d.Added = append(d.Added, sel)
		case old != class:
			d.Changed = append(d.Changed, Change{Selector: sel, OldClass: old, NewClass: class})
		}
	}
	for sel := range prior {
		if _, ok := current[sel]; !ok {
			d.Removed = append(d.Removed, sel)
		}
	}

	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Slice(d.Changed, func(i, j int) bool { return d.Changed[i].Selector < d.Changed[j].Selector })
	return d, nil
}
