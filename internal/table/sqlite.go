package table

import (
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// LoadSQLite ingests every user table of a SQLite database file into the
// catalog. Only numeric (INTEGER/REAL) columns are kept, converted to float64;
// a table with no numeric columns is skipped.
func (c *Catalog) LoadSQLite(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer db.Close()

	names, err := sqliteTableNames(db)
	if err != nil {
		return err
	}
	for _, name := range names {
		t, err := readSQLiteTable(db, name)
		if err != nil {
			return errors.Wrapf(err, "reading table %s", name)
		}
		if t == nil {
			logrus.WithField("table", name).Debug("skipping table with no numeric columns")
			continue
		}
		c.Register(t)
		logrus.WithFields(logrus.Fields{
			"table":   t.Name,
			"columns": len(t.Columns),
			"rows":    t.NumRows(),
		}).Debug("loaded table from sqlite")
	}
	return nil
}

func sqliteTableNames(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "listing tables")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func readSQLiteTable(db *sql.DB, name string) (*Table, error) {
	rows, err := db.Query(fmt.Sprintf(`SELECT * FROM %q`, name))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	data := make([][]float64, len(colNames))
	numeric := make([]bool, len(colNames))
	for i := range numeric {
		numeric[i] = true
	}

	values := make([]any, len(colNames))
	ptrs := make([]any, len(colNames))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if !numeric[i] {
				continue
			}
			switch x := v.(type) {
			case float64:
				data[i] = append(data[i], x)
			case int64:
				data[i] = append(data[i], float64(x))
			default:
				numeric[i] = false
				data[i] = nil
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var columns []*Column
	for i, colName := range colNames {
		if numeric[i] {
			columns = append(columns, NewColumn(colName, data[i]))
		}
	}
	if len(columns) == 0 {
		return nil, nil
	}
	return NewTable(name, columns...), nil
}
