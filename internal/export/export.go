// Package export writes the ledger relations to CSV files, read-only.
package export

import (
	"bufio"         // Buffered file writes
	"context"       // Context for cancellation and timeouts
	"encoding/csv"  // CSV writer
	"fmt"           // Error formatting
	"io"            // Readers and writers
	"os"            // Files and environment
	"path/filepath" // File paths
	"strconv"       // Number parsing
	"strings"       // String manipulation
	"time"          // Time durations

	"bank_system/internal/domain" // Domain models

	"github.com/sirupsen/logrus" // Logging
	"gorm.io/gorm"               // GORM ORM library
)

// Tables are exported in this order. Missing tables are skipped.
var Tables = []string{"users", "accounts", "transfers", "audit_log"}

// Columns never written to an export
var redacted = map[string]bool{"password": true}

const minorSuffix = "_minor"

// Result describes one written file
type Result struct {
	Table string
	Path  string
	Rows  int
}

// WriteTable writes table as CSV to w and returns the number of data rows.
// Columns ending in _minor are written as decimal currency without the suffix.
func WriteTable(ctx context.Context, db *gorm.DB, table string, w io.Writer) (int, error) {
	rows, err := db.WithContext(ctx).Table(table).Order("1").Rows()
	if err != nil {
		return 0, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("columns of %s: %w", table, err)
	}
	header := make([]string, 0, len(cols))
	for _, c := range cols {
		if !redacted[c] {
			header = append(header, strings.TrimSuffix(c, minorSuffix))
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return 0, err
	}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	n := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return n, fmt.Errorf("scan %s: %w", table, err)
		}
		record := make([]string, 0, len(header))
		for i, c := range cols {
			if redacted[c] {
				continue
			}
			cell, err := format(values[i], strings.HasSuffix(c, minorSuffix))
			if err != nil {
				return n, fmt.Errorf("%s.%s: %w", table, c, err)
			}
			record = append(record, cell)
		}
		if err := cw.Write(record); err != nil {
			return n, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("iterate %s: %w", table, err)
	}
	cw.Flush()
	return n, cw.Error()
}

func format(v any, money bool) (string, error) {
	if money {
		var minor int64
		switch x := v.(type) {
		case int64:
			minor = x
		case []byte:
			p, err := strconv.ParseInt(string(x), 10, 64)
			if err != nil {
				return "", err
			}
			minor = p
		case nil:
			return "", nil
		default:
			return "", fmt.Errorf("unexpected minor unit value %T", v)
		}
		return domain.Money(minor).String(), nil
	}
	switch x := v.(type) {
	case nil:
		return "", nil
	case []byte:
		return string(x), nil
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), nil
	default:
		return fmt.Sprint(x), nil
	}
}

// All writes one <table>.csv per existing table into dir
func All(ctx context.Context, db *gorm.DB, dir string) ([]Result, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var results []Result
	for _, table := range Tables {
		if !db.Migrator().HasTable(table) {
			logrus.WithField("table", table).Warn("Table not found, skipped")
			continue
		}
		path := filepath.Join(dir, table+".csv")
		n, err := writeFile(ctx, db, table, path)
		if err != nil {
			return results, err
		}
		logrus.WithFields(logrus.Fields{"table": table, "rows": n, "path": path}).Info("Table exported")
		results = append(results, Result{Table: table, Path: path, Rows: n})
	}
	return results, nil
}

func writeFile(ctx context.Context, db *gorm.DB, table, path string) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	n, err := WriteTable(ctx, db, table, bw)
	if err != nil {
		return n, err
	}
	if err := bw.Flush(); err != nil {
		return n, err
	}
	return n, f.Close()
}
