// Package datarecording stores flat records of a simulation run in SQLite.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder is a backend that can record and store data.
type DataRecorder interface {
	// CreateTable creates a new table whose columns are the fields of
	// sampleEntry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry of the same type as the sample entry of the
	// table.
	InsertData(tableName string, entry any)

	// ListTables returns the names of all the tables, sorted.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush()

	// Close flushes and closes the database.
	Close() error
}

// DefaultBatchSize is the number of buffered entries that triggers a flush.
const DefaultBatchSize = 100000

// ErrInvalidEntry is reported when an entry cannot be stored as a row.
var ErrInvalidEntry = errors.New("entry is invalid")

// New creates a DataRecorder that writes to <path>.sqlite3. An empty path
// picks a unique name. The file must not exist yet.
func New(path string) (DataRecorder, error) {
	if path == "" {
		path = "quantasim_run_" + xid.New().String()
	}

	filename := path + ".sqlite3"
	if _, err := os.Stat(filename); err == nil {
		return nil, fmt.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	return NewWithDB(db), nil
}

// NewWithDB creates a DataRecorder on an open database. Buffered entries are
// flushed when the program exits through atexit.
func NewWithDB(db *sql.DB) DataRecorder {
	w := &sqliteWriter{
		DB:        db,
		batchSize: DefaultBatchSize,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { w.Flush() })

	return w
}

type table struct {
	structType reflect.Type
	columns    []string
	entries    []any
}

// sqliteWriter is the writer that writes data into a SQLite database.
type sqliteWriter struct {
	*sql.DB

	lock       sync.Mutex
	tables     map[string]*table
	batchSize  int
	entryCount int
	closed     bool
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func columnsOf(t reflect.Type) ([]string, error) {
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v is not a struct", ErrInvalidEntry, t)
	}

	columns := make([]string, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if !field.IsExported() {
			return nil, fmt.Errorf("%w: field %s is not exported",
				ErrInvalidEntry, field.Name)
		}

		if !isAllowedKind(field.Type.Kind()) {
			return nil, fmt.Errorf("%w: field %s has kind %s",
				ErrInvalidEntry, field.Name, field.Type.Kind())
		}

		columns = append(columns, field.Name)
	}

	return columns, nil
}

func (w *sqliteWriter) CreateTable(tableName string, sampleEntry any) {
	w.lock.Lock()
	defer w.lock.Unlock()

	if _, exists := w.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	structType := reflect.TypeOf(sampleEntry)

	columns, err := columnsOf(structType)
	if err != nil {
		panic(err)
	}

	w.mustExecute(`CREATE TABLE ` + tableName +
		" (\n\t" + strings.Join(columns, ", \n\t") + "\n);")

	w.tables[tableName] = &table{
		structType: structType,
		columns:    columns,
	}
}

func (w *sqliteWriter) InsertData(tableName string, entry any) {
	w.lock.Lock()
	defer w.lock.Unlock()

	t, exists := w.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != t.structType {
		panic(fmt.Sprintf("table %s stores %v, got %T",
			tableName, t.structType, entry))
	}

	t.entries = append(t.entries, entry)

	w.entryCount++
	if w.entryCount >= w.batchSize {
		w.flush()
	}
}

func (w *sqliteWriter) ListTables() []string {
	w.lock.Lock()
	defer w.lock.Unlock()

	tables := make([]string, 0, len(w.tables))
	for name := range w.tables {
		tables = append(tables, name)
	}

	sort.Strings(tables)

	return tables
}

func (w *sqliteWriter) Flush() {
	w.lock.Lock()
	defer w.lock.Unlock()

	w.flush()
}

func (w *sqliteWriter) Close() error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.closed {
		return nil
	}

	w.flush()
	w.closed = true

	return w.DB.Close()
}

func (w *sqliteWriter) flush() {
	if w.entryCount == 0 || w.closed {
		return
	}

	tx, err := w.Begin()
	if err != nil {
		panic(err)
	}

	for name, t := range w.tables {
		if len(t.entries) == 0 {
			continue
		}

		w.insertAll(tx, name, t)
		t.entries = nil
	}

	if err := tx.Commit(); err != nil {
		panic(err)
	}

	w.entryCount = 0
}

func (w *sqliteWriter) insertAll(tx *sql.Tx, name string, t *table) {
	placeholders := make([]string, len(t.columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}

	stmt, err := tx.Prepare("INSERT INTO " + name +
		" VALUES (" + strings.Join(placeholders, ", ") + ")")
	if err != nil {
		panic(err)
	}
	defer stmt.Close()

	values := make([]any, len(t.columns))

	for _, entry := range t.entries {
		v := reflect.ValueOf(entry)
		for i := range values {
			values[i] = v.Field(i).Interface()
		}

		if _, err := stmt.Exec(values...); err != nil {
			panic(err)
		}
	}
}

func (w *sqliteWriter) mustExecute(query string) sql.Result {
	res, err := w.Exec(query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute: %s\n", query)
		panic(err)
	}

	return res
}
