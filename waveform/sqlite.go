package waveform

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/stimulus/model"
	"github.com/sarchlab/stimulus/timing"
)

const (
	pinTable    = "pins"
	changeTable = "waveform"
)

// PinEntry is a row of the pin table.
type PinEntry struct {
	ID        int
	Name      string
	Width     int
	Direction string
}

// ValueChange is a recorded change of a pin. A pin keeps its value until the
// next change.
type ValueChange struct {
	TimeNs uint64
	PinID  int
	Value  uint64
}

// changeRow is a row of the waveform table. SQLite integers are signed, so
// values are stored as their int64 bit pattern.
type changeRow struct {
	TimeNs int64
	PinID  int
	Value  int64
}

type table struct {
	structType reflect.Type
	entries    []any
}

// SQLiteRecorder records value changes into a SQLite database. Entries are
// buffered and written in one transaction per Flush.
type SQLiteRecorder struct {
	*sql.DB

	dbName  string
	ownsDB  bool
	tables  map[string]*table
	order   []string
	sampler *sampler
	guard   timeGuard

	batchSize  int
	entryCount int
}

// NewSQLiteRecorder creates a database file at path and records the pins of
// m into it. If path is empty, a unique name is generated. A ".sqlite3"
// extension is added when path has none. The database is flushed when the
// program exits through atexit.
func NewSQLiteRecorder(path string, m model.Model) (*SQLiteRecorder, error) {
	r := &SQLiteRecorder{
		dbName:    path,
		ownsDB:    true,
		batchSize: 100000,
		tables:    make(map[string]*table),
		sampler:   newSampler(m),
	}

	err := r.init()
	if err != nil {
		return nil, err
	}

	atexit.Register(func() { _ = r.Flush() })

	return r, nil
}

// NewSQLiteRecorderWithDB records into an already opened database. The
// database is not closed by Close.
func NewSQLiteRecorderWithDB(db *sql.DB, m model.Model) (*SQLiteRecorder, error) {
	r := &SQLiteRecorder{
		DB:        db,
		batchSize: 100000,
		tables:    make(map[string]*table),
		sampler:   newSampler(m),
	}

	err := r.createTables()
	if err != nil {
		return nil, err
	}

	return r, nil
}

// Filename returns the name of the database file, if the recorder created it.
func (r *SQLiteRecorder) Filename() string {
	return r.dbName
}

func (r *SQLiteRecorder) init() error {
	if r.dbName == "" {
		r.dbName = "stimsim_waveform_" + xid.New().String()
	}

	if filepath.Ext(r.dbName) == "" {
		r.dbName += ".sqlite3"
	}

	_, err := os.Stat(r.dbName)
	if err == nil {
		return fmt.Errorf("waveform: file %s already exists", r.dbName)
	}

	db, err := sql.Open("sqlite3", r.dbName)
	if err != nil {
		return err
	}

	r.DB = db

	// One flush per half period; WAL avoids a full sync on every commit.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := r.Exec(pragma); err != nil {
			return err
		}
	}

	return r.createTables()
}

func (r *SQLiteRecorder) createTables() error {
	err := r.createTable(pinTable, PinEntry{})
	if err != nil {
		return err
	}

	err = r.createTable(changeTable, changeRow{})
	if err != nil {
		return err
	}

	for i, p := range r.sampler.pins {
		r.insertData(pinTable, PinEntry{
			ID:        i,
			Name:      p.Name,
			Width:     p.Width,
			Direction: directionName(p.Direction),
		})
	}

	return nil
}

func directionName(d model.Direction) string {
	if d == model.Output {
		return "out"
	}

	return "in"
}

func isAllowedType(kind reflect.Kind) bool {
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

func checkStructFields(entry any) error {
	types := reflect.TypeOf(entry)

	for i := 0; i < types.NumField(); i++ {
		field := types.Field(i)
		if !isAllowedType(field.Type.Kind()) {
			return errors.New("waveform: entry field " + field.Name +
				" cannot be stored")
		}
	}

	return nil
}

func (r *SQLiteRecorder) createTable(tableName string, sampleEntry any) error {
	err := checkStructFields(sampleEntry)
	if err != nil {
		return err
	}

	n := structs.Names(sampleEntry)
	fields := strings.Join(n, ", \n\t")

	createTableSQL := `CREATE TABLE ` + tableName +
		` (` + "\n\t" + fields + "\n" + `);`

	_, err = r.Exec(createTableSQL)
	if err != nil {
		return fmt.Errorf("waveform: create table %s: %w", tableName, err)
	}

	r.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
	}
	r.order = append(r.order, tableName)

	return nil
}

func (r *SQLiteRecorder) insertData(tableName string, entry any) {
	t, exists := r.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	t.entries = append(t.entries, entry)
	r.entryCount++
}

// RecordSample buffers the pins that changed since the previous sample.
func (r *SQLiteRecorder) RecordSample(t timing.VTimeInNs) error {
	_, err := r.guard.admit(t)
	if err != nil {
		return err
	}

	for _, c := range r.sampler.sample() {
		r.insertData(changeTable, changeRow{
			TimeNs: int64(t),
			PinID:  c.index,
			Value:  int64(c.value),
		})
	}

	if r.entryCount >= r.batchSize {
		return r.Flush()
	}

	return nil
}

// Flush writes all the buffered entries in one transaction. If the
// transaction fails, the entries stay buffered for the next Flush.
func (r *SQLiteRecorder) Flush() error {
	if r.guard.closed {
		return ErrRecorderClosed
	}

	if r.entryCount == 0 {
		return nil
	}

	tx, err := r.Begin()
	if err != nil {
		return err
	}

	for _, tableName := range r.order {
		err = r.flushTable(tx, tableName)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		return err
	}

	for _, t := range r.tables {
		t.entries = nil
	}

	r.entryCount = 0

	return nil
}

func (r *SQLiteRecorder) flushTable(tx *sql.Tx, tableName string) error {
	t := r.tables[tableName]
	if len(t.entries) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(insertStatement(tableName, t.entries[0]))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, entry := range t.entries {
		_, err = stmt.Exec(structs.Values(entry)...)
		if err != nil {
			return err
		}
	}

	return nil
}

func insertStatement(tableName string, entry any) string {
	n := structs.Names(entry)
	for i := range n {
		n[i] = "?"
	}

	return "INSERT INTO " + tableName +
		" VALUES (" + strings.Join(n, ", ") + ")"
}

// ValueChanges returns the recorded changes of a pin in time order. Only
// flushed entries are visible.
func (r *SQLiteRecorder) ValueChanges(pin string) ([]ValueChange, error) {
	rows, err := r.Query(
		`SELECT w.TimeNs, w.PinID, w.Value FROM `+changeTable+` w
		JOIN `+pinTable+` p ON p.ID = w.PinID
		WHERE p.Name = ? ORDER BY w.rowid`, pin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []ValueChange
	for rows.Next() {
		var row changeRow

		err = rows.Scan(&row.TimeNs, &row.PinID, &row.Value)
		if err != nil {
			return nil, err
		}

		changes = append(changes, ValueChange{
			TimeNs: uint64(row.TimeNs),
			PinID:  row.PinID,
			Value:  uint64(row.Value),
		})
	}

	return changes, rows.Err()
}

// Close flushes the remaining entries. The database is closed if the
// recorder opened it. Closing twice is a no-op.
func (r *SQLiteRecorder) Close() error {
	if r.guard.closed {
		return nil
	}

	err := r.Flush()
	r.guard.closed = true

	if r.ownsDB {
		if cerr := r.DB.Close(); err == nil {
			err = cerr
		}
	}

	return err
}

var _ Recorder = (*SQLiteRecorder)(nil)
