package postgres

import (
	"database/sql/driver"

	"github.com/lib/pq"
)

// stringArray scans a Postgres text[] column into a Go []string. Writes
// go through the strArray helper instead, since pq.Array already
// satisfies driver.Valuer directly.
type stringArray struct{ strs []string }

func (a *stringArray) Scan(src interface{}) error {
	var raw pq.StringArray
	if err := raw.Scan(src); err != nil {
		return err
	}
	a.strs = []string(raw)
	return nil
}

func strArray(s []string) driver.Valuer { return pq.Array(s) }

// int64Array scans a Postgres bigint[] column and also serves as a
// bind parameter for writes via its Value method.
type int64Array struct{ vals []int64 }

func (a *int64Array) Scan(src interface{}) error {
	var raw pq.Int64Array
	if err := raw.Scan(src); err != nil {
		return err
	}
	a.vals = []int64(raw)
	return nil
}

func (a int64Array) Value() (driver.Value, error) {
	return pq.Array(a.vals).Value()
}

// intArray is the same shape as int64Array for int[] columns
// (global_settings.working_days stores time.Weekday values as ints).
type intArray struct{ ints []int }

func (a *intArray) Scan(src interface{}) error {
	var raw pq.Int64Array
	if err := raw.Scan(src); err != nil {
		return err
	}
	ints := make([]int, len(raw))
	for i, v := range raw {
		ints[i] = int(v)
	}
	a.ints = ints
	return nil
}

func (a intArray) Value() (driver.Value, error) {
	vals := make([]int64, len(a.ints))
	for i, v := range a.ints {
		vals[i] = int64(v)
	}
	return pq.Array(vals).Value()
}
