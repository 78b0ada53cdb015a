package mocks

import (
	"fmt"
	"reflect"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

var _ driver.Row = Row{}

// Row is a driver.Row that scans Values positionally into the destination
// pointers, or fails with Error.
type Row struct {
	Values []interface{}
	Error  error
}

func (r Row) Err() error { return r.Error }

func (r Row) Scan(dest ...interface{}) error {
	if r.Error != nil {
		return r.Error
	}
	if len(dest) != len(r.Values) {
		return fmt.Errorf("scan into %d destinations, row has %d columns", len(dest), len(r.Values))
	}
	for i, v := range r.Values {
		ptr := reflect.ValueOf(dest[i])
		if ptr.Kind() != reflect.Pointer || ptr.IsNil() {
			return fmt.Errorf("destination %d is not a pointer", i)
		}
		val := reflect.ValueOf(v)
		if !val.Type().AssignableTo(ptr.Elem().Type()) {
			return fmt.Errorf("column %d: cannot assign %s to %s", i, val.Type(), ptr.Elem().Type())
		}
		ptr.Elem().Set(val)
	}
	return nil
}

func (r Row) ScanStruct(interface{}) error {
	return fmt.Errorf("ScanStruct is not supported by mocks.Row")
}
