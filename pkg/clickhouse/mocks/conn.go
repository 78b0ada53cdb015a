// Package mocks provides testify mocks of the ClickHouse driver interfaces.
package mocks

import (
	"context"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/mock"
)

var _ driver.Conn = (*MockConn)(nil)

// MockConn is a mock driver.Conn. Query methods are recorded as
// (ctx, query, args...), so expectations can match individual bind values.
type MockConn struct {
	mock.Mock
}

// call records method explicitly. m.Called would take the method name from
// its caller, which is always call.
func (m *MockConn) call(ctx context.Context, method, query string, args []interface{}) mock.Arguments {
	callArgs := make([]interface{}, 0, len(args)+2)
	callArgs = append(callArgs, ctx, query)
	return m.MethodCalled(method, append(callArgs, args...)...)
}

func (m *MockConn) Contributors() []string {
	return m.Called().Get(0).([]string)
}

func (m *MockConn) ServerVersion() (*driver.ServerVersion, error) {
	args := m.Called()
	v, _ := args.Get(0).(*driver.ServerVersion)
	return v, args.Error(1)
}

func (m *MockConn) Select(ctx context.Context, _ interface{}, query string, args ...interface{}) error {
	return m.call(ctx, "Select", query, args).Error(0)
}

func (m *MockConn) Query(ctx context.Context, query string, args ...interface{}) (driver.Rows, error) {
	res := m.call(ctx, "Query", query, args)
	rows, _ := res.Get(0).(driver.Rows)
	return rows, res.Error(1)
}

func (m *MockConn) QueryRow(ctx context.Context, query string, args ...interface{}) driver.Row {
	row, _ := m.call(ctx, "QueryRow", query, args).Get(0).(driver.Row)
	return row
}

func (m *MockConn) Exec(ctx context.Context, query string, args ...interface{}) error {
	return m.call(ctx, "Exec", query, args).Error(0)
}

func (m *MockConn) AsyncInsert(ctx context.Context, query string, wait bool, args ...interface{}) error {
	return m.call(ctx, "AsyncInsert", query, append([]interface{}{wait}, args...)).Error(0)
}

func (m *MockConn) PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error) {
	args := make([]interface{}, len(opts))
	for i, opt := range opts {
		args[i] = opt
	}
	res := m.call(ctx, "PrepareBatch", query, args)
	batch, _ := res.Get(0).(driver.Batch)
	return batch, res.Error(1)
}

func (m *MockConn) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockConn) Stats() driver.Stats {
	stats, _ := m.Called().Get(0).(driver.Stats)
	return stats
}

func (m *MockConn) Close() error {
	return m.Called().Error(0)
}

// QueryContaining matches a query string that contains every part.
func QueryContaining(parts ...string) interface{} {
	return mock.MatchedBy(func(q string) bool {
		for _, p := range parts {
			if !strings.Contains(q, p) {
				return false
			}
		}
		return true
	})
}
