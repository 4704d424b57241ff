package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/docrel/internal/d2r"
	"github.com/kailas-cloud/docrel/internal/domain/meta"
)

// --- Mocks ---

type mockTx struct {
	applyErr, insertErr, commitErr error
	calls                          []string
}

func (m *mockTx) ApplyChanges(context.Context, *meta.Snapshot, meta.Changes) error {
	m.calls = append(m.calls, "apply")
	return m.applyErr
}

func (m *mockTx) InsertRows(context.Context, string, *d2r.CollectionData) error {
	m.calls = append(m.calls, "insert")
	return m.insertErr
}

func (m *mockTx) Commit() error {
	m.calls = append(m.calls, "commit")
	return m.commitErr
}

func (m *mockTx) Rollback() error {
	m.calls = append(m.calls, "rollback")
	return nil
}

type mockBeginner struct {
	tx  *mockTx
	err error
}

func (m *mockBeginner) Begin(context.Context) (Tx, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.tx, nil
}

// --- Tests ---

func TestWrite(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		tx      *mockTx
		data    bool
		wantErr bool
		want    []string
	}{
		{"schema only", &mockTx{}, false, false, []string{"apply", "commit"}},
		{"with rows", &mockTx{}, true, false, []string{"apply", "insert", "commit"}},
		{"apply fails", &mockTx{applyErr: boom}, true, true, []string{"apply", "rollback"}},
		{"insert fails", &mockTx{insertErr: boom}, true, true, []string{"apply", "insert", "rollback"}},
		{"commit fails", &mockTx{commitErr: boom}, false, true, []string{"apply", "commit"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var data *d2r.CollectionData
			if tt.data {
				data = &d2r.CollectionData{}
			}
			err := Write(context.Background(), &mockBeginner{tx: tt.tx}, meta.Empty(), nil, "test", data)
			if tt.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, boom) {
				t.Errorf("expected wrapped boom, got %v", err)
			}
			if len(tt.tx.calls) != len(tt.want) {
				t.Fatalf("calls = %v, want %v", tt.tx.calls, tt.want)
			}
			for i := range tt.want {
				if tt.tx.calls[i] != tt.want[i] {
					t.Errorf("calls = %v, want %v", tt.tx.calls, tt.want)
				}
			}
		})
	}
}

func TestWrite_BeginFails(t *testing.T) {
	boom := errors.New("boom")
	err := Write(context.Background(), &mockBeginner{err: boom}, meta.Empty(), nil, "test", nil)
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}
