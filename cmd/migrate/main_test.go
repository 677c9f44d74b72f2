package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	version  int64
	up, down []int
	closed   bool
	upErr    error
}

func (f *fakeMigrator) MigrateUp(_ context.Context, steps int) error {
	f.up = append(f.up, steps)
	if f.upErr != nil {
		return f.upErr
	}
	f.version = 2
	return nil
}

func (f *fakeMigrator) MigrateDown(_ context.Context, steps int) error {
	f.down = append(f.down, steps)
	f.version--
	return nil
}

func (f *fakeMigrator) MigrationStatus(context.Context) (int64, int, error) {
	return f.version, int(f.version), nil
}

func (f *fakeMigrator) Close() error {
	f.closed = true
	return nil
}

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		want    options
		wantErr error
	}{
		{
			name: "dsn from env",
			env:  map[string]string{"DATABASE_URL": " postgres://x "},
			want: options{direction: "up", dsn: "postgres://x"},
		},
		{
			name: "flag wins over env",
			args: []string{"-dsn", "postgres://flag", "-direction", "DOWN", "-steps", "2"},
			env:  map[string]string{"DATABASE_URL": "postgres://env"},
			want: options{direction: "down", steps: 2, dsn: "postgres://flag"},
		},
		{
			name:    "missing dsn",
			wantErr: errDSNRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlags(tt.args, env(tt.env))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRun_Directions(t *testing.T) {
	tests := []struct {
		name      string
		direction string
		steps     int
		start     int64
		wantOut   string
	}{
		{name: "up", direction: "up", wantOut: "migrate up ok: version=2 applied=2\n"},
		{name: "down", direction: "down", steps: 1, start: 2, wantOut: "migrate down ok: version=1 applied=1\n"},
		{name: "status", direction: "status", start: 1, wantOut: "migration status: version=1 applied=1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeMigrator{version: tt.start}
			var out bytes.Buffer

			err := run(context.Background(), store, options{direction: tt.direction, steps: tt.steps}, &out)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOut, out.String())
			assert.True(t, store.closed)
		})
	}
}

func TestRun_Errors(t *testing.T) {
	store := &fakeMigrator{}
	err := run(context.Background(), store, options{direction: "sideways"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported direction")
	assert.True(t, store.closed)

	failing := &fakeMigrator{upErr: errors.New("boom")}
	err = run(context.Background(), failing, options{direction: "up"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate up failed")
}
