package main

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
)

type fakeMigrator struct {
	upErr  error
	steps  []int
	forced int
}

func (f *fakeMigrator) Up() error { return f.upErr }

func (f *fakeMigrator) Steps(n int) error {
	f.steps = append(f.steps, n)
	return nil
}

func (f *fakeMigrator) Force(v int) error {
	f.forced = v
	return nil
}

func TestRunCommands(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		upErr   error
		wantErr bool
		check   func(t *testing.T, f *fakeMigrator)
	}{
		{name: "default up", args: nil},
		{name: "up without changes", args: []string{"up"}, upErr: migrate.ErrNoChange},
		{name: "up failure", args: []string{"up"}, upErr: errors.New("dirty database"), wantErr: true},
		{name: "down one step", args: []string{"down"}, check: func(t *testing.T, f *fakeMigrator) {
			if len(f.steps) != 1 || f.steps[0] != -1 {
				t.Fatalf("expected Steps(-1), got %v", f.steps)
			}
		}},
		{name: "down three", args: []string{"down", "3"}, check: func(t *testing.T, f *fakeMigrator) {
			if len(f.steps) != 1 || f.steps[0] != -3 {
				t.Fatalf("expected Steps(-3), got %v", f.steps)
			}
		}},
		{name: "force", args: []string{"force", "4"}, check: func(t *testing.T, f *fakeMigrator) {
			if f.forced != 4 {
				t.Fatalf("expected forced version 4, got %d", f.forced)
			}
		}},
		{name: "force needs version", args: []string{"force"}, wantErr: true},
		{name: "bad number", args: []string{"down", "x"}, wantErr: true},
		{name: "unknown", args: []string{"sideways"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeMigrator{upErr: tt.upErr}
			err := run(f, tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("run(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, f)
			}
		})
	}
}
