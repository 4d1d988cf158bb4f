package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRunPlainCommands(t *testing.T) {
	setCommandExecutionContext(commandExecutionContext{CommandPath: "stackspend api login"})
	t.Cleanup(resetCommandExecutionContext)

	tests := []struct {
		name    string
		err     error
		want    int
		wantOut string
	}{
		{name: "success", want: 0},
		{name: "plain", err: errors.New("boom"), want: 1, wantOut: "boom\n"},
		{name: "canceled", err: fmt.Errorf("serve: %w", context.Canceled), want: exitCanceled, wantOut: "canceled\n"},
		{name: "exit error", err: &exitError{code: exitUnauthorized, err: errors.New("token expired")}, want: exitUnauthorized, wantOut: "token expired\n"},
		{name: "wrapped exit error", err: fmt.Errorf("clients: %w", &exitError{code: exitUsage, err: errors.New("bad id")}), want: exitUsage, wantOut: "bad id\n"},
		{name: "silent exit error", err: &exitError{code: exitUsage, silent: true}, want: exitUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got := run(func() error { return tt.err }, &out)
			if got != tt.want {
				t.Fatalf("run() = %d, want %d", got, tt.want)
			}
			if out.String() != tt.wantOut {
				t.Fatalf("stderr = %q, want %q", out.String(), tt.wantOut)
			}
		})
	}
}

func TestRunStructuredCommands(t *testing.T) {
	tests := []struct {
		name      string
		logFormat string
		err       error
		wantMsg   string
		wantCode  float64
	}{
		{name: "failure", logFormat: "json", err: errors.New("dial tcp: refused"), wantMsg: "command failed", wantCode: 1},
		{name: "canceled", logFormat: "json", err: context.Canceled, wantMsg: "command canceled", wantCode: exitCanceled},
		{name: "bad log env falls back to json", logFormat: "yaml", err: errors.New("boom"), wantMsg: "command failed", wantCode: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_FORMAT", tt.logFormat)
			t.Setenv("LOG_LEVEL", "info")
			setCommandExecutionContext(commandExecutionContext{CommandPath: "stackspend worker", UsesStructuredLog: true})
			t.Cleanup(resetCommandExecutionContext)

			var out bytes.Buffer
			run(func() error { return tt.err }, &out)

			var record map[string]any
			if err := json.Unmarshal([]byte(strings.TrimSpace(out.String())), &record); err != nil {
				t.Fatalf("stderr is not one JSON record: %q (%v)", out.String(), err)
			}
			want := map[string]any{
				"msg":       tt.wantMsg,
				"app":       "stackspend",
				"command":   "stackspend worker",
				"exit_code": tt.wantCode,
				"error":     tt.err.Error(),
			}
			for k, v := range want {
				if record[k] != v {
					t.Fatalf("record[%q] = %v, want %v (record %v)", k, record[k], v, record)
				}
			}
		})
	}
}
