package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestReport_Plain(t *testing.T) {
	var buf bytes.Buffer
	r := &report{w: &buf}

	r.title("Code arena")
	r.field("Routing", "%s", "signal")
	r.ok("Native", "%d calls ok", 3)
	r.trapped("Trapped", errors.New("wasm trap at 0x1000"))

	want := []string{
		"Code arena",
		"Routing:   signal",
		"Native:    3 calls ok",
		"Trapped:   wasm trap at 0x1000",
	}
	got := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(got), len(want), buf.String())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Error("plain report contains escape sequences")
	}
}
