package main

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func scanner(lines ...string) *bufio.Scanner {
	return bufio.NewScanner(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func TestTermUIConfirm(t *testing.T) {
	cases := map[string]bool{
		"y":    true,
		"YES":  true,
		" y ":  true,
		"n":    false,
		"":     false,
		"sure": false,
	}
	for answer, want := range cases {
		var out bytes.Buffer
		ui := &termUI{sc: scanner(answer), out: &out}
		if got := ui.Confirm("Delete?"); got != want {
			t.Errorf("Confirm with %q = %v, want %v", answer, got, want)
		}
		if !strings.HasPrefix(out.String(), "Delete? (y/N): ") {
			t.Errorf("unexpected prompt %q", out.String())
		}
	}

	var out bytes.Buffer
	ui := &termUI{sc: bufio.NewScanner(strings.NewReader("")), out: &out}
	if ui.Confirm("Delete?") {
		t.Fatalf("end of input must not confirm")
	}
}

func TestTermUIAlert(t *testing.T) {
	var out bytes.Buffer
	ui := &termUI{out: &out}
	ui.Alert("Book added successfully")
	if out.String() != "Book added successfully\n" {
		t.Fatalf("got %q", out.String())
	}
}

func TestAskDefault(t *testing.T) {
	sc := scanner("", "  Dune Messiah ")
	if v, ok := askDefault(sc, "Title", "Dune"); !ok || v != "Dune" {
		t.Fatalf("blank answer: %q %v", v, ok)
	}
	if v, ok := askDefault(sc, "Title", "Dune"); !ok || v != "Dune Messiah" {
		t.Fatalf("typed answer: %q %v", v, ok)
	}
	if _, ok := askDefault(sc, "Title", "Dune"); ok {
		t.Fatalf("expected end of input")
	}
}

func TestParseID(t *testing.T) {
	if id, err := parseID(" 42 "); err != nil || id != 42 {
		t.Fatalf("parseID: %d %v", id, err)
	}
	for _, bad := range []string{"", "0", "-3", "abc"} {
		if _, err := parseID(bad); err == nil {
			t.Errorf("parseID(%q) should fail", bad)
		}
	}
}

func TestTruncateString(t *testing.T) {
	if got := truncateString("The Left Hand of Darkness", 10); got != "The Lef..." {
		t.Fatalf("got %q", got)
	}
	if got := truncateString("Dune", 10); got != "Dune" {
		t.Fatalf("got %q", got)
	}
}
