package ics

import (
	"strings"
	"testing"
)

func TestParseContentLine_Basic(t *testing.T) {
	p, ok := parseContentLine("SUMMARY:Team dinner")
	if !ok {
		t.Fatal("expected ok")
	}
	if p.name != "SUMMARY" || p.value != "Team dinner" {
		t.Fatalf("got name=%q value=%q", p.name, p.value)
	}
	if p.params != nil {
		t.Fatalf("expected no params, got %v", p.params)
	}
}

func TestParseContentLine_Parameters(t *testing.T) {
	p, ok := parseContentLine("DTSTART;VALUE=DATE;TZID=Europe/Paris:20250101")
	if !ok {
		t.Fatal("expected ok")
	}
	if p.name != "DTSTART" {
		t.Fatalf("name = %q", p.name)
	}
	if p.value != "20250101" {
		t.Fatalf("value = %q", p.value)
	}
	if p.params["VALUE"] != "DATE" {
		t.Fatalf("VALUE param = %q", p.params["VALUE"])
	}
	if p.params["TZID"] != "Europe/Paris" {
		t.Fatalf("TZID param = %q", p.params["TZID"])
	}
}

func TestParseContentLine_ColonInValue(t *testing.T) {
	p, ok := parseContentLine("DESCRIPTION:Dial-in: 555-0100")
	if !ok {
		t.Fatal("expected ok")
	}
	if p.value != "Dial-in: 555-0100" {
		t.Fatalf("value = %q", p.value)
	}
}

func TestParseContentLine_NoColon(t *testing.T) {
	if _, ok := parseContentLine("THIS LINE IS MALFORMED"); ok {
		t.Fatal("expected malformed line to be rejected")
	}
	if _, ok := parseContentLine(":leading colon"); ok {
		t.Fatal("expected empty key to be rejected")
	}
}

// escapeText is the inverse of unescapeText, used to assert the
// round-trip property for ingestion.
func escapeText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, ";", `\;`)
	s = strings.ReplaceAll(s, ",", `\,`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

func TestUnescapeText_RoundTrip(t *testing.T) {
	cases := []string{
		"plain text",
		"commas, and; semicolons",
		`back\slash`,
		"line one\nline two",
		`everything: \, and ; and \n literal` + "\nnewline",
		`trailing backslash \`,
	}
	for _, want := range cases {
		if got := unescapeText(escapeText(want)); got != want {
			t.Errorf("round-trip of %q = %q", want, got)
		}
	}
}

func TestUnescapeText_EscapedBackslashBeforeN(t *testing.T) {
	// `\\n` is an escaped backslash followed by a literal n, not a
	// newline. Sequential replacement gets this wrong.
	if got := unescapeText(`a\\nb`); got != `a\nb` {
		t.Fatalf("got %q, want %q", got, `a\nb`)
	}
}

func TestUnescapeText_UppercaseNewline(t *testing.T) {
	if got := unescapeText(`one\Ntwo`); got != "one\ntwo" {
		t.Fatalf("got %q", got)
	}
}
