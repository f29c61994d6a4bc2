package lists

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFixture(t, dir, "sdn_addresses.json",
		`["0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA1"]`)
	writeFixture(t, dir, "scam_addresses.json",
		`{"addresses":["0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA2"]}`)
	writeFixture(t, dir, "cex_addresses.json",
		`{"binance":["0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA3"],"kraken":["0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA4"]}`)
	writeFixture(t, dir, "bridge_contracts.json",
		`{"mixer_services":["0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA5"],`+
			`"bridges":[{"contracts":{"ethereum":"0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA6","base":""}}]}`)
	return dir
}

func TestLoadNormalizesToLowercase(t *testing.T) {
	l, err := Load(fixtureDir(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !l.IsSanctioned("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1") {
		t.Error("SDN member not found via lowercase lookup")
	}
	if !l.IsSanctioned("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA1") {
		t.Error("SDN lookup should be case-insensitive")
	}
	if !l.IsScam("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa2") {
		t.Error("scam object form not parsed")
	}
	if got := l.Size(CEXList); got != 2 {
		t.Errorf("CEX set size = %d, want 2", got)
	}
	if !l.IsMixer("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa5") {
		t.Error("mixer_services not loaded")
	}
	if !l.IsBridge("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa6") {
		t.Error("bridge contracts not loaded")
	}
	if l.IsBridge("") {
		t.Error("empty bridge contract address must be skipped")
	}
}

func TestLabelPrecedence(t *testing.T) {
	// An address on every list must resolve mixer > cex > bridge.
	l := Empty()
	addr := "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	l.Add(BridgeList, addr)
	if got := l.Label(addr); got != "bridge" {
		t.Errorf("bridge-only label = %q", got)
	}
	l.Add(CEXList, addr)
	if got := l.Label(addr); got != "cex" {
		t.Errorf("cex beats bridge, got %q", got)
	}
	l.Add(MixerList, addr)
	if got := l.Label(addr); got != "mixer" {
		t.Errorf("mixer beats cex, got %q", got)
	}
	if got := l.Label("0xcccccccccccccccccccccccccccccccccccccccc"); got != "unknown" {
		t.Errorf("unlisted label = %q, want unknown", got)
	}
}

func TestFlagsSnapshot(t *testing.T) {
	l := Empty()
	addr := "0xdddddddddddddddddddddddddddddddddddddddd"
	l.Add(SDNList, addr)
	l.Add(MixerList, addr)

	flags := l.Flags(addr)
	if !flags.IsSanctioned || !flags.IsMixer {
		t.Errorf("flags = %+v, want sanctioned+mixer", flags)
	}
	if flags.Label != "mixer" {
		t.Errorf("flags label = %q, want mixer", flags.Label)
	}
}

func TestLoadMissingDirFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Fatal("Load on a missing directory must fail")
	}
}
