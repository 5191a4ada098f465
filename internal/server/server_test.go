package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/slipwayhq/slipway/internal/manifest"
	"github.com/slipwayhq/slipway/internal/protocol"
)

func TestAttemptLogRoundtrip(t *testing.T) {
	dir := t.TempDir()

	l := newAttemptLog(dir)
	l.Record(protocol.Attempt{Service: "svc", Profile: "full", Phase: "build", Outcome: "failed", Detail: "boom"})
	l.Record(protocol.Attempt{Service: "svc", Profile: "slim", Phase: "build", Outcome: "succeeded"})

	// A fresh log must see what the old one persisted.
	reloaded := newAttemptLog(dir)
	recent := reloaded.Recent(recentAttempts)
	if len(recent) != 2 {
		t.Fatalf("recent = %v, want 2 entries", recent)
	}
	if recent[0].Outcome != "failed" || recent[1].Profile != "slim" {
		t.Errorf("recent = %+v", recent)
	}
}

func TestAttemptLogTrims(t *testing.T) {
	l := newAttemptLog(t.TempDir())
	for i := 0; i < maxAttempts+20; i++ {
		l.Record(protocol.Attempt{Service: "svc", Detail: fmt.Sprintf("%d", i)})
	}

	all := l.Recent(maxAttempts + 20)
	if len(all) != maxAttempts {
		t.Fatalf("len = %d, want trimmed to %d", len(all), maxAttempts)
	}
	if all[len(all)-1].Detail != fmt.Sprintf("%d", maxAttempts+19) {
		t.Errorf("last = %+v, want the newest record", all[len(all)-1])
	}
}

func TestSelectionsDefaultFull(t *testing.T) {
	s := newSelections(t.TempDir())

	profile, err := s.resolve("svc", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if profile != manifest.ProfileFull {
		t.Errorf("profile = %q, want full initially", profile)
	}
}

func TestSelectionsFallbackPersists(t *testing.T) {
	dir := t.TempDir()

	s := newSelections(dir)
	if _, err := s.resolve("svc", "slim"); err != nil {
		t.Fatalf("select slim: %v", err)
	}

	// Restart: the fallback must still be in force.
	reloaded := newSelections(dir)
	profile, err := reloaded.resolve("svc", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if profile != manifest.ProfileSlim {
		t.Errorf("profile = %q, want slim after restart", profile)
	}

	// And slim stays terminal.
	if _, err := reloaded.resolve("svc", "full"); !errors.Is(err, manifest.ErrSelection) {
		t.Errorf("err = %v, want ErrSelection going back to full", err)
	}
}

func TestSelectionsIndependentPerService(t *testing.T) {
	s := newSelections(t.TempDir())

	if _, err := s.resolve("one", "slim"); err != nil {
		t.Fatalf("select: %v", err)
	}
	profile, err := s.resolve("two", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if profile != manifest.ProfileFull {
		t.Errorf("profile = %q, one service's fallback leaked to another", profile)
	}
}

func TestLineWriterSplitsLines(t *testing.T) {
	var lines []string
	w := &lineWriter{emit: func(line string) { lines = append(lines, line) }}

	w.Write([]byte("first\nsec"))
	w.Write([]byte("ond\npartial"))
	w.Flush()

	want := []string{"first", "second", "partial"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestSessionSendsEnvelopes(t *testing.T) {
	client, srv := net.Pipe()
	defer client.Close()
	defer srv.Close()

	sess := &session{conn: srv}
	go sess.send(protocol.CmdOK, &protocol.BuildResult{Output: "/tmp/out"})

	line, err := bufio.NewReader(client).ReadBytes('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	env, payload, err := protocol.Decode(line)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Command != protocol.CmdOK {
		t.Errorf("command = %q", env.Command)
	}
	result, err := protocol.DecodePayload[protocol.BuildResult](payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if result.Output != "/tmp/out" {
		t.Errorf("output = %q", result.Output)
	}
}

func TestDispatchRejectsUnknownCommand(t *testing.T) {
	client, srv := net.Pipe()
	defer client.Close()

	s := &Server{}
	go func() {
		defer srv.Close()
		s.dispatch(context.Background(), &session{conn: srv}, protocol.Command("explode"), nil)
	}()

	line, err := bufio.NewReader(client).ReadBytes('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	env, payload, err := protocol.Decode(line)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Command != protocol.CmdError {
		t.Fatalf("command = %q, want error", env.Command)
	}
	result, err := protocol.DecodePayload[protocol.ErrorResult](payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if !strings.Contains(result.Message, "unknown command") {
		t.Errorf("message = %q", result.Message)
	}
}
