package protocol

import (
	"testing"
)

func TestEncodeDecodeRoundtrip(t *testing.T) {
	data, err := Encode(CmdBuild, &BuildRequest{
		Context: "/srv/app",
		Profile: "full",
		Output:  "dist",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	env, payload, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Command != CmdBuild {
		t.Fatalf("command = %q, want %q", env.Command, CmdBuild)
	}

	req, err := DecodePayload[BuildRequest](payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if req.Context != "/srv/app" || req.Profile != "full" || req.Output != "dist" {
		t.Fatalf("payload roundtrip mismatch: %+v", req)
	}
}

func TestEncodeNilPayload(t *testing.T) {
	data, err := Encode(CmdShutdown, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	env, payload, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Command != CmdShutdown {
		t.Fatalf("command = %q, want %q", env.Command, CmdShutdown)
	}
	if len(payload) != 0 {
		t.Fatalf("payload = %q, want empty", payload)
	}
}

func TestDecodeMissingCommand(t *testing.T) {
	if _, _, err := Decode([]byte(`{"payload":{}}`)); err == nil {
		t.Fatal("expected error for envelope without command")
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, _, err := Decode([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed envelope")
	}
}

func TestDecodePayloadEmpty(t *testing.T) {
	req, err := DecodePayload[ProbeRequest](nil)
	if err != nil {
		t.Fatalf("decode empty payload: %v", err)
	}
	if req.Port != 0 {
		t.Fatalf("port = %d, want zero value", req.Port)
	}
}
