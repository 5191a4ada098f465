package protocol

import (
	"encoding/json"
	"fmt"
)

// Identifies a daemon command or response kind.
type Command string

const (

	// Commands sent by the CLI.
	CmdBuild    Command = "build"
	CmdUp       Command = "up"
	CmdDown     Command = "down"
	CmdProbe    Command = "probe"
	CmdStatus   Command = "status"
	CmdShutdown Command = "shutdown"

	// Responses sent by the daemon. Zero or more events precede exactly
	// one terminal ok or error per exchange.
	CmdOK    Command = "ok"
	CmdError Command = "error"
	CmdEvent Command = "event"
)

// Wire framing for one newline-delimited JSON message.
type Envelope struct {
	Command Command         `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Serializes a command and payload into a JSON envelope.
func Encode(cmd Command, payload any) ([]byte, error) {
	env := Envelope{Command: cmd}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEncode, err)
		}
		env.Payload = data
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return data, nil
}

// Parses a JSON envelope, returning the envelope and its raw payload.
func Decode(data []byte) (*Envelope, json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if env.Command == "" {
		return nil, nil, fmt.Errorf("%w: missing command", ErrDecode)
	}
	return &env, env.Payload, nil
}

// Parses a raw payload into a concrete request or result type.
func DecodePayload[T any](payload json.RawMessage) (*T, error) {
	var v T
	if len(payload) == 0 {
		return &v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return &v, nil
}
