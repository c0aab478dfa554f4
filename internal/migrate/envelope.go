package migrate

import (
	"errors"
	"fmt"
)

// Storage envelope: [1B codec name length][codec name][compressed payload].
// Objects self-describe their codec so a payload written under an older
// codec policy still decodes after the policy changes.

const maxCodecNameLen = 255

var errBadEnvelope = errors.New("migrate: malformed storage envelope")

func encodeEnvelope(codecName string, compressed []byte) ([]byte, error) {
	if len(codecName) == 0 || len(codecName) > maxCodecNameLen {
		return nil, fmt.Errorf("migrate: invalid codec name %q", codecName)
	}
	out := make([]byte, 0, 1+len(codecName)+len(compressed))
	out = append(out, byte(len(codecName)))
	out = append(out, codecName...)
	out = append(out, compressed...)
	return out, nil
}

func decodeEnvelope(payload []byte) (codecName string, compressed []byte, err error) {
	if len(payload) < 1 {
		return "", nil, errBadEnvelope
	}
	n := int(payload[0])
	if n == 0 || len(payload) < 1+n {
		return "", nil, errBadEnvelope
	}
	return string(payload[1 : 1+n]), payload[1+n:], nil
}
