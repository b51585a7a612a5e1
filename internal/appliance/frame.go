package appliance

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Wire constants of the appliance TCP protocol.
const (
	HandshakeToken = "*HELLO*"
	FrameMarker    = 'N'

	sequenceDigits  = 6
	frameHeaderLen  = 1 + sequenceDigits
	sequenceModulus = 256
	maxFrameSize    = 1 << 20
)

var handshake = []byte(HandshakeToken)

// Snapshot is one decoded status frame. Never mutated after publication.
type Snapshot struct {
	Fingerprint string
	Sequence    int
	Tree        StateTree
	ObservedAt  time.Time
}

// decodeStatus parses a status frame: marker, 6-digit sequence, state payload.
func decodeStatus(frame []byte, now time.Time) (*Snapshot, error) {
	if len(frame) < frameHeaderLen {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrMalformedFrame, len(frame))
	}
	if !isDigits(frame[1:frameHeaderLen]) {
		return nil, fmt.Errorf("%w: bad sequence %q", ErrMalformedFrame, frame[1:frameHeaderLen])
	}
	seq, err := strconv.Atoi(string(frame[1:frameHeaderLen]))
	if err != nil {
		return nil, fmt.Errorf("%w: sequence: %v", ErrMalformedFrame, err)
	}
	tree, err := DecodeTree(frame[frameHeaderLen:])
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Fingerprint: string(frame),
		Sequence:    seq,
		Tree:        tree,
		ObservedAt:  now,
	}, nil
}

// EncodeFrame builds a frame: marker, zero-padded sequence, payload.
func EncodeFrame(seq int, payload string) []byte {
	return fmt.Appendf(nil, "%c%0*d%s", FrameMarker, sequenceDigits, seq, payload)
}

// nextSequence returns the sequence number to send after last.
func nextSequence(last int) int {
	return (last + 1) % sequenceModulus
}

// SplitFrames is a bufio.SplitFunc yielding the handshake token, complete
// status frames, or runs of unrecognised bytes (which fail decoding upstream).
func SplitFrames(data []byte, atEOF bool) (int, []byte, error) {
	start := 0
	for start < len(data) && isSpace(data[start]) {
		start++
	}
	buf := data[start:]
	if len(buf) == 0 {
		return start, nil, nil
	}

	switch buf[0] {
	case handshake[0]:
		if len(buf) >= len(handshake) {
			if bytes.HasPrefix(buf, handshake) {
				return start + len(handshake), buf[:len(handshake)], nil
			}
			return resync(start, buf)
		}
		if bytes.HasPrefix(handshake, buf) && !atEOF {
			return start, nil, nil
		}
		return resync(start, buf)

	case FrameMarker:
		if len(buf) < frameHeaderLen {
			if atEOF {
				return start + len(buf), buf, nil
			}
			return start, nil, nil
		}
		if !isDigits(buf[1:frameHeaderLen]) {
			return resync(start, buf)
		}
		n, complete, ok := scanJSONValue(buf[frameHeaderLen:])
		if !ok {
			return resync(start, buf)
		}
		if !complete {
			if atEOF {
				return start + len(buf), buf, nil
			}
			return start, nil, nil
		}
		end := frameHeaderLen + n
		return start + end, buf[:end], nil

	default:
		return resync(start, buf)
	}
}

// resync emits buf up to the next possible frame start as one token.
func resync(start int, buf []byte) (int, []byte, error) {
	if i := bytes.IndexAny(buf[1:], string([]byte{FrameMarker, handshake[0]})); i >= 0 {
		return start + 1 + i, buf[:1+i], nil
	}
	return start + len(buf), buf, nil
}

// scanJSONValue finds the end of the JSON object or array at the start of b.
// ok is false when b does not start with one.
func scanJSONValue(b []byte) (n int, complete, ok bool) {
	i := 0
	for i < len(b) && isSpace(b[i]) {
		i++
	}
	if i == len(b) {
		return 0, false, true
	}
	if b[i] != '[' && b[i] != '{' {
		return 0, false, false
	}
	depth := 0
	inString, escaped := false, false
	for ; i < len(b); i++ {
		c := b[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return i + 1, true, true
			}
		}
	}
	return 0, false, true
}

func isDigits(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(b) > 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
