package codec

import (
	"bytes"
	"fmt"
	"strconv"
)

// InboundMessage is the parsed form of a received wire frame.
type InboundMessage struct {
	MsgType  string
	SeqNum   int
	PossDup  bool
	Fields   []Field
	Raw      []byte
	Valid    bool
	Complete bool
}

// Build serializes an ordered field list into the wire form: it renders
// tag 8 (BeginString), computes the body length over the rendered body,
// emits tag 9, then the body, then the checksum (tag 10). fields must
// already include every body field the caller wants on the wire (standard
// headers included) in the order they should appear — Build does not
// reorder or inject headers; that is the session's job at send time. Build
// fails only if a field's value contains a disallowed byte (SOH or '=').
func Build(beginString string, fields []Field) ([]byte, error) {
	var body bytes.Buffer
	for _, f := range fields {
		if err := validateValue(f.Value); err != nil {
			return nil, err
		}
		body.WriteString(strconv.Itoa(f.Tag))
		body.WriteByte('=')
		body.WriteString(f.Value)
		body.WriteByte(SOH)
	}
	bodyBytes := body.Bytes()

	var head bytes.Buffer
	head.WriteString("8=")
	head.WriteString(beginString)
	head.WriteByte(SOH)
	head.WriteString("9=")
	head.WriteString(strconv.Itoa(len(bodyBytes)))
	head.WriteByte(SOH)

	var preChecksum bytes.Buffer
	preChecksum.Write(head.Bytes())
	preChecksum.Write(bodyBytes)

	sum := checksum(preChecksum.Bytes())

	var out bytes.Buffer
	out.Write(preChecksum.Bytes())
	out.WriteString("10=")
	out.WriteString(fmt.Sprintf("%03d", sum))
	out.WriteByte(SOH)

	return out.Bytes(), nil
}

// ParseFrame consumes one complete frame, extracts all (tag, value) pairs
// in order, locates tag 35 and tag 34, detects tag 43, and copies the raw
// bytes. It returns ErrMissingRequiredField, ErrInvalidSeqNum,
// ErrMalformedField, or ErrParseException on failure.
func ParseFrame(data []byte) (*InboundMessage, error) {
	raw := make([]byte, len(data))
	copy(raw, data)

	groups := splitGroups(data)

	fields := make([]Field, 0, len(groups))
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		eq := bytes.IndexByte(g, '=')
		if eq < 0 {
			return nil, ErrMalformedField
		}
		tagStr := string(g[:eq])
		tag, err := strconv.Atoi(tagStr)
		if err != nil {
			return nil, ErrMalformedField
		}
		fields = append(fields, Field{Tag: tag, Value: string(g[eq+1:])})
	}

	msgType, hasMsgType := "", false
	seqNumStr, hasSeqNum := "", false
	possDup := false

	for _, f := range fields {
		switch f.Tag {
		case TagMsgType:
			if !hasMsgType {
				msgType = f.Value
				hasMsgType = true
			}
		case TagMsgSeqNum:
			if !hasSeqNum {
				seqNumStr = f.Value
				hasSeqNum = true
			}
		case TagPossDupFlag:
			possDup = f.Value == "Y"
		}
	}

	if !hasMsgType || !hasSeqNum {
		return nil, ErrMissingRequiredField
	}

	seqNum, err := strconv.Atoi(seqNumStr)
	if err != nil || seqNum < 0 {
		return nil, ErrInvalidSeqNum
	}

	return &InboundMessage{
		MsgType:  msgType,
		SeqNum:   seqNum,
		PossDup:  possDup,
		Fields:   fields,
		Raw:      raw,
		Valid:    true,
		Complete: true,
	}, nil
}

// splitGroups splits a frame on SOH bytes, dropping a trailing empty group
// produced by a terminal SOH.
func splitGroups(data []byte) [][]byte {
	groups := bytes.Split(data, []byte{SOH})
	if n := len(groups); n > 0 && len(groups[n-1]) == 0 {
		groups = groups[:n-1]
	}
	return groups
}

// SplitStream consumes a buffer that may contain zero or more concatenated
// frames plus a trailing partial frame. It returns every complete frame and
// the unparsed tail. Frames are located by their "8=" BeginString prefix and
// framed strictly by the declared body length (tag 9), rather than by the
// weaker "next 8=FIX prefix or trailing SOH" heuristic: this is the
// strengthening spec §4.1's Rationale/§9 Open Questions flags as the
// correct approach when field values might themselves contain "8=FIX"-like
// substrings.
func SplitStream(buffer []byte) (frames [][]byte, remainder []byte) {
	remainder = buffer

	for {
		idx := bytes.Index(remainder, []byte("8="))
		if idx < 0 {
			break
		}
		if idx > 0 {
			// Discard leading garbage that precedes the next BeginString.
			remainder = remainder[idx:]
		}

		soh1 := bytes.IndexByte(remainder, SOH)
		if soh1 < 0 {
			break // incomplete: wait for more data
		}

		rest := remainder[soh1+1:]
		if !bytes.HasPrefix(rest, []byte("9=")) {
			// Not a well-formed frame start; skip a byte and keep scanning
			// for the next plausible "8=" so one corrupt frame cannot wedge
			// the splitter forever.
			remainder = remainder[1:]
			continue
		}

		soh2 := bytes.IndexByte(rest, SOH)
		if soh2 < 0 {
			break // incomplete: length field not yet terminated
		}

		lenStr := string(rest[2:soh2])
		bodyLen, err := strconv.Atoi(lenStr)
		if err != nil || bodyLen < 0 {
			remainder = remainder[1:]
			continue
		}

		headerLen := soh1 + 1 + soh2 + 1
		bodyEnd := headerLen + bodyLen
		if len(remainder) < bodyEnd {
			break // incomplete: body not fully arrived
		}

		afterBody := remainder[bodyEnd:]
		if !bytes.HasPrefix(afterBody, []byte("10=")) {
			remainder = remainder[1:]
			continue
		}

		soh3 := bytes.IndexByte(afterBody, SOH)
		if soh3 < 0 {
			break // incomplete: checksum field not yet terminated
		}

		frameEnd := bodyEnd + soh3 + 1
		frame := make([]byte, frameEnd)
		copy(frame, remainder[:frameEnd])
		frames = append(frames, frame)
		remainder = remainder[frameEnd:]
	}

	return frames, remainder
}
