package speech

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// 火山引擎流式语音协议的二进制帧：
// 4 字节头 | [序号] | [事件, 会话 id, 连接 id] | [错误码] | 负载长度 | 负载

const protocolVersion = 0b0001

type frameType uint8

const (
	frameFullClient      frameType = 0b0001
	frameAudioOnlyClient frameType = 0b0010
	frameFullServer      frameType = 0b1001
	frameAudioOnlyServer frameType = 0b1011
	frameError           frameType = 0b1111
)

type frameFlags uint8

const (
	flagNoSequence       frameFlags = 0b0000
	flagPositiveSequence frameFlags = 0b0001
	flagLastNoSequence   frameFlags = 0b0010
	flagNegativeSequence frameFlags = 0b0011
	flagWithEvent        frameFlags = 0b0100
)

type serialization uint8

const (
	serializationNone serialization = 0b0000
	serializationJSON serialization = 0b0001
)

type compression uint8

const (
	compressionNone compression = 0b0000
	compressionGzip compression = 0b0001
)

type event int32

const (
	eventStartConnection    event = 1
	eventFinishConnection   event = 2
	eventConnectionStarted  event = 50
	eventConnectionFailed   event = 51
	eventConnectionFinished event = 52
	eventSessionStarted     event = 150
	eventSessionFinished    event = 152
	eventSessionFailed      event = 153
)

type frame struct {
	kind          frameType
	flags         frameFlags
	serialization serialization
	compression   compression
	sequence      int32
	event         event
	sessionID     string
	connectID     string
	errorCode     uint32
	payload       []byte
}

// newRequestFrame builds a full client request carrying a JSON payload.
func newRequestFrame(payload []byte) *frame {
	return &frame{
		kind:          frameFullClient,
		flags:         flagNoSequence,
		serialization: serializationJSON,
		compression:   compressionNone,
		payload:       payload,
	}
}

func (f *frame) hasSequence() bool {
	switch f.flags & 0b0011 {
	case flagPositiveSequence, flagNegativeSequence:
		return true
	default:
		return false
	}
}

func (f *frame) hasEvent() bool { return f.flags&flagWithEvent == flagWithEvent }

// last 判断是否为最后一包。
func (f *frame) last() bool {
	switch f.flags & 0b0011 {
	case flagLastNoSequence, flagNegativeSequence:
		return true
	default:
		return f.sequence < 0
	}
}

func (f *frame) body() ([]byte, error) {
	return decompress(f.payload, f.compression)
}

func (f *frame) marshal() []byte {
	var buf bytes.Buffer
	buf.WriteByte(protocolVersion<<4 | 0b0001)
	buf.WriteByte(uint8(f.kind)<<4 | uint8(f.flags))
	buf.WriteByte(uint8(f.serialization)<<4 | uint8(f.compression))
	buf.WriteByte(0x00)

	writeU32 := func(v uint32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], v)
		buf.Write(b[:])
	}
	writeString := func(s string) {
		writeU32(uint32(len(s)))
		buf.WriteString(s)
	}

	if f.hasSequence() {
		writeU32(uint32(f.sequence))
	}
	if f.hasEvent() {
		writeU32(uint32(f.event))
		if !skipsSessionID(f.event) {
			writeString(f.sessionID)
		}
		if hasConnectID(f.event) {
			writeString(f.connectID)
		}
	}
	if f.kind == frameError {
		writeU32(f.errorCode)
	}
	writeU32(uint32(len(f.payload)))
	buf.Write(f.payload)
	return buf.Bytes()
}

func unmarshalFrame(data []byte) (*frame, error) {
	r := bytes.NewReader(data)

	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if version := header[0] >> 4; version != protocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", version)
	}
	// header size 以 4 字节为单位
	if extra := int(header[0]&0x0F)*4 - 4; extra > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(extra)); err != nil {
			return nil, fmt.Errorf("failed to read extended header: %w", err)
		}
	}

	f := &frame{
		kind:          frameType(header[1] >> 4),
		flags:         frameFlags(header[1] & 0x0F),
		serialization: serialization(header[2] >> 4),
		compression:   compression(header[2] & 0x0F),
	}

	readU32 := func(field string) (uint32, error) {
		var v uint32
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return 0, fmt.Errorf("failed to read %s: %w", field, err)
		}
		return v, nil
	}
	readString := func(field string) (string, error) {
		size, err := readU32(field + " size")
		if err != nil || size == 0 {
			return "", err
		}
		b := make([]byte, size)
		if _, err := io.ReadFull(r, b); err != nil {
			return "", fmt.Errorf("failed to read %s: %w", field, err)
		}
		return string(b), nil
	}

	var err error
	if f.hasSequence() {
		var seq uint32
		if seq, err = readU32("sequence"); err != nil {
			return nil, err
		}
		f.sequence = int32(seq)
	}
	if f.hasEvent() {
		var ev uint32
		if ev, err = readU32("event type"); err != nil {
			return nil, err
		}
		f.event = event(int32(ev))
		if !skipsSessionID(f.event) {
			if f.sessionID, err = readString("session id"); err != nil {
				return nil, err
			}
		}
		if hasConnectID(f.event) {
			if f.connectID, err = readString("connect id"); err != nil {
				return nil, err
			}
		}
	}
	if f.kind == frameError {
		if f.errorCode, err = readU32("error code"); err != nil {
			return nil, err
		}
	}

	size, err := readU32("payload size")
	if err != nil {
		return nil, err
	}
	if size > 0 {
		f.payload = make([]byte, size)
		if _, err := io.ReadFull(r, f.payload); err != nil {
			return nil, fmt.Errorf("failed to read payload (expected %d bytes): %w", size, err)
		}
	}
	return f, nil
}

func skipsSessionID(e event) bool {
	switch e {
	case eventStartConnection, eventFinishConnection,
		eventConnectionStarted, eventConnectionFailed, eventConnectionFinished:
		return true
	default:
		return false
	}
}

func hasConnectID(e event) bool {
	switch e {
	case eventConnectionStarted, eventConnectionFailed, eventConnectionFinished:
		return true
	default:
		return false
	}
}
