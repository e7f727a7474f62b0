package speech

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

// 火山引擎语音 WebSocket 二进制帧：4 字节头 + 可选 sequence/event 元数据 + payload。
const protocolVersion = 0b0001

type messageType uint8

const (
	fullClientRequest       messageType = 0b0001
	fullServerResponse      messageType = 0b1001
	audioOnlyServerResponse messageType = 0b1011
	errorMessage            messageType = 0b1111
)

type messageFlags uint8

const (
	noSequence       messageFlags = 0b0000
	positiveSequence messageFlags = 0b0001
	lastNoSequence   messageFlags = 0b0010
	negativeSequence messageFlags = 0b0011
	withEvent        messageFlags = 0b0100
)

const (
	serializationNone uint8 = 0b0000
	serializationJSON uint8 = 0b0001

	compressionNone uint8 = 0b0000
	compressionGzip uint8 = 0b0001
)

type eventType int32

const (
	eventConnectionStarted  eventType = 50
	eventConnectionFailed   eventType = 51
	eventConnectionFinished eventType = 52
	eventSessionStarted     eventType = 150
	eventSessionFinished    eventType = 152
	eventSessionFailed      eventType = 153
	eventTTSResponse        eventType = 352
)

type frame struct {
	msgType       messageType
	flags         messageFlags
	serialization uint8
	compression   uint8

	sequence  int32
	event     eventType
	sessionID string
	connectID string
	errorCode uint32
	payload   []byte
}

func newClientRequest(payload []byte) *frame {
	return &frame{
		msgType:       fullClientRequest,
		flags:         noSequence,
		serialization: serializationJSON,
		compression:   compressionNone,
		payload:       payload,
	}
}

func (f *frame) hasSequence() bool {
	switch f.flags & 0b0011 {
	case positiveSequence, negativeSequence:
		return true
	}
	return false
}

func (f *frame) hasEvent() bool {
	return f.flags&withEvent == withEvent
}

// isLast 表示服务端标记了最后一包。
func (f *frame) isLast() bool {
	switch f.flags & 0b0011 {
	case lastNoSequence, negativeSequence:
		return true
	}
	return false
}

// body returns the payload with compression removed.
func (f *frame) body() ([]byte, error) {
	switch f.compression {
	case compressionNone:
		return f.payload, nil
	case compressionGzip:
		reader, err := gzip.NewReader(bytes.NewReader(f.payload))
		if err != nil {
			return nil, fmt.Errorf("gzip reader creation failed: %w", err)
		}
		defer reader.Close()
		return io.ReadAll(reader)
	default:
		return nil, fmt.Errorf("unsupported compression method: %d", f.compression)
	}
}

func (f *frame) marshal() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 16+len(f.payload)))
	buf.WriteByte(protocolVersion<<4 | 0b0001)
	buf.WriteByte(uint8(f.msgType)<<4 | uint8(f.flags))
	buf.WriteByte(f.serialization<<4 | f.compression)
	buf.WriteByte(0)

	if f.hasSequence() {
		_ = binary.Write(buf, binary.BigEndian, f.sequence)
	}
	if f.hasEvent() {
		_ = binary.Write(buf, binary.BigEndian, int32(f.event))
		if !eventSkipsSessionID(f.event) {
			writeSized(buf, f.sessionID)
		}
		if eventHasConnectID(f.event) {
			writeSized(buf, f.connectID)
		}
	}
	if f.msgType == errorMessage {
		_ = binary.Write(buf, binary.BigEndian, f.errorCode)
	}

	_ = binary.Write(buf, binary.BigEndian, uint32(len(f.payload)))
	buf.Write(f.payload)
	return buf.Bytes()
}

func unmarshalFrame(data []byte) (*frame, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("header data too short: got %d, need 4", len(data))
	}
	if version := data[0] >> 4; version != protocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", version)
	}

	f := &frame{
		msgType:       messageType(data[1] >> 4),
		flags:         messageFlags(data[1] & 0x0F),
		serialization: data[2] >> 4,
		compression:   data[2] & 0x0F,
	}

	headerSize := int(data[0]&0x0F) * 4
	if headerSize < 4 || len(data) < headerSize {
		return nil, fmt.Errorf("invalid header size: %d", headerSize)
	}
	r := bytes.NewReader(data[headerSize:])

	if f.hasSequence() {
		if err := binary.Read(r, binary.BigEndian, &f.sequence); err != nil {
			return nil, fmt.Errorf("failed to read sequence: %w", err)
		}
	}

	if f.hasEvent() {
		var event int32
		if err := binary.Read(r, binary.BigEndian, &event); err != nil {
			return nil, fmt.Errorf("failed to read event type: %w", err)
		}
		f.event = eventType(event)

		var err error
		if !eventSkipsSessionID(f.event) {
			if f.sessionID, err = readSized(r); err != nil {
				return nil, fmt.Errorf("failed to read session id: %w", err)
			}
		}
		if eventHasConnectID(f.event) {
			if f.connectID, err = readSized(r); err != nil {
				return nil, fmt.Errorf("failed to read connect id: %w", err)
			}
		}
	}

	if f.msgType == errorMessage {
		if err := binary.Read(r, binary.BigEndian, &f.errorCode); err != nil {
			return nil, fmt.Errorf("failed to read error code: %w", err)
		}
	}

	var size uint32
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return nil, fmt.Errorf("failed to read payload size: %w", err)
	}
	if int64(size) > int64(r.Len()) {
		return nil, fmt.Errorf("payload size %d exceeds remaining %d bytes", size, r.Len())
	}
	if size > 0 {
		f.payload = make([]byte, size)
		if _, err := io.ReadFull(r, f.payload); err != nil {
			return nil, fmt.Errorf("failed to read payload (expected %d bytes): %w", size, err)
		}
	}

	return f, nil
}

func writeSized(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.BigEndian, uint32(len(s)))
	buf.WriteString(s)
}

// readSized reads a length-prefixed string. The length is checked against the bytes left
// in r before anything is allocated.
func readSized(r *bytes.Reader) (string, error) {
	var size uint32
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return "", err
	}
	if size == 0 {
		return "", nil
	}
	if int64(size) > int64(r.Len()) {
		return "", fmt.Errorf("field size %d exceeds remaining %d bytes", size, r.Len())
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", err
	}
	return string(data), nil
}

func eventSkipsSessionID(event eventType) bool {
	switch event {
	case eventConnectionStarted, eventConnectionFailed, eventConnectionFinished:
		return true
	}
	return false
}

func eventHasConnectID(event eventType) bool {
	return eventSkipsSessionID(event)
}
