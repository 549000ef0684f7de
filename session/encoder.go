package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	sessionFormatVersionCurrent = 1
)

func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionCurrent)

	if len(s.UserID) > 255 {
		return nil, errors.New("userID too long")
	}
	buf.WriteByte(byte(len(s.UserID)))
	buf.WriteString(s.UserID)

	if len(s.OrderRef) > 255 {
		return nil, errors.New("orderRef too long")
	}
	buf.WriteByte(byte(len(s.OrderRef)))
	buf.WriteString(s.OrderRef)

	buf.Write(s.IPHash[:])
	buf.Write(s.UserAgentHash[:])

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent {
		return nil, errors.New("invalid session version")
	}

	s := &Session{}

	userLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	userID := make([]byte, userLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, err
	}
	s.UserID = string(userID)

	refLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	orderRef := make([]byte, refLen)
	if _, err := io.ReadFull(reader, orderRef); err != nil {
		return nil, err
	}
	s.OrderRef = string(orderRef)

	if _, err := io.ReadFull(reader, s.IPHash[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, s.UserAgentHash[:]); err != nil {
		return nil, err
	}

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing session bytes")
	}

	return s, nil
}
