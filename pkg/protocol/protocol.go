// Package protocol implements the sync protocol: the three message types
// exchanged between a source and a destination endpoint over a bidirectional
// byte stream, each framed with a length prefix.
//
//  1. destination → source: Index  ("this is what I have")
//  2. source → destination: Delta  (one instruction tape per file)
//  3. destination → source: Ack    (per-file outcome, advisory)
package protocol

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/tridge-sync/tsync/pkg/block"
	"github.com/tridge-sync/tsync/pkg/delta"
	"github.com/tridge-sync/tsync/pkg/tsyncerrors"
	"github.com/tridge-sync/tsync/pkg/tsyncinfo"
)

// MessageType tags a frame's payload.
type MessageType uint8

const (
	// MessageIndex carries a serialized index file.
	MessageIndex MessageType = 1
	// MessageDelta carries a serialized delta file, one per source file.
	MessageDelta MessageType = 2
	// MessageAck carries a per-file outcome report.
	MessageAck MessageType = 3
)

// maxFrameSize bounds a single frame to guard against a corrupt or
// adversarial length prefix demanding an unreasonable allocation.
const maxFrameSize = 1 << 30

// Frame is one length-prefixed protocol message: a type tag and payload.
type Frame struct {
	Type    MessageType
	Payload []byte
}

// WriteFrame writes a single frame to w: a 1-byte type, a 4-byte
// big-endian length, then the payload.
func WriteFrame(w io.Writer, f Frame) error {
	header := make([]byte, 5)
	header[0] = byte(f.Type)
	binary.BigEndian.PutUint32(header[1:], uint32(len(f.Payload)))
	if _, err := w.Write(header); err != nil {
		return tsyncerrors.IO(errors.Wrap(err, "unable to write frame header"))
	}
	if _, err := w.Write(f.Payload); err != nil {
		return tsyncerrors.IO(errors.Wrap(err, "unable to write frame payload"))
	}
	return nil
}

// ReadFrame reads a single frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return Frame{}, tsyncerrors.IO(errors.Wrap(err, "unable to read frame header"))
	}
	length := binary.BigEndian.Uint32(header[1:])
	if length > maxFrameSize {
		return Frame{}, tsyncerrors.Format(errors.Errorf("frame length %d exceeds maximum", length))
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, tsyncerrors.IO(errors.Wrap(err, "unable to read frame payload"))
	}
	return Frame{Type: MessageType(header[0]), Payload: payload}, nil
}

// AckOutcome reports the result of applying one file's delta.
type AckOutcome uint8

const (
	// AckSuccess reports that a file's delta applied cleanly.
	AckSuccess AckOutcome = 0
	// AckFailure reports that a file's delta failed to apply; the source
	// continues with the remaining files regardless.
	AckFailure AckOutcome = 1
)

// Ack is the destination's per-file report back to the source.
type Ack struct {
	FileID  uint16
	Outcome AckOutcome
	Detail  string
}

// WriteAck frames and writes an Ack message.
func WriteAck(w io.Writer, ack Ack) error {
	detail := []byte(ack.Detail)
	payload := make([]byte, 3+len(detail))
	binary.BigEndian.PutUint16(payload[0:2], ack.FileID)
	payload[2] = byte(ack.Outcome)
	copy(payload[3:], detail)
	return WriteFrame(w, Frame{Type: MessageAck, Payload: payload})
}

// ReadAck reads and decodes an Ack payload. The caller is responsible for
// having already read a Frame of type MessageAck.
func ReadAck(payload []byte) (Ack, error) {
	if len(payload) < 3 {
		return Ack{}, tsyncerrors.Format(errors.New("ack payload too short"))
	}
	return Ack{
		FileID:  binary.BigEndian.Uint16(payload[0:2]),
		Outcome: AckOutcome(payload[2]),
		Detail:  string(payload[3:]),
	}, nil
}

// SendIndex writes idx as a MessageIndex frame.
func SendIndex(w io.Writer, idx *block.Index) error {
	var buf bytes.Buffer
	if err := block.Write(&buf, idx); err != nil {
		return tsyncerrors.Format(errors.Wrap(err, "unable to encode index"))
	}
	return WriteFrame(w, Frame{Type: MessageIndex, Payload: buf.Bytes()})
}

// ReceiveIndex reads a MessageIndex frame's payload as an Index.
func ReceiveIndex(payload []byte) (*block.Index, error) {
	idx, err := block.Read(bytes.NewReader(payload))
	if err != nil {
		return nil, tsyncerrors.Format(errors.Wrap(err, "unable to decode index"))
	}
	return idx, nil
}

// SendDeltaFile writes a single-file-mode delta as a MessageDelta frame.
func SendDeltaFile(w io.Writer, blockSize uint32, instructions []delta.Instruction) error {
	var buf bytes.Buffer
	if err := delta.WriteFile(&buf, blockSize, instructions); err != nil {
		return tsyncerrors.Format(errors.Wrap(err, "unable to encode delta"))
	}
	return WriteFrame(w, Frame{Type: MessageDelta, Payload: buf.Bytes()})
}

// SendDelta writes a directory-mode delta (one instruction tape per named
// file) as a MessageDelta frame.
func SendDelta(w io.Writer, blockSize uint32, files []delta.File) error {
	var buf bytes.Buffer
	if err := delta.Write(&buf, blockSize, files, nil); err != nil {
		return tsyncerrors.Format(errors.Wrap(err, "unable to encode delta"))
	}
	return WriteFrame(w, Frame{Type: MessageDelta, Payload: buf.Bytes()})
}

// ReceiveDeltaFile reads a MessageDelta frame's payload.
func ReceiveDeltaFile(payload []byte) (blockSize uint32, files []delta.File, err error) {
	blockSize, files, err = delta.Read(bytes.NewReader(payload))
	if err != nil {
		return 0, nil, tsyncerrors.Format(errors.Wrap(err, "unable to decode delta"))
	}
	return blockSize, files, nil
}

// Handshake exchanges and verifies protocol versions over rw before any
// Index/Delta/Ack traffic is sent. Both peers call this simultaneously; the
// version is sent before it is received to avoid a deadlock on unbuffered
// pipes.
func Handshake(rw io.ReadWriter) error {
	if err := tsyncinfo.SendVersion(rw); err != nil {
		return err
	}
	return tsyncinfo.ReceiveAndCompareVersion(rw)
}
