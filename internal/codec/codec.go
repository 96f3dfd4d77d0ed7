// Package codec implements the mesh wire format: length-delimited
// frames on streams, self-contained datagrams on UDP, JSON message
// bodies, and optional transparent zstd compression.
package codec

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/Klingon-tech/klingnet-mesh/pkg/mesherr"
	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
	"github.com/klauspost/compress/zstd"
)

const (
	// MaxFrameSize bounds stream frames. Oversized length prefixes are
	// treated as protocol violations, not allocation requests.
	MaxFrameSize = 16 << 20

	// MaxDatagramSize bounds the UDP path.
	MaxDatagramSize = 65536

	// lenPrefixSize is the big-endian length prefix on stream frames.
	lenPrefixSize = 4
)

// zstdMagic is the standard zstd frame magic. A compressed body is
// self-describing, so mixed meshes interoperate without negotiation.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// Codec encodes and decodes mesh messages. The zero value is usable;
// Compress toggles zstd on encode (decode always auto-detects).
type Codec struct {
	Compress bool
}

// EncodeMessage serializes a message body (no length prefix).
func (c *Codec) EncodeMessage(m *types.Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, mesherr.Wrap(mesherr.KindJson, err, "marshal message")
	}
	if c.Compress {
		data = zstdEncoder.EncodeAll(data, nil)
	}
	return data, nil
}

// DecodeMessage deserializes a message body, transparently
// decompressing zstd-framed payloads.
func (c *Codec) DecodeMessage(data []byte) (*types.Message, error) {
	if len(data) >= len(zstdMagic) &&
		data[0] == zstdMagic[0] && data[1] == zstdMagic[1] &&
		data[2] == zstdMagic[2] && data[3] == zstdMagic[3] {
		plain, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, mesherr.Wrap(mesherr.KindSerialization, err, "decompress message")
		}
		data = plain
	}
	var m types.Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, mesherr.Wrap(mesherr.KindJson, err, "unmarshal message")
	}
	if err := m.Validate(); err != nil {
		return nil, mesherr.Wrap(mesherr.KindSerialization, err, "invalid message")
	}
	return &m, nil
}

// WriteFrame writes one length-delimited frame. Returns the total
// bytes written including the prefix.
func (c *Codec) WriteFrame(w io.Writer, m *types.Message) (int, error) {
	body, err := c.EncodeMessage(m)
	if err != nil {
		return 0, err
	}
	if len(body) > MaxFrameSize {
		return 0, mesherr.Serialization("frame too large: %d bytes", len(body))
	}
	var prefix [lenPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))
	if _, err := w.Write(prefix[:]); err != nil {
		return 0, mesherr.Wrap(mesherr.KindIo, err, "write frame prefix")
	}
	if _, err := w.Write(body); err != nil {
		return 0, mesherr.Wrap(mesherr.KindIo, err, "write frame body")
	}
	return lenPrefixSize + len(body), nil
}

// ReadFrame reads one length-delimited frame and decodes it.
func (c *Codec) ReadFrame(r io.Reader) (*types.Message, int, error) {
	var prefix [lenPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.EOF {
			return nil, 0, mesherr.ErrConnectionClosed
		}
		return nil, 0, mesherr.Wrap(mesherr.KindIo, err, "read frame prefix")
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > MaxFrameSize {
		return nil, 0, mesherr.Protocol("frame length %d exceeds maximum %d", n, MaxFrameSize)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, 0, mesherr.Wrap(mesherr.KindIo, err, "read frame body")
	}
	m, err := c.DecodeMessage(body)
	if err != nil {
		return nil, 0, err
	}
	return m, lenPrefixSize + int(n), nil
}

// EncodeDatagram serializes a message for the UDP path, rejecting
// bodies over the datagram limit.
func (c *Codec) EncodeDatagram(m *types.Message) ([]byte, error) {
	body, err := c.EncodeMessage(m)
	if err != nil {
		return nil, err
	}
	if len(body) > MaxDatagramSize {
		return nil, mesherr.Serialization("datagram too large: %d bytes", len(body))
	}
	return body, nil
}

// EncodePeer serializes a discovery announcement.
func EncodePeer(p *types.Peer) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, mesherr.Wrap(mesherr.KindJson, err, "marshal peer")
	}
	return data, nil
}

// DecodePeer deserializes a discovery announcement.
func DecodePeer(data []byte) (*types.Peer, error) {
	var p types.Peer
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, mesherr.Wrap(mesherr.KindJson, err, "unmarshal peer")
	}
	return &p, nil
}
