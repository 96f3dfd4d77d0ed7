package types

import (
	"encoding/json"
	"testing"
)

func TestMessage_RoundTrip(t *testing.T) {
	from := NewNodeID()
	to := NewNodeID()

	cases := []struct {
		name string
		msg  *Message
	}{
		{"direct", NewMessage(from, []byte("payload"))},
		{"broadcast", NewBroadcast(from, []byte("hello mesh"))},
		{"unicast", NewUnicast(from, to, []byte("q"))},
		{"empty payload", NewBroadcast(from, nil)},
		{"signed", func() *Message {
			m := NewUnicast(from, to, []byte("x"))
			m.Signature = []byte{1, 2, 3, 4}
			return m
		}()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.msg)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var got Message
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if !got.Equal(tc.msg) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, tc.msg)
			}
		})
	}
}

func TestMessage_Validate(t *testing.T) {
	from := NewNodeID()

	m := NewBroadcast(from, []byte("ok"))
	if err := m.Validate(); err != nil {
		t.Errorf("valid broadcast rejected: %v", err)
	}

	// Unicast without a destination is malformed.
	m = NewMessage(from, nil)
	m.Kind = KindUnicast
	if err := m.Validate(); err == nil {
		t.Error("unicast without destination accepted")
	}

	m = NewMessage(from, nil)
	m.Kind = KindMulticast
	if err := m.Validate(); err == nil {
		t.Error("multicast without destination accepted")
	}

	m = NewMessage(from, nil)
	m.Kind = MessageKind("bogus")
	if err := m.Validate(); err == nil {
		t.Error("bogus kind accepted")
	}

	m = NewMessage(from, nil)
	m.ProtocolTag = ProtocolTag("bogus")
	if err := m.Validate(); err == nil {
		t.Error("bogus protocol tag accepted")
	}
}

func TestMessage_Expired(t *testing.T) {
	m := NewBroadcast(NewNodeID(), nil)

	m.TTL, m.Hops = 4, 0
	if m.Expired() {
		t.Error("hops 0 of ttl 4 reported expired")
	}
	m.TTL, m.Hops = 4, 4
	if !m.Expired() {
		t.Error("hops 4 of ttl 4 not expired")
	}
	m.TTL, m.Hops = 0, 0
	if !m.Expired() {
		t.Error("ttl 0 not expired at origin")
	}
}

func TestMessage_Forward(t *testing.T) {
	from := NewNodeID()
	m := NewBroadcast(from, []byte("fwd"))
	m.TTL = 8
	m.Hops = 3

	out := m.Forward(TagFlooding)
	if out.ID != m.ID {
		t.Error("forward changed message id")
	}
	if out.From != m.From {
		t.Error("forward rewrote origin")
	}
	if out.Hops != m.Hops+1 {
		t.Errorf("forward hops = %d, want %d", out.Hops, m.Hops+1)
	}
	if out.ProtocolTag != TagFlooding {
		t.Errorf("forward tag = %q, want flooding", out.ProtocolTag)
	}
	if m.Hops != 3 {
		t.Error("forward mutated the input message")
	}

	// Clone independence.
	out.Payload[0] = 'X'
	if m.Payload[0] == 'X' {
		t.Error("forward shares payload backing array with input")
	}
}

func TestMessage_SigningBytesExcludesTransitFields(t *testing.T) {
	m := NewUnicast(NewNodeID(), NewNodeID(), []byte("sign me"))
	a := m.SigningBytes()

	fwd := m.Forward(TagGossip)
	b := fwd.SigningBytes()

	if string(a) != string(b) {
		t.Error("signing bytes changed after forwarding")
	}

	mut := m.Clone()
	mut.Payload = []byte("tampered")
	if string(a) == string(mut.SigningBytes()) {
		t.Error("signing bytes ignore payload")
	}
}

func TestParseProtocolTag(t *testing.T) {
	for _, s := range []string{"flooding", "gossip", "consensus", "direct"} {
		if _, err := ParseProtocolTag(s); err != nil {
			t.Errorf("ParseProtocolTag(%q): %v", s, err)
		}
	}
	if _, err := ParseProtocolTag("carrier-pigeon"); err == nil {
		t.Error("invalid tag accepted")
	}
}
