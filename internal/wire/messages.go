package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// PKRequest asks a node for its public key as party ID of a committee of N.
type PKRequest struct {
	ID uint64 // 1
	N  uint64 // 2
}

// EncryptRequest encrypts Msg for threshold T under the aggregate of PKs.
// When PKs is empty the node aggregates its roster instead.
type EncryptRequest struct {
	Msg []byte   // 1
	PKs [][]byte // 2, encoded public keys
	T   uint64   // 3
	N   uint64   // 4
}

// EncryptResponse carries the sealed payload and the public ciphertext parts.
type EncryptResponse struct {
	Enc     []byte // 1, AES-GCM ciphertext
	SA1     []byte // 2
	SA2     []byte // 3
	IV      []byte // 4, GCM nonce
	GammaG2 []byte // 5
}

// GammaG2Request asks a node for its decryption share of GammaG2.
type GammaG2Request struct {
	GammaG2 []byte // 1
}

// VerifyPartRequest checks PartDec against PK for GammaG2.
type VerifyPartRequest struct {
	PK      []byte // 1
	GammaG2 []byte // 2
	PartDec []byte // 3
}

// DecryptionShare is one party's partial decryption, a compressed G2 point.
type DecryptionShare struct {
	Index uint64 // 1
	Share []byte // 2
}

// DecryptRequest recovers the payload of an EncryptResponse. Parts is a map
// field on the wire (party index → share). The dummy share is filled in by
// the node from GammaG2 and need not be sent.
type DecryptRequest struct {
	Enc     []byte            // 1
	PKs     [][]byte          // 2
	Parts   []DecryptionShare // 3
	SA1     []byte            // 4
	SA2     []byte            // 5
	IV      []byte            // 6
	T       uint64            // 7
	N       uint64            // 8
	GammaG2 []byte            // 9
}

// IsValidRequest checks the hints of an encoded public key.
type IsValidRequest struct {
	PK []byte // 1
	N  uint64 // 2
}

// Response is the generic single-payload reply.
type Response struct {
	Result []byte // 1
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// fields walks a protobuf message and calls fn for every field. fn returns the
// number of bytes it consumed, or -1 to let the field be skipped.
func fields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrEncoding, protowire.ParseError(n))
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return fmt.Errorf("%w: %v", ErrEncoding, protowire.ParseError(m))
			}
		}
		b = b[m:]
	}
	return nil
}

func bytesField(typ protowire.Type, b []byte, dst *[]byte) (int, error) {
	if typ != protowire.BytesType {
		return 0, fmt.Errorf("%w: wire type %d for bytes field", ErrEncoding, typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, fmt.Errorf("%w: %v", ErrEncoding, protowire.ParseError(n))
	}
	*dst = append([]byte(nil), v...)
	return n, nil
}

func repeatedBytesField(typ protowire.Type, b []byte, dst *[][]byte) (int, error) {
	var v []byte
	n, err := bytesField(typ, b, &v)
	if err != nil {
		return 0, err
	}
	*dst = append(*dst, v)
	return n, nil
}

func uintField(typ protowire.Type, b []byte, dst *uint64) (int, error) {
	if typ != protowire.VarintType {
		return 0, fmt.Errorf("%w: wire type %d for varint field", ErrEncoding, typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, fmt.Errorf("%w: %v", ErrEncoding, protowire.ParseError(n))
	}
	*dst = v
	return n, nil
}

func (m *PKRequest) Marshal() []byte {
	var b []byte
	b = appendUint(b, 1, m.ID)
	b = appendUint(b, 2, m.N)
	return b
}

func (m *PKRequest) Unmarshal(b []byte) error {
	*m = PKRequest{}
	return fields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return uintField(typ, b, &m.ID)
		case 2:
			return uintField(typ, b, &m.N)
		}
		return -1, nil
	})
}

func (m *EncryptRequest) Marshal() []byte {
	var b []byte
	b = appendBytes(b, 1, m.Msg)
	for _, pk := range m.PKs {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, pk)
	}
	b = appendUint(b, 3, m.T)
	b = appendUint(b, 4, m.N)
	return b
}

func (m *EncryptRequest) Unmarshal(b []byte) error {
	*m = EncryptRequest{}
	return fields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return bytesField(typ, b, &m.Msg)
		case 2:
			return repeatedBytesField(typ, b, &m.PKs)
		case 3:
			return uintField(typ, b, &m.T)
		case 4:
			return uintField(typ, b, &m.N)
		}
		return -1, nil
	})
}

func (m *EncryptResponse) Marshal() []byte {
	var b []byte
	b = appendBytes(b, 1, m.Enc)
	b = appendBytes(b, 2, m.SA1)
	b = appendBytes(b, 3, m.SA2)
	b = appendBytes(b, 4, m.IV)
	b = appendBytes(b, 5, m.GammaG2)
	return b
}

func (m *EncryptResponse) Unmarshal(b []byte) error {
	*m = EncryptResponse{}
	return fields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return bytesField(typ, b, &m.Enc)
		case 2:
			return bytesField(typ, b, &m.SA1)
		case 3:
			return bytesField(typ, b, &m.SA2)
		case 4:
			return bytesField(typ, b, &m.IV)
		case 5:
			return bytesField(typ, b, &m.GammaG2)
		}
		return -1, nil
	})
}

func (m *GammaG2Request) Marshal() []byte { return appendBytes(nil, 1, m.GammaG2) }

func (m *GammaG2Request) Unmarshal(b []byte) error {
	*m = GammaG2Request{}
	return fields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return bytesField(typ, b, &m.GammaG2)
		}
		return -1, nil
	})
}

func (m *VerifyPartRequest) Marshal() []byte {
	var b []byte
	b = appendBytes(b, 1, m.PK)
	b = appendBytes(b, 2, m.GammaG2)
	b = appendBytes(b, 3, m.PartDec)
	return b
}

func (m *VerifyPartRequest) Unmarshal(b []byte) error {
	*m = VerifyPartRequest{}
	return fields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return bytesField(typ, b, &m.PK)
		case 2:
			return bytesField(typ, b, &m.GammaG2)
		case 3:
			return bytesField(typ, b, &m.PartDec)
		}
		return -1, nil
	})
}

func (s *DecryptionShare) marshal() []byte {
	var b []byte
	b = appendUint(b, 1, s.Index)
	b = appendBytes(b, 2, s.Share)
	return b
}

func (s *DecryptionShare) unmarshal(b []byte) error {
	*s = DecryptionShare{}
	return fields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return uintField(typ, b, &s.Index)
		case 2:
			return bytesField(typ, b, &s.Share)
		}
		return -1, nil
	})
}

func (m *DecryptRequest) Marshal() []byte {
	var b []byte
	b = appendBytes(b, 1, m.Enc)
	for _, pk := range m.PKs {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, pk)
	}
	for i := range m.Parts {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Parts[i].marshal())
	}
	b = appendBytes(b, 4, m.SA1)
	b = appendBytes(b, 5, m.SA2)
	b = appendBytes(b, 6, m.IV)
	b = appendUint(b, 7, m.T)
	b = appendUint(b, 8, m.N)
	b = appendBytes(b, 9, m.GammaG2)
	return b
}

func (m *DecryptRequest) Unmarshal(b []byte) error {
	*m = DecryptRequest{}
	return fields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return bytesField(typ, b, &m.Enc)
		case 2:
			return repeatedBytesField(typ, b, &m.PKs)
		case 3:
			var raw []byte
			n, err := bytesField(typ, b, &raw)
			if err != nil {
				return 0, err
			}
			var s DecryptionShare
			if err := s.unmarshal(raw); err != nil {
				return 0, err
			}
			m.Parts = append(m.Parts, s)
			return n, nil
		case 4:
			return bytesField(typ, b, &m.SA1)
		case 5:
			return bytesField(typ, b, &m.SA2)
		case 6:
			return bytesField(typ, b, &m.IV)
		case 7:
			return uintField(typ, b, &m.T)
		case 8:
			return uintField(typ, b, &m.N)
		case 9:
			return bytesField(typ, b, &m.GammaG2)
		}
		return -1, nil
	})
}

func (m *IsValidRequest) Marshal() []byte {
	var b []byte
	b = appendBytes(b, 1, m.PK)
	b = appendUint(b, 2, m.N)
	return b
}

func (m *IsValidRequest) Unmarshal(b []byte) error {
	*m = IsValidRequest{}
	return fields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return bytesField(typ, b, &m.PK)
		case 2:
			return uintField(typ, b, &m.N)
		}
		return -1, nil
	})
}

func (m *Response) Marshal() []byte { return appendBytes(nil, 1, m.Result) }

func (m *Response) Unmarshal(b []byte) error {
	*m = Response{}
	return fields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return bytesField(typ, b, &m.Result)
		}
		return -1, nil
	})
}
