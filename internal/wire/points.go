// Package wire holds the byte encodings exchanged with clients: compressed
// curve points, public keys and the protobuf request/response messages.
//
// Points use the compressed ZCash format (48-byte G1, 96-byte G2). Fixed-size
// arrays are plain concatenations. A public key is laid out as
//
//	id u64le | bls_pk | sk_li | sk_li_minus0 | len u64le | sk_li_by_z[len] | sk_li_by_tau
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"

	"github.com/zmlAEQ/silent-threshold/internal/silent/ste"
)

const (
	G1Size = bls12381.SizeOfG1AffineCompressed
	G2Size = bls12381.SizeOfG2AffineCompressed

	// MaxCommittee bounds the SkLiByZ length accepted from the wire.
	MaxCommittee = 1 << 16
)

var ErrEncoding = errors.New("wire: malformed encoding")

func EncodeG1(p *bls12381.G1Affine) []byte {
	b := p.Bytes()
	return b[:]
}

func EncodeG2(p *bls12381.G2Affine) []byte {
	b := p.Bytes()
	return b[:]
}

// DecodeG1 parses a compressed G1 point, checking curve and subgroup
// membership.
func DecodeG1(b []byte) (bls12381.G1Affine, error) {
	var p bls12381.G1Affine
	if len(b) != G1Size {
		return p, fmt.Errorf("%w: G1 point of %d bytes", ErrEncoding, len(b))
	}
	if _, err := p.SetBytes(b); err != nil {
		return p, fmt.Errorf("%w: G1 point: %v", ErrEncoding, err)
	}
	return p, nil
}

func DecodeG2(b []byte) (bls12381.G2Affine, error) {
	var p bls12381.G2Affine
	if len(b) != G2Size {
		return p, fmt.Errorf("%w: G2 point of %d bytes", ErrEncoding, len(b))
	}
	if _, err := p.SetBytes(b); err != nil {
		return p, fmt.Errorf("%w: G2 point: %v", ErrEncoding, err)
	}
	return p, nil
}

func EncodeSA1(sa1 *[2]bls12381.G1Affine) []byte {
	out := make([]byte, 0, 2*G1Size)
	for i := range sa1 {
		out = append(out, EncodeG1(&sa1[i])...)
	}
	return out
}

func DecodeSA1(b []byte) ([2]bls12381.G1Affine, error) {
	var out [2]bls12381.G1Affine
	if len(b) != len(out)*G1Size {
		return out, fmt.Errorf("%w: sa1 of %d bytes", ErrEncoding, len(b))
	}
	for i := range out {
		p, err := DecodeG1(b[i*G1Size : (i+1)*G1Size])
		if err != nil {
			return out, err
		}
		out[i] = p
	}
	return out, nil
}

func EncodeSA2(sa2 *[6]bls12381.G2Affine) []byte {
	out := make([]byte, 0, 6*G2Size)
	for i := range sa2 {
		out = append(out, EncodeG2(&sa2[i])...)
	}
	return out
}

func DecodeSA2(b []byte) ([6]bls12381.G2Affine, error) {
	var out [6]bls12381.G2Affine
	if len(b) != len(out)*G2Size {
		return out, fmt.Errorf("%w: sa2 of %d bytes", ErrEncoding, len(b))
	}
	for i := range out {
		p, err := DecodeG2(b[i*G2Size : (i+1)*G2Size])
		if err != nil {
			return out, err
		}
		out[i] = p
	}
	return out, nil
}

// EncodePublicKey serialises pk in the layout described in the package doc.
func EncodePublicKey(pk *ste.PublicKey) []byte {
	out := make([]byte, 0, 8+4*G1Size+8+len(pk.SkLiByZ)*G1Size)
	out = binary.LittleEndian.AppendUint64(out, uint64(pk.ID))
	out = append(out, EncodeG1(&pk.BLSPK)...)
	out = append(out, EncodeG1(&pk.SkLi)...)
	out = append(out, EncodeG1(&pk.SkLiMinus0)...)
	out = binary.LittleEndian.AppendUint64(out, uint64(len(pk.SkLiByZ)))
	for i := range pk.SkLiByZ {
		out = append(out, EncodeG1(&pk.SkLiByZ[i])...)
	}
	out = append(out, EncodeG1(&pk.SkLiByTau)...)
	return out
}

// DecodePublicKey parses the output of EncodePublicKey. Trailing bytes are an
// error.
func DecodePublicKey(b []byte) (*ste.PublicKey, error) {
	r := reader{b: b}
	id := r.u64()
	pk := &ste.PublicKey{}
	pk.BLSPK = r.g1()
	pk.SkLi = r.g1()
	pk.SkLiMinus0 = r.g1()
	n := r.u64()
	if r.err == nil && (n > MaxCommittee || n*G1Size > uint64(len(r.b))) {
		r.err = fmt.Errorf("%w: sk_li_by_z length %d", ErrEncoding, n)
	}
	if r.err == nil {
		pk.SkLiByZ = make([]bls12381.G1Affine, n)
		for i := range pk.SkLiByZ {
			pk.SkLiByZ[i] = r.g1()
		}
	}
	pk.SkLiByTau = r.g1()
	if r.err != nil {
		return nil, r.err
	}
	if len(r.b) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrEncoding, len(r.b))
	}
	if id >= MaxCommittee {
		return nil, fmt.Errorf("%w: party id %d", ErrEncoding, id)
	}
	pk.ID = int(id)
	return pk, nil
}

// reader consumes fixed-size fields and remembers the first error.
type reader struct {
	b   []byte
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.b) < n {
		r.err = fmt.Errorf("%w: truncated", ErrEncoding)
		return nil
	}
	out := r.b[:n]
	r.b = r.b[n:]
	return out
}

func (r *reader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) g1() bls12381.G1Affine {
	b := r.take(G1Size)
	if b == nil {
		return bls12381.G1Affine{}
	}
	p, err := DecodeG1(b)
	if err != nil {
		r.err = err
	}
	return p
}
