package wire

import (
	"context"
	"testing"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/zmlAEQ/silent-threshold/internal/silent/kzg"
	"github.com/zmlAEQ/silent-threshold/internal/silent/ste"
)

func testKey(t testing.TB, n, id int) *ste.PublicKey {
	t.Helper()
	srs, err := kzg.Setup(n, nil)
	require.NoError(t, err)
	c, err := ste.NewCommittee(srs, n)
	require.NoError(t, err)
	sk, err := ste.GenerateSecretKey(nil)
	require.NoError(t, err)
	pk, err := ste.NewOnlineDeriver(c).DerivePublicKey(context.Background(), sk, id)
	require.NoError(t, err)
	return pk
}

func TestPublicKey_RoundTrip(t *testing.T) {
	pk := testKey(t, 4, 3)
	b := EncodePublicKey(pk)
	require.Len(t, b, 8+3*G1Size+8+4*G1Size+G1Size)

	got, err := DecodePublicKey(b)
	require.NoError(t, err)
	require.Equal(t, pk.ID, got.ID)
	require.True(t, pk.BLSPK.Equal(&got.BLSPK))
	require.True(t, pk.SkLiByTau.Equal(&got.SkLiByTau))
	require.Len(t, got.SkLiByZ, 4)
	for i := range pk.SkLiByZ {
		require.True(t, pk.SkLiByZ[i].Equal(&got.SkLiByZ[i]), "by_z %d", i)
	}
	require.Equal(t, b, EncodePublicKey(got))
}

func TestDecodePublicKey_Malformed(t *testing.T) {
	b := EncodePublicKey(testKey(t, 4, 1))

	cases := map[string][]byte{
		"empty":     nil,
		"truncated": b[:len(b)-1],
		"trailing":  append(append([]byte(nil), b...), 0),
		"huge_len": func() []byte {
			c := append([]byte(nil), b...)
			c[8+3*G1Size+7] = 0xff
			return c
		}(),
		"bad_point": func() []byte {
			c := append([]byte(nil), b...)
			c[8+5] ^= 0x5a
			return c
		}(),
		"bad_id": func() []byte {
			c := append([]byte(nil), b...)
			c[7] = 0x01
			return c
		}(),
	}
	for name, in := range cases {
		_, err := DecodePublicKey(in)
		require.ErrorIs(t, err, ErrEncoding, name)
	}
}

func TestPoints_RoundTrip(t *testing.T) {
	_, _, g1, g2 := bls12381.Generators()
	var g1x2 bls12381.G1Affine
	g1x2.Add(&g1, &g1)
	sa1 := [2]bls12381.G1Affine{g1, g1x2}
	got1, err := DecodeSA1(EncodeSA1(&sa1))
	require.NoError(t, err)
	require.Equal(t, sa1, got1)

	var sa2 [6]bls12381.G2Affine
	for i := range sa2 {
		sa2[i] = g2
	}
	sa2[3].Neg(&g2)
	got2, err := DecodeSA2(EncodeSA2(&sa2))
	require.NoError(t, err)
	require.Equal(t, sa2, got2)

	_, err = DecodeSA1(EncodeSA1(&sa1)[:G1Size])
	require.ErrorIs(t, err, ErrEncoding)
	_, err = DecodeSA2(make([]byte, 6*G2Size+1))
	require.ErrorIs(t, err, ErrEncoding)
	_, err = DecodeG2(EncodeG1(&g1))
	require.ErrorIs(t, err, ErrEncoding)
}

func TestMessages_RoundTrip(t *testing.T) {
	dec := DecryptRequest{
		Enc:     []byte("sealed"),
		PKs:     [][]byte{{1, 2}, {3}},
		Parts:   []DecryptionShare{{Index: 2, Share: []byte{9}}, {Index: 5, Share: []byte{7, 7}}},
		SA1:     []byte{1},
		SA2:     []byte{2},
		IV:      []byte{3},
		T:       4,
		N:       16,
		GammaG2: []byte{5},
	}
	var got DecryptRequest
	require.NoError(t, got.Unmarshal(dec.Marshal()))
	if diff := cmp.Diff(dec, got); diff != "" {
		t.Fatalf("decrypt request mismatch (-want +got):\n%s", diff)
	}

	enc := EncryptRequest{Msg: []byte("hi"), PKs: [][]byte{{1}}, T: 1, N: 2}
	var gotEnc EncryptRequest
	require.NoError(t, gotEnc.Unmarshal(enc.Marshal()))
	require.Equal(t, enc, gotEnc)

	// Zero-valued scalars are omitted on the wire.
	pk := PKRequest{ID: 0, N: 8}
	require.Len(t, pk.Marshal(), 2)
	var gotPK PKRequest
	require.NoError(t, gotPK.Unmarshal(pk.Marshal()))
	require.Equal(t, pk, gotPK)
}

func TestUnmarshal_SkipsUnknownFields(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 42, protowire.VarintType)
	b = protowire.AppendVarint(b, 99)
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte("ok"))
	var r Response
	require.NoError(t, r.Unmarshal(b))
	require.Equal(t, []byte("ok"), r.Result)
}

func TestUnmarshal_Malformed(t *testing.T) {
	var r Response
	require.ErrorIs(t, r.Unmarshal([]byte{0x0a, 0x05, 'a'}), ErrEncoding)

	// field 1 of VerifyPartRequest sent as a varint
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, 1)
	var v VerifyPartRequest
	require.ErrorIs(t, v.Unmarshal(b), ErrEncoding)
}

func FuzzDecodePublicKey(f *testing.F) {
	f.Add(EncodePublicKey(testKey(f, 2, 1)))
	f.Add([]byte{})
	f.Fuzz(func(t *testing.T, b []byte) {
		pk, err := DecodePublicKey(b)
		if err != nil {
			return
		}
		again, err := DecodePublicKey(EncodePublicKey(pk))
		require.NoError(t, err)
		require.Equal(t, EncodePublicKey(pk), EncodePublicKey(again))
	})
}

func FuzzDecryptRequest(f *testing.F) {
	f.Add((&DecryptRequest{Enc: []byte{1}, Parts: []DecryptionShare{{Index: 1, Share: []byte{2}}}, T: 1}).Marshal())
	f.Fuzz(func(t *testing.T, b []byte) {
		var m DecryptRequest
		_ = m.Unmarshal(b)
	})
}
