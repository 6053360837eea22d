package kzg

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
)

const srsMagic uint32 = 0x53524331 // 'SRC1'

// WriteTo writes s as a magic number followed by the gnark-crypto raw
// (uncompressed) encoding of both vectors.
func (s *SRS) WriteTo(w io.Writer) (int64, error) {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], srsMagic)
	if _, err := w.Write(hdr[:]); err != nil {
		return 0, err
	}
	enc := bls12381.NewEncoder(w, bls12381.RawEncoding())
	if err := enc.Encode(s.G1); err != nil {
		return 4 + enc.BytesWritten(), err
	}
	if err := enc.Encode(s.G2); err != nil {
		return 4 + enc.BytesWritten(), err
	}
	return 4 + enc.BytesWritten(), nil
}

// ReadFrom replaces s with the reference string read from r. Points are
// checked to be on the curve and in the prime-order subgroup.
func (s *SRS) ReadFrom(r io.Reader) (int64, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, err
	}
	if binary.BigEndian.Uint32(hdr[:]) != srsMagic {
		return 4, fmt.Errorf("%w: bad magic", ErrInvalidSRS)
	}
	dec := bls12381.NewDecoder(r)
	var g1 []bls12381.G1Affine
	var g2 []bls12381.G2Affine
	if err := dec.Decode(&g1); err != nil {
		return 4 + dec.BytesRead(), fmt.Errorf("%w: %v", ErrInvalidSRS, err)
	}
	if err := dec.Decode(&g2); err != nil {
		return 4 + dec.BytesRead(), fmt.Errorf("%w: %v", ErrInvalidSRS, err)
	}
	s.G1, s.G2 = g1, g2
	return 4 + dec.BytesRead(), nil
}

// Save writes s to path atomically (tmp file, fsync, rename).
func (s *SRS) Save(path string) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := s.WriteTo(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	if d, err := os.Open(filepath.Dir(path)); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// Load reads an SRS written by Save.
func Load(path string) (*SRS, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s := new(SRS)
	if _, err := s.ReadFrom(f); err != nil {
		return nil, err
	}
	return s, nil
}
