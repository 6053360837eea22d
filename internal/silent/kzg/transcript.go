package kzg

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
)

// ceremony mirrors the Ethereum KZG ceremony output: a list of transcripts of
// increasing size, each holding hex-encoded compressed points.
type ceremony struct {
	Transcripts []struct {
		NumG1Powers int `json:"numG1Powers"`
		NumG2Powers int `json:"numG2Powers"`
		PowersOfTau struct {
			G1Powers []string `json:"G1Powers"`
			G2Powers []string `json:"G2Powers"`
		} `json:"powersOfTau"`
	} `json:"transcripts"`
}

// LoadTranscriptFile opens path and calls LoadTranscript.
func LoadTranscriptFile(path string, index, limit int) (*SRS, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadTranscript(f, index, limit)
}

// LoadTranscript decodes transcript number index from a ceremony JSON
// document. When limit > 0 only the first limit powers of each group are
// decoded; point decoding includes the subgroup check and dominates the cost.
func LoadTranscript(r io.Reader, index, limit int) (*SRS, error) {
	var c ceremony
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: transcript json: %v", ErrInvalidSRS, err)
	}
	if index < 0 || index >= len(c.Transcripts) {
		return nil, fmt.Errorf("%w: transcript %d of %d", ErrInvalidSRS, index, len(c.Transcripts))
	}
	tr := c.Transcripts[index]
	g1s, g2s := tr.PowersOfTau.G1Powers, tr.PowersOfTau.G2Powers
	if tr.NumG1Powers != 0 && tr.NumG1Powers != len(g1s) || tr.NumG2Powers != 0 && tr.NumG2Powers != len(g2s) {
		return nil, fmt.Errorf("%w: declared power counts do not match", ErrInvalidSRS)
	}
	if limit > 0 {
		g1s = g1s[:min(limit, len(g1s))]
		g2s = g2s[:min(limit, len(g2s))]
	}

	srs := &SRS{G1: make([]bls12381.G1Affine, len(g1s)), G2: make([]bls12381.G2Affine, len(g2s))}
	for i, s := range g1s {
		b, err := decodeHex(s)
		if err != nil {
			return nil, fmt.Errorf("%w: G1 power %d: %v", ErrInvalidSRS, i, err)
		}
		if _, err := srs.G1[i].SetBytes(b); err != nil {
			return nil, fmt.Errorf("%w: G1 power %d: %v", ErrInvalidSRS, i, err)
		}
	}
	for i, s := range g2s {
		b, err := decodeHex(s)
		if err != nil {
			return nil, fmt.Errorf("%w: G2 power %d: %v", ErrInvalidSRS, i, err)
		}
		if _, err := srs.G2[i].SetBytes(b); err != nil {
			return nil, fmt.Errorf("%w: G2 power %d: %v", ErrInvalidSRS, i, err)
		}
	}
	return srs, nil
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
