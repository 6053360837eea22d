package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/urfave/cli.v1"

	"github.com/zmlAEQ/silent-threshold/internal/keystore"
	"github.com/zmlAEQ/silent-threshold/internal/silent/kzg"
	"github.com/zmlAEQ/silent-threshold/internal/silent/ste"
	"github.com/zmlAEQ/silent-threshold/internal/wire"
)

// publicFile is the JSON a party hands to the others.
type publicFile struct {
	PartyID   int    `json:"party_id"`
	Committee int    `json:"committee"`
	PublicKey string `json:"public_key"`
}

func setupAction(c *cli.Context) error {
	n := c.Int("n")
	if n < 2 {
		return cli.NewExitError(fmt.Sprintf("committee size %d too small", n), 2)
	}
	var (
		srs *kzg.SRS
		err error
	)
	if path := c.String("transcript"); path != "" {
		srs, err = kzg.LoadTranscriptFile(path, c.Int("index"), n+1)
	} else {
		srs, err = kzg.Setup(n, nil)
	}
	if err != nil {
		return err
	}
	if err := srs.Validate(); err != nil {
		return err
	}
	out := c.String("out")
	if err := srs.Save(out); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %d G1 / %d G2 powers to %s\n", len(srs.G1), len(srs.G2), out)
	return nil
}

func keygenAction(c *cli.Context) error {
	ctx := context.Background()
	n, party := c.Int("n"), c.Int("party")
	if party < 1 || party >= n {
		return cli.NewExitError(fmt.Sprintf("party %d outside [1, %d)", party, n), 2)
	}
	committee, err := openCommittee(c.String("srs"), n)
	if err != nil {
		return err
	}
	sk, err := newSecret(c.String("seed"))
	if err != nil {
		return err
	}
	pf, err := derivePublic(ctx, c.String("strategy"), committee, sk, party)
	if err != nil {
		return err
	}
	ks, err := keystore.FromEnv(c.String("keystore"))
	if err != nil {
		return err
	}
	if err := ks.Save(ctx, keystore.Entry{PartyID: party, Committee: n, Secret: sk.Bytes()}); err != nil {
		return err
	}
	out := c.String("out")
	if err := writeJSON(out, pf); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "party %d: secret in %s, public key in %s\n", party, ks.Path(), out)
	return nil
}

func pubkeyAction(c *cli.Context) error {
	ctx := context.Background()
	ks, err := keystore.FromEnv(c.String("keystore"))
	if err != nil {
		return err
	}
	e, err := ks.Load(ctx)
	if err != nil {
		return err
	}
	if n := c.Int("n"); c.IsSet("n") && n != e.Committee {
		return cli.NewExitError(fmt.Sprintf("keystore holds a key for committee %d, not %d", e.Committee, n), 2)
	}
	committee, err := openCommittee(c.String("srs"), e.Committee)
	if err != nil {
		return err
	}
	sk, err := e.SecretKey()
	if err != nil {
		return err
	}
	pf, err := derivePublic(ctx, c.String("strategy"), committee, sk, e.PartyID)
	if err != nil {
		return err
	}
	if out := c.String("out"); out != "" {
		return writeJSON(out, pf)
	}
	return json.NewEncoder(c.App.Writer).Encode(pf)
}

func verifyKeyAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("usage: silentctl verify-key [flags] <public key JSON>", 2)
	}
	pk, n, err := readPublic(c.Args().First())
	if err != nil {
		return err
	}
	if c.IsSet("n") && c.Int("n") != n {
		return cli.NewExitError(fmt.Sprintf("key was published for committee %d, not %d", n, c.Int("n")), 2)
	}
	ok, err := verifyPublic(context.Background(), c.String("srs"), n, pk)
	if err != nil {
		return err
	}
	if !ok {
		return cli.NewExitError(fmt.Sprintf("party %d: invalid", pk.ID), 1)
	}
	fmt.Fprintf(c.App.Writer, "party %d: valid\n", pk.ID)
	return nil
}

func openCommittee(path string, n int) (*ste.Committee, error) {
	srs, err := kzg.Load(path)
	if err != nil {
		return nil, err
	}
	return ste.NewCommittee(srs, n)
}

func newSecret(seedHex string) (*ste.SecretKey, error) {
	if seedHex == "" {
		return ste.GenerateSecretKey(nil)
	}
	seed, err := hex.DecodeString(strings.TrimPrefix(seedHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	return ste.SecretKeyFromSeed(seed)
}

func derivePublic(ctx context.Context, strategy string, c *ste.Committee, sk *ste.SecretKey, id int) (*publicFile, error) {
	d, err := ste.NewDeriver(ctx, ste.Strategy(strategy), c)
	if err != nil {
		return nil, err
	}
	pk, err := d.DerivePublicKey(ctx, sk, id)
	if err != nil {
		return nil, err
	}
	return &publicFile{PartyID: id, Committee: c.N(), PublicKey: hex.EncodeToString(wire.EncodePublicKey(pk))}, nil
}

func readPublic(path string) (*ste.PublicKey, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	var pf publicFile
	if err := json.NewDecoder(io.LimitReader(f, 64<<20)).Decode(&pf); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	raw, err := hex.DecodeString(pf.PublicKey)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: public_key: %w", path, err)
	}
	pk, err := wire.DecodePublicKey(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	if pk.ID != pf.PartyID {
		return nil, 0, fmt.Errorf("%s: party_id %d does not match key id %d", path, pf.PartyID, pk.ID)
	}
	return pk, pf.Committee, nil
}

func verifyPublic(ctx context.Context, srsPath string, n int, pk *ste.PublicKey) (bool, error) {
	committee, err := openCommittee(srsPath, n)
	if err != nil {
		return false, err
	}
	h, err := ste.NewValidityHelper(ctx, committee)
	if err != nil {
		return false, err
	}
	ok, err := ste.IsValid(pk, h)
	if errors.Is(err, ste.ErrDimension) {
		return false, nil
	}
	return ok, err
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
