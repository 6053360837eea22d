// Package node assembles a running silent threshold encryption node from its
// configuration.
package node

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/zmlAEQ/silent-threshold/internal/api"
	"github.com/zmlAEQ/silent-threshold/internal/config"
	"github.com/zmlAEQ/silent-threshold/internal/keystore"
	"github.com/zmlAEQ/silent-threshold/internal/roster"
	"github.com/zmlAEQ/silent-threshold/internal/session"
	"github.com/zmlAEQ/silent-threshold/internal/silent/kzg"
	"github.com/zmlAEQ/silent-threshold/internal/silent/ste"
	"github.com/zmlAEQ/silent-threshold/pkg/bus"
	"github.com/zmlAEQ/silent-threshold/pkg/lifecycle"
	"github.com/zmlAEQ/silent-threshold/pkg/logger"
	"github.com/zmlAEQ/silent-threshold/pkg/metrics"
)

// LoadSRS reads the reference string cfg names and checks that it covers a
// committee of n.
func LoadSRS(cfg config.SRS, n int) (*kzg.SRS, error) {
	begin := time.Now()
	var (
		srs    *kzg.SRS
		err    error
		source string
	)
	switch {
	case cfg.Path != "":
		source = "file"
		srs, err = kzg.Load(cfg.Path)
	case cfg.Transcript != "":
		source = "transcript"
		srs, err = kzg.LoadTranscriptFile(cfg.Transcript, cfg.TranscriptIndex, n+1)
	case cfg.Dev:
		source = "dev"
		srs, err = kzg.Setup(n, nil)
	default:
		err = errors.New("node: no srs source configured")
	}
	if err != nil {
		logger.ErrorJ("srs", map[string]any{"op": "load", "source": source, "result": "error", "err": err.Error()})
		return nil, err
	}
	if srs.MaxDegree() < n-1 || srs.MaxDegreeG2() < n {
		return nil, fmt.Errorf("%w: %d G1 and %d G2 powers for committee of %d", kzg.ErrSetupInsufficient, len(srs.G1), len(srs.G2), n)
	}
	ms := time.Since(begin).Milliseconds()
	logger.InfoJ("srs", map[string]any{"op": "load", "source": source, "result": "ok", "g1": len(srs.G1), "g2": len(srs.G2), "latency_ms": ms})
	metrics.ObserveSummary("ste_op_ms", map[string]string{"op": "srs_load"}, float64(ms))
	return srs, nil
}

// LoadOrCreateSecret returns the secret in ks, generating and persisting a
// fresh one on first start. A stored entry for another party or committee is
// an error.
func LoadOrCreateSecret(ctx context.Context, ks *keystore.Store, partyID, n int) (*ste.SecretKey, error) {
	e, err := ks.Load(ctx)
	switch {
	case err == nil:
		if e.PartyID != partyID || e.Committee != n {
			return nil, fmt.Errorf("node: keystore holds party %d of %d, configured party %d of %d", e.PartyID, e.Committee, partyID, n)
		}
		return e.SecretKey()
	case !errors.Is(err, keystore.ErrNotFound):
		return nil, err
	}
	// Unreadable files are left for the operator rather than replaced.
	if _, statErr := os.Stat(ks.Path()); statErr == nil {
		return nil, err
	}
	sk, err := ste.GenerateSecretKey(nil)
	if err != nil {
		return nil, err
	}
	if err := ks.Save(ctx, keystore.Entry{PartyID: partyID, Committee: n, Secret: sk.Bytes()}); err != nil {
		return nil, err
	}
	logger.InfoJ("keystore", map[string]any{"op": "generate", "result": "ok", "party_id": partyID})
	return sk, nil
}

// seedDummy stores the public key of party 0. Its secret is fixed, so every
// node derives the same key and the roster never waits for it.
func seedDummy(ctx context.Context, r *roster.Roster, d ste.PublicKeyDeriver) error {
	pk, err := d.DerivePublicKey(ctx, ste.DummySecretKey(), 0)
	if err != nil {
		return err
	}
	return r.Put(ctx, pk)
}

// Node is a configured set of services ready to start.
type Node struct {
	Committee *ste.Committee
	API       *api.Service
	Roster    *roster.Roster
	Bus       *bus.Bus

	m *lifecycle.Manager
}

// New builds every component cfg describes. The keystore encryption settings
// come from the environment (see keystore.FromEnv).
func New(ctx context.Context, cfg config.Config) (*Node, error) {
	srs, err := LoadSRS(cfg.SRS, cfg.Committee)
	if err != nil {
		return nil, err
	}
	c, err := ste.NewCommittee(srs, cfg.Committee)
	if err != nil {
		return nil, err
	}
	deriver, err := ste.NewDeriver(ctx, ste.Strategy(cfg.Strategy), c)
	if err != nil {
		return nil, err
	}
	validity, err := ste.NewValidityHelper(ctx, c)
	if err != nil {
		return nil, err
	}
	ks, err := keystore.FromEnv(cfg.Keystore.Path)
	if err != nil {
		return nil, err
	}
	sk, err := LoadOrCreateSecret(ctx, ks, cfg.PartyID, cfg.Committee)
	if err != nil {
		return nil, err
	}
	r, err := roster.Open(cfg.Roster.Path)
	if err != nil {
		return nil, err
	}
	if err := seedDummy(ctx, r, deriver); err != nil {
		_ = r.Close()
		return nil, err
	}

	b := bus.New(256)
	svc := api.New(cfg.Listen, api.Deps{
		Committee:     c,
		Deriver:       deriver,
		Validity:      validity,
		Secret:        sk,
		PartyID:       cfg.PartyID,
		Roster:        r,
		Bus:           b,
		GatherTimeout: cfg.Session.GatherTimeout.Duration,
	})
	m := lifecycle.New()
	m.Add(session.NewAuditor(b.Subscribe()))
	m.Add(svc)
	return &Node{Committee: c, API: svc, Roster: r, Bus: b, m: m}, nil
}

func (n *Node) Start(ctx context.Context) error { return n.m.StartAll(ctx) }

// Stop stops the services in reverse order and closes the roster.
func (n *Node) Stop(ctx context.Context) error {
	return errors.Join(n.m.StopAll(ctx), n.Roster.Close())
}
