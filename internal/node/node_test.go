package node

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zmlAEQ/silent-threshold/internal/config"
	"github.com/zmlAEQ/silent-threshold/internal/keystore"
	"github.com/zmlAEQ/silent-threshold/internal/silent/kzg"
	"github.com/zmlAEQ/silent-threshold/internal/silent/ste"
	"github.com/zmlAEQ/silent-threshold/internal/wire"
)

func TestLoadOrCreateSecret(t *testing.T) {
	ctx := context.Background()
	ks := keystore.New(filepath.Join(t.TempDir(), "secret.dat"))

	first, err := LoadOrCreateSecret(ctx, ks, 2, 8)
	require.NoError(t, err)
	again, err := LoadOrCreateSecret(ctx, ks, 2, 8)
	require.NoError(t, err)
	require.Equal(t, first.Bytes(), again.Bytes())

	_, err = LoadOrCreateSecret(ctx, ks, 3, 8)
	require.ErrorContains(t, err, "keystore holds party 2 of 8")
	_, err = LoadOrCreateSecret(ctx, ks, 2, 16)
	require.Error(t, err)
}

func TestLoadOrCreateSecret_KeepsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.dat")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))
	_, err := LoadOrCreateSecret(context.Background(), keystore.New(path), 1, 4)
	require.ErrorIs(t, err, keystore.ErrNotFound)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("garbage"), b)
}

func TestLoadSRS(t *testing.T) {
	dir := t.TempDir()
	srs, err := kzg.Setup(4, nil)
	require.NoError(t, err)
	path := filepath.Join(dir, "srs.bin")
	require.NoError(t, srs.Save(path))

	got, err := LoadSRS(config.SRS{Path: path}, 4)
	require.NoError(t, err)
	require.Len(t, got.G2, 5)

	_, err = LoadSRS(config.SRS{Path: path}, 8)
	require.ErrorIs(t, err, kzg.ErrSetupInsufficient)

	dev, err := LoadSRS(config.SRS{Dev: true}, 8)
	require.NoError(t, err)
	require.Len(t, dev.G1, 9)

	_, err = LoadSRS(config.SRS{}, 4)
	require.Error(t, err)
	_, err = LoadSRS(config.SRS{Path: filepath.Join(dir, "missing.bin")}, 4)
	require.Error(t, err)
}

func TestNode_StartServeStop(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Listen = "127.0.0.1:0"
	cfg.Committee = 4
	cfg.PartyID = 3
	cfg.SRS.Dev = true
	cfg.Keystore.Path = filepath.Join(dir, "secret.dat")
	cfg.Roster.Path = filepath.Join(dir, "roster.db")
	require.NoError(t, cfg.Validate())

	ctx := context.Background()
	n, err := New(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, n.Start(ctx))
	stopped := false
	t.Cleanup(func() {
		if !stopped {
			_ = n.Stop(ctx)
		}
	})

	resp, err := http.Post("http://"+n.API.Addr()+"/v1/pk", "application/x-protobuf", bytes.NewReader(nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var r wire.Response
	require.NoError(t, r.Unmarshal(body))
	pk, err := wire.DecodePublicKey(r.Result)
	require.NoError(t, err)
	require.Equal(t, 3, pk.ID)

	stored, err := n.Roster.Get(ctx, 4, 3)
	require.NoError(t, err)
	require.True(t, stored.BLSPK.Equal(&pk.BLSPK))

	dummy, err := n.Roster.Get(ctx, 4, 0)
	require.NoError(t, err, "dummy key seeded at startup")
	want, err := ste.NewOnlineDeriver(n.Committee).DerivePublicKey(ctx, ste.DummySecretKey(), 0)
	require.NoError(t, err)
	require.Equal(t, wire.EncodePublicKey(want), wire.EncodePublicKey(dummy))

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, n.Stop(stopCtx))
	stopped = true

	_, err = os.Stat(cfg.Keystore.Path)
	require.NoError(t, err, "secret persisted on first start")
}
