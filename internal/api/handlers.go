package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/zmlAEQ/silent-threshold/internal/session"
	"github.com/zmlAEQ/silent-threshold/internal/silent/envelope"
	"github.com/zmlAEQ/silent-threshold/internal/silent/ste"
	"github.com/zmlAEQ/silent-threshold/internal/wire"
	"github.com/zmlAEQ/silent-threshold/pkg/logger"
	"github.com/zmlAEQ/silent-threshold/pkg/trace"
)

var (
	errNotConfigured = errors.New("api: not configured on this node")
	errInvalidKey    = errors.New("api: public key failed validation")
)

var (
	resultTrue  = (&wire.Response{Result: []byte{1}}).Marshal()
	resultFalse = (&wire.Response{Result: []byte{0}}).Marshal()
)

func boolResult(ok bool) []byte {
	if ok {
		return resultTrue
	}
	return resultFalse
}

// committeeSize resolves the n of a request: 0 means this node's committee,
// anything else has to match it.
func (s *Service) committeeSize(n uint64) (int, error) {
	own := s.d.Committee.N()
	if n != 0 && n != uint64(own) {
		return 0, fmt.Errorf("%w: committee of %d, node serves %d", errBadRequest, n, own)
	}
	return own, nil
}

func (s *Service) threshold(t uint64, n int) (int, error) {
	if t > uint64(n) {
		return 0, fmt.Errorf("%w: t=%d, n=%d", ste.ErrInvalidThreshold, t, n)
	}
	if err := ste.CheckThreshold(int(t), n); err != nil {
		return 0, err
	}
	return int(t), nil
}

// publicKeys decodes raw or, when raw is empty, reads the complete roster.
func (s *Service) publicKeys(ctx context.Context, raw [][]byte, n int) ([]ste.PublicKey, error) {
	if len(raw) == 0 {
		if s.d.Roster == nil {
			return nil, fmt.Errorf("%w: no public keys in request and no roster", errBadRequest)
		}
		return s.d.Roster.Complete(ctx, n)
	}
	if len(raw) != n {
		return nil, fmt.Errorf("%w: %d public keys for committee of %d", ste.ErrDimension, len(raw), n)
	}
	pks := make([]ste.PublicKey, len(raw))
	for i, b := range raw {
		pk, err := wire.DecodePublicKey(b)
		if err != nil {
			return nil, fmt.Errorf("public key %d: %w", i, err)
		}
		pks[i] = *pk
	}
	return pks, nil
}

func (s *Service) handlePK(ctx context.Context, body []byte) ([]byte, error) {
	var req wire.PKRequest
	if err := req.Unmarshal(body); err != nil {
		return nil, err
	}
	n, err := s.committeeSize(req.N)
	if err != nil {
		return nil, err
	}
	id := s.d.PartyID
	if req.ID != 0 {
		if req.ID >= uint64(n) {
			return nil, fmt.Errorf("%w: id %d for committee of %d", ste.ErrDimension, req.ID, n)
		}
		id = int(req.ID)
	}
	pk, err := s.derive(ctx, id)
	if err != nil {
		return nil, err
	}
	return (&wire.Response{Result: wire.EncodePublicKey(pk)}).Marshal(), nil
}

// derive returns this node's public key for id. The key for the node's own
// party id is cached and published to the roster.
func (s *Service) derive(ctx context.Context, id int) (*ste.PublicKey, error) {
	if id == s.d.PartyID {
		s.mu.Lock()
		own := s.ownKey
		s.mu.Unlock()
		if own != nil {
			return own, nil
		}
	}
	pk, err := s.d.Deriver.DerivePublicKey(ctx, s.d.Secret, id)
	if err != nil {
		return nil, err
	}
	if id != s.d.PartyID {
		return pk, nil
	}
	s.mu.Lock()
	s.ownKey = pk
	s.mu.Unlock()
	if s.d.Roster != nil {
		if err := s.d.Roster.Put(ctx, pk); err != nil {
			return nil, err
		}
	}
	return pk, nil
}

func (s *Service) handleEncrypt(ctx context.Context, body []byte) ([]byte, error) {
	var req wire.EncryptRequest
	if err := req.Unmarshal(body); err != nil {
		return nil, err
	}
	n, err := s.committeeSize(req.N)
	if err != nil {
		return nil, err
	}
	t, err := s.threshold(req.T, n)
	if err != nil {
		return nil, err
	}
	pks, err := s.publicKeys(ctx, req.PKs, n)
	if err != nil {
		return nil, err
	}
	ak, err := ste.Aggregate(pks, s.d.Committee)
	if err != nil {
		return nil, err
	}
	ct, err := ste.Encrypt(ak, t, s.d.Committee, nil)
	if err != nil {
		return nil, err
	}
	sealed, err := envelope.Seal(&ct.EncKey, req.Msg, nil, nil)
	ct.EncKey.SetOne()
	if err != nil {
		return nil, err
	}
	resp := wire.EncryptResponse{
		Enc:     sealed[envelope.NonceSize:],
		IV:      sealed[:envelope.NonceSize],
		SA1:     wire.EncodeSA1(&ct.SA1),
		SA2:     wire.EncodeSA2(&ct.SA2),
		GammaG2: wire.EncodeG2(&ct.GammaG2),
	}
	return resp.Marshal(), nil
}

func (s *Service) handleDecryptPart(_ context.Context, body []byte) ([]byte, error) {
	var req wire.GammaG2Request
	if err := req.Unmarshal(body); err != nil {
		return nil, err
	}
	gamma, err := wire.DecodeG2(req.GammaG2)
	if err != nil {
		return nil, err
	}
	part := s.d.Secret.PartialDecrypt(gamma)
	return (&wire.Response{Result: wire.EncodeG2(&part)}).Marshal(), nil
}

func (s *Service) handleVerifyPart(_ context.Context, body []byte) ([]byte, error) {
	var req wire.VerifyPartRequest
	if err := req.Unmarshal(body); err != nil {
		return nil, err
	}
	pk, err := wire.DecodePublicKey(req.PK)
	if err != nil {
		return nil, err
	}
	gamma, err := wire.DecodeG2(req.GammaG2)
	if err != nil {
		return nil, err
	}
	part, err := wire.DecodeG2(req.PartDec)
	if err != nil {
		return nil, err
	}
	return boolResult(ste.PartVerify(gamma, pk, s.d.Committee.G1(), part)), nil
}

// handleDecrypt verifies every share through a session, drops the ones that
// fail, and opens the payload if more than t remain. Verification that runs
// past the gather timeout ends the request with session.ErrTimeout.
func (s *Service) handleDecrypt(ctx context.Context, body []byte) ([]byte, error) {
	var req wire.DecryptRequest
	if err := req.Unmarshal(body); err != nil {
		return nil, err
	}
	n, err := s.committeeSize(req.N)
	if err != nil {
		return nil, err
	}
	t, err := s.threshold(req.T, n)
	if err != nil {
		return nil, err
	}
	var ct session.Ciphertext
	ct.T = t
	if ct.GammaG2, err = wire.DecodeG2(req.GammaG2); err != nil {
		return nil, err
	}
	if ct.SA1, err = wire.DecodeSA1(req.SA1); err != nil {
		return nil, err
	}
	if ct.SA2, err = wire.DecodeSA2(req.SA2); err != nil {
		return nil, err
	}
	pks, err := s.publicKeys(ctx, req.PKs, n)
	if err != nil {
		return nil, err
	}
	ak, err := ste.Aggregate(pks, s.d.Committee)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions++
	sid := fmt.Sprintf("dec-%d", s.sessions)
	s.mu.Unlock()
	m, err := session.NewManager(session.Config{ID: sid, GatherTimeout: s.d.GatherTimeout, Bus: s.d.Bus}, s.d.Committee, ak, ct)
	if err != nil {
		return nil, err
	}
	m.Start(ctx)
	defer m.Stop()
	tid, _ := trace.FromContext(ctx)
	for _, p := range req.Parts {
		if p.Index == 0 {
			continue
		}
		if p.Index >= uint64(n) {
			return nil, fmt.Errorf("%w: share index %d for committee of %d", ste.ErrDimension, p.Index, n)
		}
		share, err := wire.DecodeG2(p.Share)
		if err != nil {
			return nil, fmt.Errorf("share %d: %w", p.Index, err)
		}
		if _, err := m.OnShare(ctx, int(p.Index), share); err != nil {
			if errors.Is(err, session.ErrInvalidShare) {
				logger.WarnJ("decrypt", map[string]any{"session": sid, "party_id": p.Index, "result": "share_dropped", "trace_id": tid})
				continue
			}
			return nil, err
		}
	}
	key, err := m.Finalize(ctx)
	if err != nil {
		return nil, err
	}
	sealed := make([]byte, 0, len(req.IV)+len(req.Enc))
	sealed = append(sealed, req.IV...)
	sealed = append(sealed, req.Enc...)
	msg, err := envelope.Open(&key, sealed, nil)
	if err != nil {
		return nil, err
	}
	return (&wire.Response{Result: msg}).Marshal(), nil
}

func (s *Service) decodeForValidation(body []byte) (*ste.PublicKey, error) {
	if s.d.Validity == nil {
		return nil, errNotConfigured
	}
	var req wire.IsValidRequest
	if err := req.Unmarshal(body); err != nil {
		return nil, err
	}
	if _, err := s.committeeSize(req.N); err != nil {
		return nil, err
	}
	return wire.DecodePublicKey(req.PK)
}

func (s *Service) handleIsValid(_ context.Context, body []byte) ([]byte, error) {
	pk, err := s.decodeForValidation(body)
	if err != nil {
		return nil, err
	}
	ok, err := ste.IsValid(pk, s.d.Validity)
	if err != nil {
		return nil, err
	}
	return boolResult(ok), nil
}

// handleRegister adds a validated public key to the roster.
func (s *Service) handleRegister(ctx context.Context, body []byte) ([]byte, error) {
	if s.d.Roster == nil {
		return nil, errNotConfigured
	}
	pk, err := s.decodeForValidation(body)
	if err != nil {
		return nil, err
	}
	ok, err := ste.IsValid(pk, s.d.Validity)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: party %d", errInvalidKey, pk.ID)
	}
	if err := s.d.Roster.Put(ctx, pk); err != nil {
		return nil, err
	}
	return resultTrue, nil
}
