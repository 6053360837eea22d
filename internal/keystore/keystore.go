// Package keystore persists a party's secret key on local disk.
//
// Writes are atomic (tmp + fsync + rename) and the previous file is kept as
// <path>.bak, which Load falls back to when the main file is unreadable. The
// payload may be sealed with AES-256-GCM under a raw 32-byte key or under a key
// stretched from a passphrase with scrypt.
package keystore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/scrypt"

	"github.com/zmlAEQ/silent-threshold/internal/silent/ste"
	"github.com/zmlAEQ/silent-threshold/pkg/logger"
	"github.com/zmlAEQ/silent-threshold/pkg/metrics"
	"github.com/zmlAEQ/silent-threshold/pkg/trace"
)

var (
	ErrNotFound  = errors.New("keystore: not found")
	ErrKeyLength = errors.New("keystore: encryption key must be 32 bytes")
	ErrCorrupt   = errors.New("keystore: corrupt file")
	ErrLocked    = errors.New("keystore: file is encrypted and no key is configured")
)

const (
	magic          uint32 = 0x5354454b // 'STEK'
	version        uint16 = 1
	flagEncrypt    uint16 = 1 << 0
	flagPassphrase uint16 = 1 << 1

	headerSize = 4 + 2 + 2 + 4 + 4
	nonceSize  = 12
	saltSize   = 16

	defaultScryptN = 1 << 15
)

// Entry is what a node keeps about itself.
type Entry struct {
	PartyID   int    `json:"party_id"`
	Committee int    `json:"committee"`
	Secret    []byte `json:"secret"` // 32-byte big-endian scalar
}

// SecretKey decodes e.Secret.
func (e Entry) SecretKey() (*ste.SecretKey, error) {
	return ste.SecretKeyFromBytes(e.Secret)
}

// Store reads and writes one Entry at a fixed path.
type Store struct {
	mu      sync.Mutex
	path    string
	aead    cipher.AEAD
	pass    []byte
	scryptN int
	zeroize bool
}

// New returns a store that writes plaintext entries.
func New(path string) *Store { return &Store{path: path} }

// NewEncrypted seals entries with AES-256-GCM under key, which is wiped before
// returning. zeroize wipes plaintext buffers after each read and write.
func NewEncrypted(path string, key []byte, zeroize bool) (*Store, error) {
	defer zero(key)
	if len(key) != 32 {
		return nil, ErrKeyLength
	}
	a, err := newAESGCM(key)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, aead: a, zeroize: zeroize}, nil
}

// NewWithPassphrase seals entries under a key derived from passphrase with
// scrypt and a fresh salt per write.
func NewWithPassphrase(path string, passphrase []byte, zeroize bool) (*Store, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("keystore: empty passphrase")
	}
	return &Store{
		path:    path,
		pass:    append([]byte(nil), passphrase...),
		scryptN: defaultScryptN,
		zeroize: zeroize,
	}, nil
}

// FromEnv builds a store for path from the environment:
//
//	STE_KEYSTORE_ENCRYPT=1      enable encryption
//	STE_KEYSTORE_KEY            hex 32-byte key
//	STE_KEYSTORE_KEY_FILE       file holding the raw 32-byte key
//	STE_KEYSTORE_PASSPHRASE     passphrase, used when no key is given
//	STE_ZEROIZE=1               wipe plaintext buffers
func FromEnv(path string) (*Store, error) {
	if os.Getenv("STE_KEYSTORE_ENCRYPT") != "1" {
		return New(path), nil
	}
	zeroize := os.Getenv("STE_ZEROIZE") == "1"
	switch {
	case os.Getenv("STE_KEYSTORE_KEY") != "":
		key, err := hex.DecodeString(os.Getenv("STE_KEYSTORE_KEY"))
		if err != nil {
			return nil, fmt.Errorf("keystore: STE_KEYSTORE_KEY: %w", err)
		}
		return NewEncrypted(path, key, zeroize)
	case os.Getenv("STE_KEYSTORE_KEY_FILE") != "":
		key, err := os.ReadFile(os.Getenv("STE_KEYSTORE_KEY_FILE"))
		if err != nil {
			return nil, fmt.Errorf("keystore: key file: %w", err)
		}
		return NewEncrypted(path, key, zeroize)
	case os.Getenv("STE_KEYSTORE_PASSPHRASE") != "":
		return NewWithPassphrase(path, []byte(os.Getenv("STE_KEYSTORE_PASSPHRASE")), zeroize)
	}
	return nil, errors.New("keystore: STE_KEYSTORE_ENCRYPT=1 but no key, key file or passphrase set")
}

// Path returns the main file path.
func (s *Store) Path() string { return s.path }

// Save persists e, moving the previous file to <path>.bak.
func (s *Store) Save(ctx context.Context, e Entry) error {
	begin := time.Now()
	tid, _ := trace.FromContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeAtomic(e); err != nil {
		metrics.Inc("ste_keystore_total", map[string]string{"op": "persist", "result": "error"})
		logger.ErrorJ("keystore", map[string]any{"op": "persist", "result": "error", "err": err.Error(), "trace_id": tid})
		return err
	}
	ms := float64(time.Since(begin).Milliseconds())
	metrics.Inc("ste_keystore_total", map[string]string{"op": "persist", "result": "ok"})
	metrics.ObserveSummary("ste_op_ms", map[string]string{"op": "keystore_persist"}, ms)
	logger.InfoJ("keystore", map[string]any{"op": "persist", "result": "ok", "party_id": e.PartyID, "latency_ms": ms, "trace_id": tid})
	return nil
}

// Load reads the entry, falling back to <path>.bak when the main file is
// missing or corrupt.
func (s *Store) Load(ctx context.Context) (Entry, error) {
	tid, _ := trace.FromContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.readFile(s.path)
	if err == nil {
		metrics.Inc("ste_keystore_total", map[string]string{"op": "recovery", "result": "ok"})
		logger.InfoJ("keystore", map[string]any{"op": "recovery", "result": "ok", "trace_id": tid})
		return e, nil
	}
	if e, bakErr := s.readFile(s.path + ".bak"); bakErr == nil {
		metrics.Inc("ste_keystore_total", map[string]string{"op": "recovery", "result": "fallback"})
		logger.WarnJ("keystore", map[string]any{"op": "recovery", "result": "fallback", "err": err.Error(), "trace_id": tid})
		return e, nil
	}
	metrics.Inc("ste_keystore_total", map[string]string{"op": "recovery", "result": "miss"})
	logger.InfoJ("keystore", map[string]any{"op": "recovery", "result": "miss", "err": err.Error(), "trace_id": tid})
	if errors.Is(err, ErrLocked) {
		return Entry{}, err
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, s.path)
}

// On-disk layout:
//
//	[magic u32][version u16][flags u16][length u32][crc32 u32][body]
//
// body is the JSON entry, nonce||ct when encrypted under a raw key, or
// salt||nonce||ct when encrypted under a passphrase.
func (s *Store) writeAtomic(e Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	flags, body, err := s.seal(payload)
	if err != nil {
		return err
	}

	var hdr [headerSize]byte
	binary.BigEndian.PutUint32(hdr[0:], magic)
	binary.BigEndian.PutUint16(hdr[4:], version)
	binary.BigEndian.PutUint16(hdr[6:], flags)
	binary.BigEndian.PutUint32(hdr[8:], uint32(len(body)))
	binary.BigEndian.PutUint32(hdr[12:], crc32.ChecksumIEEE(body))

	dir := filepath.Dir(s.path)
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err = f.Write(hdr[:]); err == nil {
		_, err = f.Write(body)
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if _, err := os.Stat(s.path); err == nil {
		if err := os.Rename(s.path, s.path+".bak"); err != nil {
			return err
		}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	syncDir(dir)
	return nil
}

func (s *Store) seal(payload []byte) (uint16, []byte, error) {
	if s.aead == nil && s.pass == nil {
		return 0, payload, nil
	}
	if s.zeroize {
		defer zero(payload)
	}
	var (
		flags = flagEncrypt
		salt  []byte
		aead  = s.aead
	)
	if s.pass != nil {
		flags |= flagPassphrase
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return 0, nil, err
		}
		a, err := s.passphraseAEAD(salt)
		if err != nil {
			return 0, nil, err
		}
		aead = a
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return 0, nil, err
	}
	body := make([]byte, 0, len(salt)+nonceSize+len(payload)+aead.Overhead())
	body = append(body, salt...)
	body = append(body, nonce...)
	body = aead.Seal(body, nonce, payload, nil)
	return flags, body, nil
}

func (s *Store) readFile(path string) (Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}
	if len(raw) < headerSize {
		return Entry{}, fmt.Errorf("%w: short header", ErrCorrupt)
	}
	if binary.BigEndian.Uint32(raw[0:]) != magic {
		return Entry{}, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if v := binary.BigEndian.Uint16(raw[4:]); v != version {
		return Entry{}, fmt.Errorf("%w: version %d", ErrCorrupt, v)
	}
	flags := binary.BigEndian.Uint16(raw[6:])
	length := binary.BigEndian.Uint32(raw[8:])
	body := raw[headerSize:]
	if length == 0 || int(length) != len(body) {
		return Entry{}, fmt.Errorf("%w: bad length", ErrCorrupt)
	}
	if crc32.ChecksumIEEE(body) != binary.BigEndian.Uint32(raw[12:]) {
		return Entry{}, fmt.Errorf("%w: crc mismatch", ErrCorrupt)
	}

	plain, err := s.open(flags, body)
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	err = json.Unmarshal(plain, &e)
	if s.zeroize {
		zero(plain)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return e, nil
}

func (s *Store) open(flags uint16, body []byte) ([]byte, error) {
	if flags&flagEncrypt == 0 {
		return body, nil
	}
	aead := s.aead
	if flags&flagPassphrase != 0 {
		if s.pass == nil {
			return nil, ErrLocked
		}
		if len(body) < saltSize {
			return nil, fmt.Errorf("%w: short salt", ErrCorrupt)
		}
		a, err := s.passphraseAEAD(body[:saltSize])
		if err != nil {
			return nil, err
		}
		aead, body = a, body[saltSize:]
	}
	if aead == nil {
		return nil, ErrLocked
	}
	if len(body) < nonceSize {
		return nil, fmt.Errorf("%w: short nonce", ErrCorrupt)
	}
	plain, err := aead.Open(nil, body[:nonceSize], body[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return plain, nil
}

func (s *Store) passphraseAEAD(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(s.pass, salt, s.scryptN, 8, 1, 32)
	if err != nil {
		return nil, err
	}
	defer zero(key)
	return newAESGCM(key)
}

func newAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
