package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"magnetd/native/magnet"
	"magnetd/storage"
)

var (
	funderRecordPrefix   = []byte("magnet/funder/")
	magnetRecordPrefix   = []byte("magnet/record/")
	recipientIndexPrefix = []byte("magnet/recipient/")
	vaultSeedPrefix      = []byte("magnet/vault/")
	funderCountKey       = []byte("magnet/funders/count")
	magnetCounterKey     = []byte("magnet/records/next-id")
)

// Manager persists funder and magnet records in a key-value database. Records
// are RLP encoded under keccak-hashed prefixed keys so the layout is stable
// regardless of the backing store. It implements the state interface consumed
// by the magnet engine.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager backed by the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func funderStorageKey(addr [20]byte) []byte {
	buf := make([]byte, len(funderRecordPrefix)+len(addr))
	copy(buf, funderRecordPrefix)
	copy(buf[len(funderRecordPrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

func magnetStorageKey(id uint64) []byte {
	buf := make([]byte, len(magnetRecordPrefix)+8)
	copy(buf, magnetRecordPrefix)
	binary.BigEndian.PutUint64(buf[len(magnetRecordPrefix):], id)
	return ethcrypto.Keccak256(buf)
}

func recipientIndexKey(addr [20]byte) []byte {
	buf := make([]byte, len(recipientIndexPrefix)+len(addr))
	copy(buf, recipientIndexPrefix)
	copy(buf[len(recipientIndexPrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

type storedFunder struct {
	ID          uint64
	Funder      [20]byte
	Admins      [][20]byte
	Name        string
	Description string
	ImageURL    string
	MagnetIDs   []uint64
}

func newStoredFunder(f *magnet.Funder) *storedFunder {
	if f == nil {
		return nil
	}
	return &storedFunder{
		ID:          f.ID,
		Funder:      f.Funder,
		Admins:      append([][20]byte(nil), f.Admins...),
		Name:        f.Name,
		Description: f.Description,
		ImageURL:    f.ImageURL,
		MagnetIDs:   append([]uint64(nil), f.MagnetIDs...),
	}
}

func (s *storedFunder) toFunder() (*magnet.Funder, error) {
	if s == nil {
		return nil, fmt.Errorf("funder: nil storage record")
	}
	out := &magnet.Funder{
		ID:          s.ID,
		Funder:      s.Funder,
		Admins:      append([][20]byte(nil), s.Admins...),
		Name:        s.Name,
		Description: s.Description,
		ImageURL:    s.ImageURL,
		MagnetIDs:   append([]uint64(nil), s.MagnetIDs...),
	}
	if out.Admins == nil {
		out.Admins = [][20]byte{}
	}
	if out.MagnetIDs == nil {
		out.MagnetIDs = []uint64{}
	}
	return out, nil
}

type storedMagnet struct {
	ID                  uint64
	Recipient           [20]byte
	Token               [20]byte
	Funder              [20]byte
	StartTime           uint64
	VestingPeriodLength uint64
	AmountPerPeriod     *big.Int
	CliffTime           uint64
	EndTime             uint64
	Message             string
	Balance             *big.Int
	AmountWithdrawn     *big.Int
}

func newStoredMagnet(m *magnet.VestingMagnet) *storedMagnet {
	if m == nil {
		return nil
	}
	clone := m.Clone()
	return &storedMagnet{
		ID:                  clone.ID,
		Recipient:           clone.Recipient,
		Token:               clone.Token,
		Funder:              clone.Funder,
		StartTime:           clone.StartTime,
		VestingPeriodLength: clone.VestingPeriodLength,
		AmountPerPeriod:     clone.AmountPerPeriod,
		CliffTime:           clone.CliffTime,
		EndTime:             clone.EndTime,
		Message:             clone.Message,
		Balance:             clone.Balance,
		AmountWithdrawn:     clone.AmountWithdrawn,
	}
}

func (s *storedMagnet) toMagnet() (*magnet.VestingMagnet, error) {
	if s == nil {
		return nil, fmt.Errorf("magnet: nil storage record")
	}
	out := &magnet.VestingMagnet{
		ID:                  s.ID,
		Recipient:           s.Recipient,
		Token:               s.Token,
		Funder:              s.Funder,
		StartTime:           s.StartTime,
		VestingPeriodLength: s.VestingPeriodLength,
		AmountPerPeriod:     s.AmountPerPeriod,
		CliffTime:           s.CliffTime,
		EndTime:             s.EndTime,
		Message:             s.Message,
		Balance:             s.Balance,
		AmountWithdrawn:     s.AmountWithdrawn,
	}
	return magnet.SanitizeMagnet(out)
}

// FunderPut stores the funder record, creating it if the address has not
// registered before. First-time inserts advance the funder count.
func (m *Manager) FunderPut(f *magnet.Funder) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state manager uninitialised")
	}
	if f == nil {
		return fmt.Errorf("nil funder")
	}
	key := funderStorageKey(f.Funder)
	_, err := m.db.Get(key)
	isNew := errors.Is(err, storage.ErrKeyNotFound)
	if err != nil && !isNew {
		return err
	}
	encoded, err := rlp.EncodeToBytes(newStoredFunder(f))
	if err != nil {
		return err
	}
	if err := m.db.Put(key, encoded); err != nil {
		return err
	}
	if isNew {
		count, err := m.FunderCount()
		if err != nil {
			return err
		}
		return m.putCounter(funderCountKey, count+1)
	}
	return nil
}

// FunderGet loads the funder record for addr.
func (m *Manager) FunderGet(addr [20]byte) (*magnet.Funder, bool) {
	if m == nil || m.db == nil {
		return nil, false
	}
	raw, err := m.db.Get(funderStorageKey(addr))
	if err != nil {
		return nil, false
	}
	stored := new(storedFunder)
	if err := rlp.DecodeBytes(raw, stored); err != nil {
		return nil, false
	}
	funder, err := stored.toFunder()
	if err != nil {
		return nil, false
	}
	return funder, true
}

// FunderCount returns the number of registered funders.
func (m *Manager) FunderCount() (uint64, error) {
	return m.getCounter(funderCountKey)
}

// MagnetPut stores the magnet record after sanitizing it.
func (m *Manager) MagnetPut(vm *magnet.VestingMagnet) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state manager uninitialised")
	}
	sanitized, err := magnet.SanitizeMagnet(vm)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(newStoredMagnet(sanitized))
	if err != nil {
		return err
	}
	return m.db.Put(magnetStorageKey(sanitized.ID), encoded)
}

// MagnetGet loads the magnet record for id.
func (m *Manager) MagnetGet(id uint64) (*magnet.VestingMagnet, bool) {
	if m == nil || m.db == nil {
		return nil, false
	}
	raw, err := m.db.Get(magnetStorageKey(id))
	if err != nil {
		return nil, false
	}
	stored := new(storedMagnet)
	if err := rlp.DecodeBytes(raw, stored); err != nil {
		return nil, false
	}
	vm, err := stored.toMagnet()
	if err != nil {
		return nil, false
	}
	return vm, true
}

// MagnetCount returns the number of minted magnets, which equals the id the
// next mint will receive.
func (m *Manager) MagnetCount() (uint64, error) {
	return m.getCounter(magnetCounterKey)
}

// NextMagnetID allocates the next sequential magnet id. Ids are never reused.
func (m *Manager) NextMagnetID() (uint64, error) {
	next, err := m.getCounter(magnetCounterKey)
	if err != nil {
		return 0, err
	}
	if err := m.putCounter(magnetCounterKey, next+1); err != nil {
		return 0, err
	}
	return next, nil
}

// RecipientIndexAppend records id under the recipient's magnet index. The
// index is append-only; insertion order is preserved for listing queries.
func (m *Manager) RecipientIndexAppend(recipient [20]byte, id uint64) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state manager uninitialised")
	}
	ids, err := m.MagnetIDsByRecipient(recipient)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(append(ids, id))
	if err != nil {
		return err
	}
	return m.db.Put(recipientIndexKey(recipient), encoded)
}

// MagnetIDsByRecipient returns the magnet ids naming the recipient, in mint
// order. Unknown recipients report an empty list.
func (m *Manager) MagnetIDsByRecipient(recipient [20]byte) ([]uint64, error) {
	if m == nil || m.db == nil {
		return nil, fmt.Errorf("state manager uninitialised")
	}
	raw, err := m.db.Get(recipientIndexKey(recipient))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return []uint64{}, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []uint64
	if err := rlp.DecodeBytes(raw, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// MagnetVaultAddress derives the deterministic escrow vault address holding
// deposits of the given token.
func (m *Manager) MagnetVaultAddress(token [20]byte) ([20]byte, error) {
	buf := make([]byte, len(vaultSeedPrefix)+len(token))
	copy(buf, vaultSeedPrefix)
	copy(buf[len(vaultSeedPrefix):], token[:])
	digest := ethcrypto.Keccak256(buf)
	var vault [20]byte
	copy(vault[:], digest[12:])
	return vault, nil
}

func (m *Manager) getCounter(key []byte) (uint64, error) {
	if m == nil || m.db == nil {
		return 0, fmt.Errorf("state manager uninitialised")
	}
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("corrupt counter value under %q", key)
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (m *Manager) putCounter(key []byte, value uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, value)
	return m.db.Put(key, buf)
}
