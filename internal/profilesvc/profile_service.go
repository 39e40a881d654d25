// Package profilesvc persists per-device records: when a keyboard was
// first and last seen and which lighting state was applied to it last.
package profilesvc

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger"
	"go.uber.org/zap"

	"github.com/openaula/aulactl/internal/hidsvc"
	"github.com/openaula/aulactl/internal/protocol"
)

var ErrProfileNotFound = errors.New("device profile not found")

// AppliedState is the last lighting state pushed to a device.
type AppliedState struct {
	Effect     protocol.Effect `json:"effect"`
	EffectName string          `json:"effectName"`
	Brightness *uint8          `json:"brightness,omitempty"`
	Speed      *uint8          `json:"speed,omitempty"`
	Color      *protocol.RGB   `json:"color,omitempty"`
	Colorful   bool            `json:"colorful,omitempty"`
	PerKey     bool            `json:"perKey,omitempty"`
	Preset     string          `json:"preset,omitempty"`
	AppliedAt  time.Time       `json:"appliedAt"`
}

// Profile is one device record.
type Profile struct {
	Address     hidsvc.Address `json:"address"`
	Mode        string         `json:"mode"`
	Product     string         `json:"product"`
	FirstSeenAt time.Time      `json:"firstSeenAt"`
	LastSeenAt  time.Time      `json:"lastSeenAt"`
	LastApplied *AppliedState  `json:"lastApplied,omitempty"`
}

type Service struct {
	db  *badger.DB
	log *zap.Logger
	now func() time.Time
}

func New(db *badger.DB, log *zap.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		db:  db,
		log: log,
		now: now,
	}
}

func (s *Service) profileKey(addr hidsvc.Address) []byte {
	return []byte(fmt.Sprintf("aula/devices/%s", addr))
}

// Touch upserts the record for a device that was just seen, preserving
// FirstSeenAt and the last applied state across sessions.
func (s *Service) Touch(col hidsvc.Collection) (Profile, error) {
	var profile Profile
	now := s.now()
	err := s.db.Update(func(txn *badger.Txn) error {
		key := s.profileKey(col.Address)
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &profile)
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal profile: %w", err)
			}
		}
		profile.Address = col.Address
		profile.Mode = col.Mode
		profile.Product = col.Product
		if profile.FirstSeenAt.IsZero() {
			profile.FirstSeenAt = now
		}
		profile.LastSeenAt = now
		b, err := json.Marshal(profile)
		if err != nil {
			return fmt.Errorf("failed to marshal profile: %w", err)
		}
		return txn.Set(key, b)
	})
	if err != nil {
		return Profile{}, fmt.Errorf("failed to touch profile: %w", err)
	}
	return profile, nil
}

// RecordApplied stores the state of the lighting transaction that just
// completed against the device.
func (s *Service) RecordApplied(addr hidsvc.Address, state AppliedState) error {
	state.AppliedAt = s.now()
	err := s.db.Update(func(txn *badger.Txn) error {
		key := s.profileKey(addr)
		var profile Profile
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			profile.Address = addr
			profile.FirstSeenAt = state.AppliedAt
		case err != nil:
			return err
		default:
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &profile)
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal profile: %w", err)
			}
		}
		profile.LastSeenAt = state.AppliedAt
		profile.LastApplied = &state
		b, err := json.Marshal(profile)
		if err != nil {
			return fmt.Errorf("failed to marshal profile: %w", err)
		}
		return txn.Set(key, b)
	})
	if err != nil {
		return fmt.Errorf("failed to record applied state: %w", err)
	}
	return nil
}

// Get returns a single device record.
func (s *Service) Get(addr hidsvc.Address) (Profile, error) {
	var profile Profile
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.profileKey(addr))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrProfileNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &profile)
		})
	})
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return Profile{}, err
		}
		return Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// List returns every known device record.
func (s *Service) List() ([]Profile, error) {
	var profiles []Profile
	err := s.db.View(func(txn *badger.Txn) error {
		iter := txn.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()
		prefix := []byte("aula/devices/")
		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			var profile Profile
			err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &profile)
			})
			if err != nil {
				return err
			}
			profiles = append(profiles, profile)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}
