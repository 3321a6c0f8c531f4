package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	ac "github.com/interviewhub/authcore"
)

func (s *FSStore) getLedgerDir() string {
	return filepath.Join(s.StoragePath, "ledger")
}

func (s *FSStore) getRecordPath(id string) string {
	return filepath.Join(s.getLedgerDir(), safeName(id))
}

func (s *FSStore) Consume(ctx context.Context, record ac.TokenRecord) error {
	record.Kind = ac.RecordConsumed
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	created, err := createExclusive(s.getRecordPath(record.ID), data)
	if err != nil {
		return err
	}
	if !created {
		return ac.ErrTokenAlreadyUsed
	}
	return nil
}

func (s *FSStore) Revoke(ctx context.Context, record ac.TokenRecord) error {
	record.Kind = ac.RecordRevoked
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomicFile(s.getRecordPath(record.ID), data)
}

func (s *FSStore) IsRevoked(ctx context.Context, id string) (bool, error) {
	record, err := s.readRecord(s.getRecordPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return record.Kind == ac.RecordRevoked, nil
}

func (s *FSStore) readRecord(path string) (*ac.TokenRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var record ac.TokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("corrupt ledger file %s: %w", path, err)
	}
	return &record, nil
}

// PurgeExpired scans the ledger directory. Unreadable entries are skipped so one
// bad file cannot stall maintenance.
func (s *FSStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	entries, err := os.ReadDir(s.getLedgerDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	var purged int64
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.getLedgerDir(), entry.Name())
		record, err := s.readRecord(path)
		if err != nil {
			continue
		}
		if record.ExpiresAt.Before(before) {
			if err := os.Remove(path); err == nil {
				purged++
			}
		}
	}
	return purged, nil
}
