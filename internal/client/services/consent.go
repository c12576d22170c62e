package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lumensanctum/sanctum/internal/canon"
	"github.com/lumensanctum/sanctum/internal/client/models"
	"github.com/lumensanctum/sanctum/internal/client/securestore"
	"github.com/lumensanctum/sanctum/internal/common"
	"github.com/lumensanctum/sanctum/internal/logging"
)

const consentAccepted = "true"

// ConsentService manages the two consent gates and their append-only
// archives.
type ConsentService struct {
	kv     securestore.KV
	clock  Clock
	logger logging.Logger
}

func NewConsentService(kv securestore.KV, clock Clock, logger logging.Logger) *ConsentService {
	return &ConsentService{kv: kv, clock: clock, logger: logger.With("component", "consent")}
}

func consentKeys(kind models.ConsentKind) (flag, archive string, err error) {
	switch kind {
	case models.ConsentGeneral:
		return common.KeyConsentGeneral, common.KeyConsentArchiveGeneral, nil
	case models.ConsentData:
		return common.KeyConsentData, common.KeyConsentArchiveData, nil
	}
	return "", "", fmt.Errorf("unknown consent kind %q", kind)
}

// Given reports whether the gate flag is set.
func (s *ConsentService) Given(ctx context.Context, kind models.ConsentKind) (bool, error) {
	flag, _, err := consentKeys(kind)
	if err != nil {
		return false, err
	}
	v, _, err := s.kv.Get(ctx, flag)
	if err != nil {
		return false, err
	}
	return v == consentAccepted, nil
}

// Accept appends a record for username to the gate's archive and sets the
// flag, both in one transaction.
func (s *ConsentService) Accept(ctx context.Context, kind models.ConsentKind, username string) (models.ConsentRecord, error) {
	flag, archiveKey, err := consentKeys(kind)
	if err != nil {
		return models.ConsentRecord{}, err
	}
	rec := models.ConsentRecord{
		Username:  strings.TrimSpace(username),
		Timestamp: s.clock.Now(),
		Accepted:  true,
	}

	err = s.kv.InTx(ctx, func(ctx context.Context, tx securestore.KV) error {
		archive, err := readArchive(ctx, tx, archiveKey)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(append(archive, rec))
		if err != nil {
			return err
		}
		if err := tx.Set(ctx, archiveKey, string(raw)); err != nil {
			return err
		}
		return tx.Set(ctx, flag, consentAccepted)
	})
	if err != nil {
		s.logger.Error(ctx, "could not save consent", "kind", kind, "error", err)
		return models.ConsentRecord{}, fmt.Errorf("save %s consent: %w", kind, err)
	}
	s.logger.Info(ctx, "consent accepted", "kind", kind, "username", rec.Username)
	return rec, nil
}

func (s *ConsentService) Archive(ctx context.Context, kind models.ConsentKind) ([]models.ConsentRecord, error) {
	_, archiveKey, err := consentKeys(kind)
	if err != nil {
		return nil, err
	}
	return readArchive(ctx, s.kv, archiveKey)
}

// Digest is the hex SHA-256 of the archive's RFC 8785 form. An empty archive
// digests as "[]".
func (s *ConsentService) Digest(ctx context.Context, kind models.ConsentKind) (string, error) {
	archive, err := s.Archive(ctx, kind)
	if err != nil {
		return "", err
	}
	if archive == nil {
		archive = []models.ConsentRecord{}
	}
	return canon.DigestValue(archive)
}

func readArchive(ctx context.Context, kv securestore.KV, key string) ([]models.ConsentRecord, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	var archive []models.ConsentRecord
	if err := json.Unmarshal([]byte(raw), &archive); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedArchive, err)
	}
	return archive, nil
}
