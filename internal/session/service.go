package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"gorm.io/gorm"

	"chatgate/internal/common"
)

// Fingerprint derives a stable anonymous identity from request attributes.
func Fingerprint(userAgent, acceptLanguage, clientIP string) string {
	sum := sha256.Sum256([]byte(userAgent + "|" + acceptLanguage + "|" + clientIP))
	return hex.EncodeToString(sum[:])
}

type Service struct {
	repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

// EnsureSignedIn returns the active session for a signed-in user, creating
// one when none exists.
func (s *Service) EnsureSignedIn(ctx context.Context, userID string) (*Session, error) {
	return s.ensure(ctx, userID, SignedInUser)
}

// EnsureAnonymous returns the active session matching the request
// fingerprint, creating one when none exists.
func (s *Service) EnsureAnonymous(ctx context.Context, userAgent, acceptLanguage, clientIP string) (*Session, error) {
	return s.ensure(ctx, Fingerprint(userAgent, acceptLanguage, clientIP), NonSignedInUser)
}

func (s *Service) ensure(ctx context.Context, refID string, kind ReferenceKind) (*Session, error) {
	existing, err := s.repo.FindActiveByReference(ctx, refID, kind)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	sess := &Session{
		ID:            id,
		ReferenceID:   refID,
		ReferenceKind: kind,
		Active:        true,
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) GetActive(ctx context.Context, id string) (*Session, error) {
	return s.repo.GetActive(ctx, id)
}

func (s *Service) Deactivate(ctx context.Context, id string) error {
	return s.repo.Deactivate(ctx, id)
}

func (s *Service) DeactivateAllForUser(ctx context.Context, userID string) (int64, error) {
	return s.repo.DeactivateAllForReference(ctx, userID, SignedInUser)
}
