package services

import (
	"context"
	"errors"
	"strings"

	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const fallbackDisplayName = "Member"

// ProfileService answers the questions messaging asks about members.
type ProfileService struct {
	db *gorm.DB
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{db: db}
}

// IsEligibleReceiver reports whether userID exists and is active and verified.
func (s *ProfileService) IsEligibleReceiver(ctx context.Context, userID uuid.UUID) (bool, error) {
	var user models.User
	err := s.db.WithContext(ctx).Select("id", "is_active", "is_verified").Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.IsActive && user.IsVerified, nil
}

func (s *ProfileService) DisplayName(ctx context.Context, userID uuid.UUID) string {
	return s.DisplayNames(ctx, []uuid.UUID{userID})[userID]
}

// DisplayNames resolves names in one query. Unknown or blank names come
// back as "Member".
func (s *ProfileService) DisplayNames(ctx context.Context, ids []uuid.UUID) map[uuid.UUID]string {
	names := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		names[id] = fallbackDisplayName
	}
	if len(ids) == 0 {
		return names
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Select("id", "display_name").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return names
	}
	for _, u := range users {
		if name := strings.TrimSpace(u.DisplayName); name != "" {
			names[u.ID] = name
		}
	}
	return names
}

// Contact returns the phone or email userID has on file.
func (s *ProfileService) Contact(ctx context.Context, userID uuid.UUID, purpose Purpose) (string, error) {
	var user models.User
	err := s.db.WithContext(ctx).Select("id", "email", "phone").Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if purpose == PurposePhone {
		return user.Phone, nil
	}
	return user.Email, nil
}

// MarkVerified flags a member as verified after a confirmed code.
func (s *ProfileService) MarkVerified(ctx context.Context, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("is_verified", true).Error
}
