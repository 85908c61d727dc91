// internal/services/user_service.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/clayfire/storefront-api/internal/models"
)

// UserService keeps the local Profile mirror of auth provider accounts.
type UserService struct {
	db *gorm.DB
}

type UpdateProfileRequest struct {
	FullName *string `json:"full_name,omitempty" validate:"omitempty,max=255"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) GetProfileByAuthID(authID string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.Where("auth_id = ?", authID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &profile, nil
}

// EnsureProfile returns the profile for authID, creating a customer profile
// on the first authenticated request.
func (s *UserService) EnsureProfile(authID, email string) (*models.Profile, error) {
	profile, err := s.GetProfileByAuthID(authID)
	if err == nil {
		if email != "" && !strings.EqualFold(profile.Email, email) {
			if err := s.db.Model(profile).Update("email", email).Error; err != nil {
				return nil, fmt.Errorf("failed to sync profile email: %w", err)
			}
			profile.Email = email
		}
		return profile, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}

	profile = &models.Profile{
		AuthID:   authID,
		Email:    email,
		UserType: models.UserTypeCustomer,
	}
	if err := s.db.Create(profile).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Created by a concurrent request.
			return s.GetProfileByAuthID(authID)
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"profile_id": profile.ID,
		"auth_id":    authID,
	}).Info("Profile created")

	return profile, nil
}

func (s *UserService) UpdateProfile(authID string, req *UpdateProfileRequest) (*models.Profile, error) {
	profile, err := s.GetProfileByAuthID(authID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.FullName != nil {
		updates["full_name"] = strings.TrimSpace(*req.FullName)
	}
	if req.Phone != nil {
		updates["phone"] = strings.TrimSpace(*req.Phone)
	}
	if len(updates) == 0 {
		return profile, nil
	}

	if err := s.db.Model(profile).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return s.GetProfileByAuthID(authID)
}
