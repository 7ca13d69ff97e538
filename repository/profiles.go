package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"inkwell/models"
)

type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID uint) (*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) error
	ToggleFollower(ctx context.Context, profileID, userID uint) (bool, error)
	IsFollower(ctx context.Context, profileID, userID uint) (bool, error)
	CountFollowers(ctx context.Context, profileID uint) (int64, error)
	CountFollowing(ctx context.Context, userID uint) (int64, error)
}

type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByUserID(ctx context.Context, userID uint) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, notFound(err, "profile of user", userID)
	}
	return &profile, nil
}

func (r *profileRepository) Update(ctx context.Context, profile *models.Profile) error {
	err := r.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", profile.ID).Updates(map[string]interface{}{
		"bio":      profile.Bio,
		"avatar":   profile.Avatar,
		"website":  profile.Website,
		"location": profile.Location,
	}).Error
	return errors.Wrap(err, "update profile")
}

// ToggleFollower adds userID to the profile's follower set, or removes it when
// already there. It reports whether userID follows the profile afterwards.
func (r *profileRepository) ToggleFollower(ctx context.Context, profileID, userID uint) (bool, error) {
	following := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("profile_id = ? AND user_id = ?", profileID, userID).Delete(&models.ProfileFollower{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}

		following = true
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.ProfileFollower{ProfileID: profileID, UserID: userID}).Error
	})
	if err != nil {
		return false, errors.Wrap(err, "toggle follower")
	}
	return following, nil
}

func (r *profileRepository) IsFollower(ctx context.Context, profileID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProfileFollower{}).
		Where("profile_id = ? AND user_id = ?", profileID, userID).
		Count(&count).Error
	return count > 0, errors.Wrap(err, "check follower")
}

func (r *profileRepository) CountFollowers(ctx context.Context, profileID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProfileFollower{}).Where("profile_id = ?", profileID).Count(&count).Error
	return count, errors.Wrap(err, "count followers")
}

func (r *profileRepository) CountFollowing(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProfileFollower{}).Where("user_id = ?", userID).Count(&count).Error
	return count, errors.Wrap(err, "count following")
}
