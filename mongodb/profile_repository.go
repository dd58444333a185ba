package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hcommons/membersync/domain"
)

// ErrProfileNotFound is returned when a username has no profile record.
var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepository is the MongoDB implementation of
// domain.ProfileRepository.
type ProfileRepository struct {
	profiles *mongo.Collection
}

// NewProfileRepository creates the repository and ensures its indexes. The
// composite (username, _id) index backs both directory keyset queries and
// the prefix count.
func NewProfileRepository(ctx context.Context, db *mongo.Database) (*ProfileRepository, error) {
	repo := &ProfileRepository{profiles: db.Collection(ProfilesCollection)}

	_, err := repo.profiles.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "username", Value: 1}, {Key: "_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create profile indexes: %w", err)
	}

	return repo, nil
}

// GetByUsername implements domain.ProfileRepository.
func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (*domain.Profile, error) {
	var profile domain.Profile
	err := r.profiles.FindOne(ctx, bson.M{"username": username}).Decode(&profile)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

// Create implements domain.ProfileRepository.
func (r *ProfileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	now := time.Now().UTC()
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	profile.CreatedAt = now
	profile.UpdatedAt = now

	if _, err := r.profiles.InsertOne(ctx, profile); err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// Update implements domain.ProfileRepository.
func (r *ProfileRepository) Update(ctx context.Context, profile *domain.Profile) error {
	profile.UpdatedAt = time.Now().UTC()

	result, err := r.profiles.ReplaceOne(ctx, bson.M{"_id": profile.ID}, profile)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// UpdateSyncState implements domain.ProfileRepository. Only the external-ID
// and group maps are written, so a partial sync run cannot clobber fields
// another request is changing.
func (r *ProfileRepository) UpdateSyncState(ctx context.Context, profile *domain.Profile) error {
	update := bson.M{"$set": bson.M{
		"external_sync_ids":    profile.ExternalSyncIDs,
		"in_membership_groups": profile.InMembershipGroups,
		"updated_at":           time.Now().UTC(),
	}}

	result, err := r.profiles.UpdateOne(ctx, bson.M{"_id": profile.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update sync state: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrProfileNotFound
	}
	return nil
}

var _ domain.ProfileRepository = (*ProfileRepository)(nil)
