package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/hcommons/membersync/domain"
)

// RoleRepository is the MongoDB implementation of domain.RoleRepository.
type RoleRepository struct {
	roles *mongo.Collection
}

// NewRoleRepository creates the repository and ensures its username index.
func NewRoleRepository(ctx context.Context, db *mongo.Database) (*RoleRepository, error) {
	repo := &RoleRepository{roles: db.Collection(RolesCollection)}

	_, err := repo.roles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "username", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create role index: %w", err)
	}

	return repo, nil
}

// ListByUsername implements domain.RoleRepository.
func (r *RoleRepository) ListByUsername(ctx context.Context, username string) ([]*domain.Role, error) {
	cursor, err := r.roles.Find(ctx, bson.M{"username": username})
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer cursor.Close(ctx)

	var roles []*domain.Role
	if err := cursor.All(ctx, &roles); err != nil {
		return nil, fmt.Errorf("failed to decode roles: %w", err)
	}
	return roles, nil
}

// UpdateStatus implements domain.RoleRepository.
func (r *RoleRepository) UpdateStatus(ctx context.Context, roleID string, status domain.RoleStatus) error {
	_, err := r.roles.UpdateOne(ctx,
		bson.M{"_id": roleID},
		bson.M{"$set": bson.M{"status": status}},
	)
	if err != nil {
		return fmt.Errorf("failed to update role status: %w", err)
	}
	return nil
}

var _ domain.RoleRepository = (*RoleRepository)(nil)
