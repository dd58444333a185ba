package mongodb

import (
	"context"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hcommons/membersync/directory"
	"github.com/hcommons/membersync/domain"
)

// DirectoryStore answers the paginator's keyset queries over the profiles
// collection. All queries run on the composite (username, _id) index
// created by NewProfileRepository.
type DirectoryStore struct {
	profiles *mongo.Collection
}

// NewDirectoryStore creates a directory store over the same profiles
// collection the repository writes to.
func NewDirectoryStore(db *mongo.Database) *DirectoryStore {
	return &DirectoryStore{profiles: db.Collection(ProfilesCollection)}
}

var (
	ascending  = bson.D{{Key: "username", Value: 1}, {Key: "_id", Value: 1}}
	descending = bson.D{{Key: "username", Value: -1}, {Key: "_id", Value: -1}}
)

// afterFilter matches rows strictly greater than the boundary in
// (username, _id) order.
func afterFilter(c directory.Cursor) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"username": bson.M{"$gt": c.Username}},
		bson.M{"username": c.Username, "_id": bson.M{"$gt": c.ID}},
	}}
}

// beforeFilter matches rows strictly less than the boundary.
func beforeFilter(c directory.Cursor) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"username": bson.M{"$lt": c.Username}},
		bson.M{"username": c.Username, "_id": bson.M{"$lt": c.ID}},
	}}
}

// prefixFilter matches rows at or before the given row, inclusive.
func prefixFilter(c directory.Cursor) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"username": bson.M{"$lt": c.Username}},
		bson.M{"username": c.Username, "_id": bson.M{"$lte": c.ID}},
	}}
}

func (s *DirectoryStore) find(ctx context.Context, filter bson.M, sort bson.D, limit int) ([]*domain.Profile, error) {
	opts := options.Find().SetSort(sort).SetLimit(int64(limit))

	cursor, err := s.profiles.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query directory: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []*domain.Profile
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode directory rows: %w", err)
	}
	return rows, nil
}

// First implements directory.Store.
func (s *DirectoryStore) First(ctx context.Context, limit int) ([]*domain.Profile, error) {
	return s.find(ctx, bson.M{}, ascending, limit)
}

// After implements directory.Store.
func (s *DirectoryStore) After(ctx context.Context, boundary directory.Cursor, limit int) ([]*domain.Profile, error) {
	return s.find(ctx, afterFilter(boundary), ascending, limit)
}

// Before implements directory.Store.
func (s *DirectoryStore) Before(ctx context.Context, boundary directory.Cursor, limit int) ([]*domain.Profile, error) {
	return s.find(ctx, beforeFilter(boundary), descending, limit)
}

// PrefixCount implements directory.Store.
func (s *DirectoryStore) PrefixCount(ctx context.Context, row directory.Cursor) (int64, error) {
	count, err := s.profiles.CountDocuments(ctx, prefixFilter(row))
	if err != nil {
		return 0, fmt.Errorf("failed to count directory prefix: %w", err)
	}
	return count, nil
}

// TotalCount implements directory.Store.
func (s *DirectoryStore) TotalCount(ctx context.Context) (int64, error) {
	count, err := s.profiles.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count directory: %w", err)
	}
	return count, nil
}

// SearchByName returns profiles whose username or display name contains the
// query, in directory order. Search results are not paginated.
func (s *DirectoryStore) SearchByName(ctx context.Context, query string, limit int) ([]*domain.Profile, error) {
	pattern := primitiveRegex(query)
	filter := bson.M{"$or": bson.A{
		bson.M{"username": pattern},
		bson.M{"name": pattern},
	}}
	return s.find(ctx, filter, ascending, limit)
}

// primitiveRegex builds a case-insensitive contains match with the query
// treated as a literal.
func primitiveRegex(query string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
}

var _ directory.Store = (*DirectoryStore)(nil)
