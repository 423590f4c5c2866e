package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hazardmap/mapservice/internal/geo"
	"github.com/hazardmap/mapservice/internal/model"
	"github.com/hazardmap/mapservice/pkg/core"
)

// Store persists resolved lookups across restarts.
type Store interface {
	LoadCandidate(ctx context.Context, key string) (Candidate, bool, error)
	SaveCandidate(ctx context.Context, key string, c Candidate) error
	LoadLocation(ctx context.Context, key string) (core.Location, bool, error)
	SaveLocation(ctx context.Context, key string, loc core.Location) error
}

// GormStore keeps lookups in the geocode_entries and reverse_entries tables.
type GormStore struct {
	db   *gorm.DB
	proj *geo.WebMercator
}

// NewGormStore wraps an already migrated database.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, proj: geo.NewWebMercator()}
}

func (s *GormStore) LoadCandidate(ctx context.Context, key string) (Candidate, bool, error) {
	var entry model.GeocodeEntry
	err := s.db.WithContext(ctx).Where("address = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Candidate{}, false, nil
	}
	if err != nil {
		return Candidate{}, false, fmt.Errorf("load geocode entry: %w", err)
	}

	s.db.WithContext(ctx).Model(&entry).UpdateColumn("hits", gorm.Expr("hits + 1"))

	c := Candidate{
		Address:     entry.MatchedAddress,
		Coordinates: core.Coordinates{Longitude: entry.Longitude, Latitude: entry.Latitude},
		Score:       entry.Score,
	}
	if len(entry.Attributes) > 0 {
		if err := json.Unmarshal(entry.Attributes, &c.Attributes); err != nil {
			return Candidate{}, false, fmt.Errorf("decode geocode attributes: %w", err)
		}
	}
	return c, true, nil
}

func (s *GormStore) SaveCandidate(ctx context.Context, key string, c Candidate) error {
	attrs, err := json.Marshal(c.Attributes)
	if err != nil {
		return fmt.Errorf("encode geocode attributes: %w", err)
	}

	location, err := s.proj.Point3857(c.Coordinates)
	if err != nil {
		return fmt.Errorf("project geocode entry %q: %w", key, err)
	}

	entry := model.GeocodeEntry{
		Address:        key,
		MatchedAddress: c.Address,
		Longitude:      c.Coordinates.Longitude,
		Latitude:       c.Coordinates.Latitude,
		Location:       location,
		Score:          c.Score,
		Attributes:     datatypes.JSON(attrs),
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"matched_address", "longitude", "latitude", "location", "score", "attributes", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("save geocode entry %q: %w", key, err)
	}
	return nil
}

func (s *GormStore) LoadLocation(ctx context.Context, key string) (core.Location, bool, error) {
	var entry model.ReverseEntry
	err := s.db.WithContext(ctx).Where("point_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.Location{}, false, nil
	}
	if err != nil {
		return core.Location{}, false, fmt.Errorf("load reverse entry: %w", err)
	}
	return core.Location{
		Address:     entry.Address,
		Label:       entry.Label,
		Coordinates: core.Coordinates{Longitude: entry.Longitude, Latitude: entry.Latitude},
	}, true, nil
}

func (s *GormStore) SaveLocation(ctx context.Context, key string, loc core.Location) error {
	entry := model.ReverseEntry{
		PointKey:  key,
		Address:   loc.Address,
		Label:     loc.Label,
		Longitude: loc.Coordinates.Longitude,
		Latitude:  loc.Coordinates.Latitude,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "point_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"address", "label", "longitude", "latitude", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("save reverse entry %q: %w", key, err)
	}
	return nil
}

// PointKey rounds a point to 5 decimal places (about a metre) for reverse lookups.
func PointKey(c core.Coordinates) string {
	round := func(v float64) string {
		return strconv.FormatFloat(math.Round(v*1e5)/1e5, 'f', 5, 64)
	}
	return round(c.Longitude) + "," + round(c.Latitude)
}

// ReverseKey scopes a PointKey to a search distance; the same click with a
// wider radius can resolve to a different address.
func ReverseKey(c core.Coordinates, distance float64) string {
	return PointKey(c) + "@" + strconv.FormatFloat(distance, 'f', -1, 64)
}
