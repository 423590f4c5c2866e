package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&GeocodeEntry{},
	&ReverseEntry{},
	&ServiceStatus{},
}

// GeocodeEntry is a resolved address kept so repeat lookups skip the remote geocoder.
type GeocodeEntry struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Address is the normalized lookup key.
	Address        string         `json:"address" gorm:"size:512;uniqueIndex"`
	MatchedAddress string         `json:"matchedAddress" gorm:"size:512"`
	Longitude      float64        `json:"longitude"`
	Latitude       float64        `json:"latitude"`
	Location       geom.Point     `json:"location"` // Web Mercator (EPSG:3857)
	Score          float64        `json:"score"`
	Attributes     datatypes.JSON `json:"attributes"`
	Hits           uint           `json:"hits" gorm:"default:0"`
}

func (*GeocodeEntry) TableName() string {
	return "geocode_entries"
}

// ReverseEntry is a resolved point-to-address lookup. Points are keyed on a
// rounded "lon,lat" string so nearby clicks share an entry.
type ReverseEntry struct {
	gorm.Model
	PointKey  string  `json:"pointKey" gorm:"size:64;uniqueIndex"`
	Address   string  `json:"address" gorm:"size:512"`
	Label     string  `json:"label" gorm:"size:512"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

func (*ReverseEntry) TableName() string {
	return "reverse_entries"
}

// ServiceStatus is one periodic snapshot of the running service.
type ServiceStatus struct {
	ID              uint      `json:"id" gorm:"primarykey"`
	Time            time.Time `json:"time" gorm:"index"`
	Sessions        int       `json:"sessions"`
	Markers         int       `json:"markers"`
	LoadingSessions int       `json:"loadingSessions"`
	CacheEntries    int       `json:"cacheEntries"`
	UptimeSeconds   float64   `json:"uptimeSeconds"`
}

func (*ServiceStatus) TableName() string {
	return "service_status"
}
