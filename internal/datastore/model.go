// model.go defines the persisted data model: locations and their
// append-only weather readings.
package datastore

import "time"

// Location is a uniquely-named place for which weather is tracked.
// Identity is the (name, country, region) tuple; coordinates and local time
// are refreshed in place on every re-fetch. Rows are never deleted by the
// pipeline.
type Location struct {
	ID              uint   `gorm:"primaryKey"`
	Name            string `gorm:"size:255;not null;uniqueIndex:idx_locations_identity;index:idx_locations_name_country"`
	Region          string `gorm:"size:255;uniqueIndex:idx_locations_identity"`
	Country         string `gorm:"size:255;not null;uniqueIndex:idx_locations_identity;index:idx_locations_name_country"`
	Lat             *float64
	Lon             *float64
	TzID            string `gorm:"size:255"`
	LocaltimeEpoch  *int64
	LocaltimeString string `gorm:"size:50"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Readings []Weather `gorm:"foreignKey:LocationID;constraint:OnDelete:CASCADE"`
}

// Weather is one immutable reading for a location, with the normalized
// fields extracted for querying and the full provider payload kept verbatim
// for replay and debugging. Numeric fields are pointers so NULLs survive a
// round trip.
type Weather struct {
	ID               uint  `gorm:"primaryKey"`
	LocationID       uint  `gorm:"not null;index:idx_weather_location_id;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;foreignKey:LocationID;references:ID"`
	LastUpdatedEpoch int64 `gorm:"not null;index:idx_weather_last_updated_epoch,sort:desc"`
	LastUpdated      string `gorm:"size:50;not null"`
	TempC            *float64
	TempF            *float64
	IsDay            *int
	ConditionText    string `gorm:"size:255"`
	ConditionIcon    string `gorm:"size:255"`
	ConditionCode    *int
	WindMph          *float64
	WindKph          *float64
	WindDegree       *int
	WindDir          string `gorm:"size:10"`
	PressureMb       *float64
	PressureIn       *float64
	PrecipMm         *float64
	PrecipIn         *float64
	Humidity         *int
	Cloud            *int
	FeelslikeC       *float64
	FeelslikeF       *float64
	VisKm            *float64
	VisMiles         *float64
	UV               *float64
	GustMph          *float64
	GustKph          *float64
	RawData          []byte    `gorm:"type:json"`
	CreatedAt        time.Time `gorm:"index"`
}
