package datastore

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/weatherdash/weather-api-handler/internal/models"
)

// Each operation runs in its own transaction; gorm rolls back on error and
// returns the connection to the pool either way, which preserves the
// connect / use / rollback-on-error / always-release discipline per call.

// UpsertLocation implements Interface.UpsertLocation.
func (ds *DataStore) UpsertLocation(loc *models.Location) (uint, error) {
	var id uint
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		var existing Location
		err := tx.Where("name = ? AND country = ? AND region = ?",
			loc.Name, loc.Country, loc.Region).First(&existing).Error
		if err == nil {
			updates := map[string]interface{}{
				"lat":              loc.Lat,
				"lon":              loc.Lon,
				"tz_id":            loc.TzID,
				"localtime_epoch":  loc.LocaltimeEpoch,
				"localtime_string": loc.Localtime,
				"updated_at":       time.Now(),
			}
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return fmt.Errorf("updating location: %w", err)
			}
			id = existing.ID
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("looking up location: %w", err)
		}

		row := Location{
			Name:            loc.Name,
			Region:          loc.Region,
			Country:         loc.Country,
			Lat:             loc.Lat,
			Lon:             loc.Lon,
			TzID:            loc.TzID,
			LocaltimeEpoch:  loc.LocaltimeEpoch,
			LocaltimeString: loc.Localtime,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("inserting location: %w", err)
		}
		id = row.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// AppendReading implements Interface.AppendReading.
func (ds *DataStore) AppendReading(locationID uint, snap *models.Snapshot, raw []byte) (uint, error) {
	cur := snap.Current
	row := Weather{
		LocationID:       locationID,
		LastUpdatedEpoch: cur.LastUpdatedEpoch,
		LastUpdated:      cur.LastUpdated,
		TempC:            cur.TempC,
		TempF:            cur.TempF,
		IsDay:            cur.IsDay,
		ConditionText:    cur.Condition.Text,
		ConditionIcon:    cur.Condition.Icon,
		ConditionCode:    cur.Condition.Code,
		WindMph:          cur.WindMph,
		WindKph:          cur.WindKph,
		WindDegree:       cur.WindDegree,
		WindDir:          cur.WindDir,
		PressureMb:       cur.PressureMb,
		PressureIn:       cur.PressureIn,
		PrecipMm:         cur.PrecipMm,
		PrecipIn:         cur.PrecipIn,
		Humidity:         cur.Humidity,
		Cloud:            cur.Cloud,
		FeelslikeC:       cur.FeelslikeC,
		FeelslikeF:       cur.FeelslikeF,
		VisKm:            cur.VisKm,
		VisMiles:         cur.VisMiles,
		UV:               cur.UV,
		GustMph:          cur.GustMph,
		GustKph:          cur.GustKph,
		RawData:          raw,
	}

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("inserting reading: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return row.ID, nil
}

// readingRow is the flat join of a location and one of its readings.
type readingRow struct {
	Name            string
	Region          string
	Country         string
	Lat             *float64
	Lon             *float64
	TzID            string
	LocaltimeEpoch  *int64
	LocaltimeString string

	LastUpdatedEpoch int64
	LastUpdated      string
	TempC            *float64
	TempF            *float64
	IsDay            *int
	ConditionText    string
	ConditionIcon    string
	ConditionCode    *int
	WindMph          *float64
	WindKph          *float64
	WindDegree       *int
	WindDir          string
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
}

// RecentReadings implements Interface.RecentReadings. Rows come back ordered
// by observation time then insertion time, newest first; the first row seen
// per distinct city name wins.
func (ds *DataStore) RecentReadings(cityNames []string, limit int) ([]models.Snapshot, error) {
	if len(cityNames) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	var rows []readingRow
	err := ds.DB.Table("weather").
		Select(`locations.name, locations.region, locations.country, locations.lat, locations.lon,
			locations.tz_id, locations.localtime_epoch, locations.localtime_string,
			weather.last_updated_epoch, weather.last_updated, weather.temp_c, weather.temp_f,
			weather.is_day, weather.condition_text, weather.condition_icon, weather.condition_code,
			weather.wind_mph, weather.wind_kph, weather.wind_degree, weather.wind_dir,
			weather.pressure_mb, weather.pressure_in, weather.precip_mm, weather.precip_in,
			weather.humidity, weather.cloud, weather.feelslike_c, weather.feelslike_f,
			weather.vis_km, weather.vis_miles, weather.uv, weather.gust_mph, weather.gust_kph`).
		Joins("JOIN locations ON locations.id = weather.location_id").
		Where("locations.name IN ?", cityNames).
		Order("weather.last_updated_epoch DESC, weather.created_at DESC").
		Limit(limit * len(cityNames)).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}

	seen := make(map[string]struct{}, len(cityNames))
	out := make([]models.Snapshot, 0, len(cityNames))
	for i := range rows {
		r := &rows[i]
		if _, ok := seen[r.Name]; ok {
			continue
		}
		seen[r.Name] = struct{}{}
		out = append(out, r.toSnapshot())
	}
	return out, nil
}

// toSnapshot reconstructs the provider-shaped nested structure from a join row.
func (r *readingRow) toSnapshot() models.Snapshot {
	return models.Snapshot{
		Location: models.Location{
			Name:           r.Name,
			Region:         r.Region,
			Country:        r.Country,
			Lat:            r.Lat,
			Lon:            r.Lon,
			TzID:           r.TzID,
			LocaltimeEpoch: r.LocaltimeEpoch,
			Localtime:      r.LocaltimeString,
		},
		Current: models.Current{
			LastUpdatedEpoch: r.LastUpdatedEpoch,
			LastUpdated:      r.LastUpdated,
			TempC:            r.TempC,
			TempF:            r.TempF,
			IsDay:            r.IsDay,
			Condition: models.Condition{
				Text: r.ConditionText,
				Icon: r.ConditionIcon,
				Code: r.ConditionCode,
			},
			WindMph:    r.WindMph,
			WindKph:    r.WindKph,
			WindDegree: r.WindDegree,
			WindDir:    r.WindDir,
			PressureMb: r.PressureMb,
			PressureIn: r.PressureIn,
			PrecipMm:   r.PrecipMm,
			PrecipIn:   r.PrecipIn,
			Humidity:   r.Humidity,
			Cloud:      r.Cloud,
			FeelslikeC: r.FeelslikeC,
			FeelslikeF: r.FeelslikeF,
			VisKm:      r.VisKm,
			VisMiles:   r.VisMiles,
			UV:         r.UV,
			GustMph:    r.GustMph,
			GustKph:    r.GustKph,
		},
	}
}

// Counts returns the number of location and weather rows. Used by /status.
func (ds *DataStore) Counts() (locations, readings int64, err error) {
	if err = ds.DB.Model(&Location{}).Count(&locations).Error; err != nil {
		return 0, 0, fmt.Errorf("counting locations: %w", err)
	}
	if err = ds.DB.Model(&Weather{}).Count(&readings).Error; err != nil {
		return 0, 0, fmt.Errorf("counting readings: %w", err)
	}
	return locations, readings, nil
}

// Ping checks storage reachability. Used by /health.
func (ds *DataStore) Ping() error {
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return fmt.Errorf("retrieving DB handle: %w", err)
	}
	return sqlDB.Ping()
}

// Close closes the underlying connections.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return fmt.Errorf("retrieving DB handle: %w", err)
	}
	return sqlDB.Close()
}
