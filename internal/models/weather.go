package models

// Condition is the nested condition block of a current-conditions payload.
type Condition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
	Code *int   `json:"code"`
}

// Location is the location block of a provider payload. Numeric fields are
// pointers so that values absent upstream or NULL in storage stay null in
// JSON instead of collapsing to zero.
type Location struct {
	Name           string   `json:"name"`
	Region         string   `json:"region"`
	Country        string   `json:"country"`
	Lat            *float64 `json:"lat"`
	Lon            *float64 `json:"lon"`
	TzID           string   `json:"tz_id"`
	LocaltimeEpoch *int64   `json:"localtime_epoch"`
	Localtime      string   `json:"localtime"`
}

// Current is the current-conditions block of a provider payload.
type Current struct {
	LastUpdatedEpoch int64     `json:"last_updated_epoch"`
	LastUpdated      string    `json:"last_updated"`
	TempC            *float64  `json:"temp_c"`
	TempF            *float64  `json:"temp_f"`
	IsDay            *int      `json:"is_day"`
	Condition        Condition `json:"condition"`
	WindMph          *float64  `json:"wind_mph"`
	WindKph          *float64  `json:"wind_kph"`
	WindDegree       *int      `json:"wind_degree"`
	WindDir          string    `json:"wind_dir"`
	PressureMb       *float64  `json:"pressure_mb"`
	PressureIn       *float64  `json:"pressure_in"`
	PrecipMm         *float64  `json:"precip_mm"`
	PrecipIn         *float64  `json:"precip_in"`
	Humidity         *int      `json:"humidity"`
	Cloud            *int      `json:"cloud"`
	FeelslikeC       *float64  `json:"feelslike_c"`
	FeelslikeF       *float64  `json:"feelslike_f"`
	VisKm            *float64  `json:"vis_km"`
	VisMiles         *float64  `json:"vis_miles"`
	UV               *float64  `json:"uv"`
	GustMph          *float64  `json:"gust_mph"`
	GustKph          *float64  `json:"gust_kph"`
}

// Snapshot is one provider-shaped weather observation: the location block
// plus its current conditions. It is both the parsed provider response and
// the reconstructed view returned by the query endpoints.
type Snapshot struct {
	Location Location `json:"location"`
	Current  Current  `json:"current"`
}
