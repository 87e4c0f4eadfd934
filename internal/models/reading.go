package models

import (
	"time"
)

// Canonical sensor parameter names. These are the keys used by alert rules,
// the stats API and the sensor_readings columns, kept from the legacy system
// so existing rule definitions remain valid.
const (
	ParamSoilMoisture = "humedad_suelo"
	ParamSoilPH       = "ph_suelo"
	ParamTemperature  = "temperatura_ambiente"
	ParamNitrogen     = "nitrogeno"
	ParamPhosphorus   = "fosforo"
	ParamPotassium    = "potasio"
)

// SensorReading is one telemetry sample for a plot (corresponds to the
// sensor_readings table). Readings are append-only.
type SensorReading struct {
	ID           int64     `json:"id" db:"id"`
	PlotID       string    `json:"plot_id" db:"plot_id"`
	SoilMoisture float64   `json:"humedad_suelo" db:"soil_moisture"`
	SoilPH       float64   `json:"ph_suelo" db:"soil_ph"`
	Temperature  float64   `json:"temperatura_ambiente" db:"temperature"`
	Nitrogen     float64   `json:"nitrogeno" db:"nitrogen"`
	Phosphorus   float64   `json:"fosforo" db:"phosphorus"`
	Potassium    float64   `json:"potasio" db:"potassium"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
}

// readingAccessors maps a parameter name to its field accessor. Resolved once
// at startup so rule evaluation never goes through reflection or a dynamic map
// of values.
var readingAccessors = map[string]func(*SensorReading) float64{
	ParamSoilMoisture: func(r *SensorReading) float64 { return r.SoilMoisture },
	ParamSoilPH:       func(r *SensorReading) float64 { return r.SoilPH },
	ParamTemperature:  func(r *SensorReading) float64 { return r.Temperature },
	ParamNitrogen:     func(r *SensorReading) float64 { return r.Nitrogen },
	ParamPhosphorus:   func(r *SensorReading) float64 { return r.Phosphorus },
	ParamPotassium:    func(r *SensorReading) float64 { return r.Potassium },
}

// Value returns the named parameter's value. ok is false for parameter names
// the reading does not carry (the caller skips the rule, it is not an error).
func (r *SensorReading) Value(parameter string) (float64, bool) {
	accessor, ok := readingAccessors[parameter]
	if !ok {
		return 0, false
	}
	return accessor(r), true
}

// Parameters lists the valid parameter names.
func Parameters() []string {
	return []string{
		ParamSoilMoisture,
		ParamSoilPH,
		ParamTemperature,
		ParamNitrogen,
		ParamPhosphorus,
		ParamPotassium,
	}
}

// IsValidParameter reports whether name is a known sensor parameter.
func IsValidParameter(name string) bool {
	_, ok := readingAccessors[name]
	return ok
}
