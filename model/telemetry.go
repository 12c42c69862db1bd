package model

// TelemetryRecord is one line of the landing telemetry log. Records are
// written once and never modified.
type TelemetryRecord struct {
	Speed             float64    `json:"speed"`
	HorizontalSpeed   float64    `json:"horizontal_speed"`
	VerticalSpeed     float64    `json:"vertical_speed"`
	Rotation          Quaternion `json:"rotation"`
	Direction         Vec3       `json:"direction"`
	Prograde          Vec3       `json:"prograde"`
	Retrograde        Vec3       `json:"retrograde"`
	AtmosphereDensity float64    `json:"atmosphere_density"`
	DynamicPressure   float64    `json:"dynamic_pressure"`
	StaticPressure    float64    `json:"static_pressure"`
	AerodynamicForce  Vec3       `json:"aerodynamic_force"`
	Lift              Vec3       `json:"lift"`
	Drag              Vec3       `json:"drag"`
	Altitude          float64    `json:"altitude"`
	Mass              float64    `json:"mass"`
}

// NewTelemetryRecord flattens the snapshot into a log record.
func NewTelemetryRecord(s *VehicleState) TelemetryRecord {
	f := s.Flight
	return TelemetryRecord{
		Speed:             f.Speed,
		HorizontalSpeed:   f.HorizontalSpeed,
		VerticalSpeed:     f.VerticalSpeed,
		Rotation:          f.Rotation,
		Direction:         f.Direction,
		Prograde:          f.Prograde,
		Retrograde:        f.Retrograde,
		AtmosphereDensity: f.AtmosphereDensity,
		DynamicPressure:   f.DynamicPressure,
		StaticPressure:    f.StaticPressure,
		AerodynamicForce:  f.AerodynamicForce,
		Lift:              f.Lift,
		Drag:              f.Drag,
		Altitude:          s.Altitude,
		Mass:              s.Mass,
	}
}

// Sample derives a TrajectorySample from the record, used to seed the
// offline re-simulation.
func (r TelemetryRecord) Sample() TrajectorySample {
	return TrajectorySample{
		Altitude:           r.Altitude,
		HorizontalVelocity: r.HorizontalSpeed,
		VerticalVelocity:   r.VerticalSpeed,
		Mass:               r.Mass,
	}
}
