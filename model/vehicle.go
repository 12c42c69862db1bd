package model

// Resource names reported by the vessel.
const (
	ResourceSolidFuel  = "SolidFuel"
	ResourceLiquidFuel = "LiquidFuel"
)

// Resource is a quantity of a named resource held by one part.
type Resource struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	// Stage is the stage index of the containing part.
	Stage int `json:"stage"`
}

// Engine describes an engine part.
type Engine struct {
	ID              string  `json:"id"`
	Stage           int     `json:"stage"`
	Active          bool    `json:"active"`
	ThrustLimit     float64 `json:"thrust_limit"`
	AvailableThrust float64 `json:"available_thrust"`
}

// Decoupler describes a decoupler part.
type Decoupler struct {
	ID        string `json:"id"`
	Stage     int    `json:"stage"`
	Decoupled bool   `json:"decoupled"`
	Staged    bool   `json:"staged"`
}

// StageParts is the set of engines and decouplers assigned to one stage.
type StageParts struct {
	Engines    []Engine    `json:"engines"`
	Decouplers []Decoupler `json:"decouplers"`
}

// FlightMetrics are the instantaneous aerodynamic and kinematic readings of
// the vessel in the hybrid frame.
type FlightMetrics struct {
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
}

// VehicleState is a read-only snapshot of the vessel taken once per tick.
// The hybrid frame has its origin at the orbited body and the orientation of
// the vessel's surface frame.
type VehicleState struct {
	Altitude      float64 `json:"altitude"`
	Apoapsis      float64 `json:"apoapsis"`
	Periapsis     float64 `json:"periapsis"`
	UniversalTime float64 `json:"universal_time"`
	WarpRate      float64 `json:"warp_rate"`
	ControlStage  int     `json:"control_stage"`
	Position      Vec3    `json:"position"`
	Velocity      Vec3    `json:"velocity"`
	Mass          float64 `json:"mass"`

	Resources  []Resource  `json:"resources"`
	Engines    []Engine    `json:"engines"`
	Decouplers []Decoupler `json:"decouplers"`

	Flight FlightMetrics `json:"flight"`
}

// TrajectorySample is the minimal state needed to seed a landing prediction.
type TrajectorySample struct {
	Altitude           float64
	HorizontalVelocity float64
	VerticalVelocity   float64
	Mass               float64
}

// Sample derives a TrajectorySample from the snapshot.
func (s *VehicleState) Sample() TrajectorySample {
	return TrajectorySample{
		Altitude:           s.Altitude,
		HorizontalVelocity: s.Flight.HorizontalSpeed,
		VerticalVelocity:   s.Flight.VerticalSpeed,
		Mass:               s.Mass,
	}
}
