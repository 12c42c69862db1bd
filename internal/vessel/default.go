package vessel

import "github.com/signalsfoundry/descent-autopilot/model"

// DefaultParts returns a four-group orbital vehicle: a solid booster, a
// liquid first stage, a liquid upper stage and a capsule with a small
// braking engine.
func DefaultParts() []*Part {
	return []*Part{
		{ID: "capsule", Kind: KindStructure, Group: 0, DryMass: 1300},
		{ID: "capsule-engine", Kind: KindEngine, Group: 0, DryMass: 80, MaxThrust: 20000, Propellant: model.ResourceLiquidFuel, Consumption: 1.3},
		{ID: "capsule-tank", Kind: KindTank, Group: 0, DryMass: 60, Resource: model.ResourceLiquidFuel, Amount: 200},
		{ID: "capsule-decoupler", Kind: KindDecoupler, Group: 0, DryMass: 50},

		{ID: "upper-engine", Kind: KindEngine, Group: 1, DryMass: 500, MaxThrust: 60000, Propellant: model.ResourceLiquidFuel, Consumption: 3.9},
		{ID: "upper-tank", Kind: KindTank, Group: 1, DryMass: 400, Resource: model.ResourceLiquidFuel, Amount: 720},
		{ID: "upper-decoupler", Kind: KindDecoupler, Group: 1, DryMass: 50},

		{ID: "main-engine", Kind: KindEngine, Group: 2, DryMass: 1500, MaxThrust: 240000, Propellant: model.ResourceLiquidFuel, Consumption: 15.9},
		{ID: "main-tank", Kind: KindTank, Group: 2, DryMass: 1000, Resource: model.ResourceLiquidFuel, Amount: 2880},
		{ID: "main-decoupler", Kind: KindDecoupler, Group: 2, DryMass: 50},

		{ID: "booster", Kind: KindEngine, Group: 3, DryMass: 3000, MaxThrust: 500000, Propellant: model.ResourceSolidFuel, Consumption: 15.8},
		{ID: "booster-casing", Kind: KindTank, Group: 3, DryMass: 0, Resource: model.ResourceSolidFuel, Amount: 1500},
	}
}
