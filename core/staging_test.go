package core

import (
	"context"
	"reflect"
	"testing"

	"github.com/signalsfoundry/descent-autopilot/model"
)

func TestHasResourceIsScopedToControlStage(t *testing.T) {
	vs := &model.VehicleState{
		ControlStage: 2,
		Resources: []model.Resource{
			{Name: model.ResourceLiquidFuel, Amount: 5000, Stage: 1},
			{Name: model.ResourceSolidFuel, Amount: 0, Stage: 2},
			{Name: model.ResourceSolidFuel, Amount: 12, Stage: 2},
		},
	}
	if HasResource(vs, model.ResourceLiquidFuel) {
		t.Fatalf("liquid fuel in another stage counted")
	}
	if !HasResource(vs, model.ResourceSolidFuel) {
		t.Fatalf("solid fuel in the control stage not counted")
	}
	if got := TotalResource(vs, model.ResourceLiquidFuel); got != 5000 {
		t.Fatalf("TotalResource = %v, want 5000", got)
	}
}

func TestAdvanceStageOrder(t *testing.T) {
	port := newFakePort()
	port.set(ScalarControlStage, 3)
	port.parts[2] = model.StageParts{
		Engines: []model.Engine{{ID: "e1", Stage: 2}},
		Decouplers: []model.Decoupler{
			{ID: "d1", Stage: 2, Staged: true},
			{ID: "d2", Stage: 2, Staged: true, Decoupled: true},
			{ID: "d3", Stage: 2, Staged: false},
		},
	}
	s := NewStager(port, nil)

	ok, err := s.AdvanceStage(context.Background(), &model.VehicleState{ControlStage: 3})
	if err != nil {
		t.Fatalf("AdvanceStage: %v", err)
	}
	if !ok {
		t.Fatalf("AdvanceStage refused an empty stage")
	}
	want := []string{"stage", "decouple d1", "limit e1 1", "active e1 true"}
	if got := port.log(); !reflect.DeepEqual(got, want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
}

func TestAdvanceStageRefusesWithFuel(t *testing.T) {
	port := newFakePort()
	s := NewStager(port, nil)
	vs := &model.VehicleState{
		ControlStage: 1,
		Resources:    []model.Resource{{Name: model.ResourceLiquidFuel, Amount: 1, Stage: 1}},
	}
	ok, err := s.AdvanceStage(context.Background(), vs)
	if err != nil {
		t.Fatalf("AdvanceStage: %v", err)
	}
	if ok || len(port.log()) != 0 {
		t.Fatalf("AdvanceStage = %v with commands %v, want refusal", ok, port.log())
	}
}

func TestDecoupleIsIdempotent(t *testing.T) {
	port := newFakePort()
	port.set(ScalarControlStage, 1)
	port.parts[0] = model.StageParts{Decouplers: []model.Decoupler{{ID: "d1", Staged: true}}}
	s := NewStager(port, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.DecoupleCurrentStage(ctx); err != nil {
			t.Fatalf("DecoupleCurrentStage: %v", err)
		}
	}
	if got := port.log(); len(got) != 1 || got[0] != "decouple d1" {
		t.Fatalf("commands = %v, want one decouple", got)
	}
}

func TestShutdownCurrentStageEngines(t *testing.T) {
	port := newFakePort()
	port.set(ScalarControlStage, 2)
	port.parts[1] = model.StageParts{Engines: []model.Engine{{ID: "a"}, {ID: "b"}}}
	s := NewStager(port, nil)
	if err := s.ShutdownCurrentStageEngines(context.Background()); err != nil {
		t.Fatalf("ShutdownCurrentStageEngines: %v", err)
	}
	want := []string{"active a false", "active b false"}
	if got := port.log(); !reflect.DeepEqual(got, want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
}

func TestStreamReadIsCached(t *testing.T) {
	port := newFakePort()
	port.set(ScalarAltitude, 100)
	st := NewScalarStream(port, ScalarAltitude)
	if st.Valid() || st.Read() != 0 {
		t.Fatalf("fresh stream should be empty")
	}
	if err := st.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	port.set(ScalarAltitude, 200)
	if st.Read() != 100 {
		t.Fatalf("Read = %v, want cached 100", st.Read())
	}
}
