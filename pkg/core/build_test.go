package core

import (
	"testing"
)

func TestValidBuildType(t *testing.T) {
	for _, bt := range []BuildType{BuildBaseCube, BuildValidationCube, BuildFullCube, BuildDraftCubes, BuildAllCubes} {
		if !ValidBuildType(bt) {
			t.Errorf("ValidBuildType(%s) = false", bt)
		}
	}
	if ValidBuildType("miniCube") {
		t.Error("ValidBuildType accepted an unknown type")
	}
}

func TestBuildTypeBulk(t *testing.T) {
	if !BuildDraftCubes.Bulk() || !BuildAllCubes.Bulk() {
		t.Error("bulk types not reported as bulk")
	}
	if BuildFullCube.Bulk() || BuildBaseCube.Bulk() || BuildValidationCube.Bulk() {
		t.Error("single-revision type reported as bulk")
	}
}

func TestBuildStatusCanTransition(t *testing.T) {
	tests := []struct {
		from, to BuildStatus
		want     bool
	}{
		{BuildQueued, BuildBuilding, true},
		{BuildBuilding, BuildSchemaRename, true},
		{BuildSchemaRename, BuildMaterializing, true},
		{BuildMaterializing, BuildCompleted, true},

		// Failure is reachable from any live state.
		{BuildQueued, BuildFailed, true},
		{BuildBuilding, BuildFailed, true},
		{BuildSchemaRename, BuildFailed, true},
		{BuildMaterializing, BuildFailed, true},

		// No skipping stages, no going back.
		{BuildQueued, BuildSchemaRename, false},
		{BuildQueued, BuildCompleted, false},
		{BuildBuilding, BuildMaterializing, false},
		{BuildBuilding, BuildQueued, false},
		{BuildMaterializing, BuildBuilding, false},

		// Terminal states are final.
		{BuildCompleted, BuildFailed, false},
		{BuildCompleted, BuildBuilding, false},
		{BuildFailed, BuildBuilding, false},
		{BuildFailed, BuildFailed, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestBuildStatusTerminal(t *testing.T) {
	for _, s := range []BuildStatus{BuildQueued, BuildBuilding, BuildSchemaRename, BuildMaterializing} {
		if s.Terminal() {
			t.Errorf("%s reported terminal", s)
		}
	}
	if !BuildCompleted.Terminal() || !BuildFailed.Terminal() {
		t.Error("completed/failed not reported terminal")
	}
}
