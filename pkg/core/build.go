package core

import (
	"time"

	"github.com/google/uuid"
)

// BuildType selects what a cube build run covers.
type BuildType string

const (
	// BuildBaseCube materializes the concatenated fact table only.
	BuildBaseCube BuildType = "baseCube"
	// BuildValidationCube runs fact table validation against a scratch cube
	// without publishing.
	BuildValidationCube BuildType = "validationCube"
	// BuildFullCube materializes and publishes one revision's cube.
	BuildFullCube BuildType = "fullCube"
	// BuildDraftCubes rebuilds every unpublished revision.
	BuildDraftCubes BuildType = "draftCubes"
	// BuildAllCubes rebuilds every revision.
	BuildAllCubes BuildType = "allCubes"
)

// ValidBuildType reports whether t names a known build type.
func ValidBuildType(t BuildType) bool {
	switch t {
	case BuildBaseCube, BuildValidationCube, BuildFullCube, BuildDraftCubes, BuildAllCubes:
		return true
	}
	return false
}

// Bulk reports whether the build type covers multiple revisions.
func (t BuildType) Bulk() bool {
	return t == BuildDraftCubes || t == BuildAllCubes
}

// BuildStatus is the lifecycle state of one build attempt. The build log row
// is the single source of truth for build state; schema existence is a
// derived cleanup concern only.
type BuildStatus string

const (
	BuildQueued        BuildStatus = "queued"
	BuildBuilding      BuildStatus = "building"
	BuildSchemaRename  BuildStatus = "schema_rename"
	BuildMaterializing BuildStatus = "materializing"
	BuildCompleted     BuildStatus = "completed"
	BuildFailed        BuildStatus = "failed"
)

// Terminal reports whether the status is final.
func (s BuildStatus) Terminal() bool {
	return s == BuildCompleted || s == BuildFailed
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step. BuildFailed is reachable from any non-terminal state.
func (s BuildStatus) CanTransition(next BuildStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == BuildFailed {
		return true
	}
	switch s {
	case BuildQueued:
		return next == BuildBuilding
	case BuildBuilding:
		return next == BuildSchemaRename
	case BuildSchemaRename:
		return next == BuildMaterializing
	case BuildMaterializing:
		return next == BuildCompleted
	}
	return false
}

// BuildLog is the audit record of one cube build attempt. Created at build
// start, mutated only by the build itself.
type BuildLog struct {
	ID uuid.UUID
	// RevisionID is nil for bulk build types.
	RevisionID  *uuid.UUID
	Type        BuildType
	Status      BuildStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Elapsed     time.Duration
	// Script is the generated build script, recorded stage by stage.
	Script string
	Error  string
}

// BuildLogFilter narrows build log listings.
type BuildLogFilter struct {
	Type       BuildType
	Status     BuildStatus
	RevisionID *uuid.UUID
	Limit      int
	Offset     int
}
