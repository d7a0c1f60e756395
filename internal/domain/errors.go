package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrIO reports a missing, unreadable or corrupt raster or vector file.
	ErrIO = errors.New("raster io")
	// ErrGridMismatch reports rasters whose grids cannot be compared pixel by pixel.
	ErrGridMismatch = errors.New("grid mismatch")
	// ErrEmptyAOI reports an area of interest with no area or no valid pixels.
	ErrEmptyAOI = errors.New("empty area of interest")
	// ErrNetwork reports a failed fetch from a remote data source.
	ErrNetwork = errors.New("network fetch")
)

// GridMismatchError describes why two rasters could not be aligned.
type GridMismatchError struct {
	Reason string
	A, B   Transform
}

func (e *GridMismatchError) Error() string {
	return fmt.Sprintf("grid mismatch: %s (a=%v b=%v)", e.Reason, [6]float64(e.A), [6]float64(e.B))
}

func (e *GridMismatchError) Unwrap() error { return ErrGridMismatch }

// Stage names the step of the per-parcel pipeline an error came from.
type Stage string

const (
	StagePrepare   Stage = "prepare"
	StageElevation Stage = "elevation"
	StageTerrain   Stage = "terrain"
	StageSeverity  Stage = "severity"
	StageImagery   Stage = "imagery"
	StageClassify  Stage = "classify"
	StageRender    Stage = "render"
)

// ProcessingError is the failure side of a parcel result.
type ProcessingError struct {
	APN   string
	Stage Stage
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("parcel %s: %s: %v", e.APN, e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }
