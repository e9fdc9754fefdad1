// Package mapdata fetches map and general game data, either from the remote
// game service or from JSON files on disk, and submits solutions.
package mapdata

import (
	"context"
	"errors"

	"refillplan/internal/model"
)

// ErrMapNotFound is returned when a source has no data for the requested map.
var ErrMapNotFound = errors.New("mapdata: map not found")

// Source provides the inputs of one optimization run.
type Source interface {
	MapData(ctx context.Context, mapName string) (model.MapData, error)
	GeneralData(ctx context.Context) (model.GeneralData, error)
}

// Submitter sends a final solution to the game service.
type Submitter interface {
	Submit(ctx context.Context, mapName string, sol model.Solution) (model.ScoredSolution, error)
}
