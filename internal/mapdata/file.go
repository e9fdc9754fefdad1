package mapdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"refillplan/internal/model"
)

// FileSource reads <Dir>/<map>.json and <Dir>/general.json, the same
// payloads the game service returns.
type FileSource struct {
	Dir string
}

func (f FileSource) MapData(ctx context.Context, mapName string) (model.MapData, error) {
	if mapName == "" || strings.ContainsAny(mapName, `/\`) || mapName == "general" {
		return model.MapData{}, fmt.Errorf("%w: %q", ErrMapNotFound, mapName)
	}
	var md model.MapData
	if err := f.read(mapName+".json", &md); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.MapData{}, fmt.Errorf("%w: %s", ErrMapNotFound, mapName)
		}
		return model.MapData{}, err
	}
	normalize(&md)
	return md, nil
}

func (f FileSource) GeneralData(ctx context.Context) (model.GeneralData, error) {
	var gd model.GeneralData
	if err := f.read("general.json", &gd); err != nil {
		return model.GeneralData{}, err
	}
	return gd, nil
}

func (f FileSource) read(name string, v any) error {
	b, err := os.ReadFile(filepath.Join(f.Dir, name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}

// normalize keys locations by their own name when the payload left the
// name empty.
func normalize(md *model.MapData) {
	for key, loc := range md.Locations {
		if loc.Name == "" {
			loc.Name = key
			md.Locations[key] = loc
		}
	}
}
