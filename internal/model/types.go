package model

import "sort"

// Core domain types. JSON field names follow the game service payloads.

type Location struct {
	Name          string  `json:"locationName"`
	Type          string  `json:"locationType"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Footfall      float64 `json:"footfall"`
	FootfallScale int     `json:"footfallScale,omitempty"`
	SalesVolume   float64 `json:"salesVolume"`
	// Available is set by the graph builder and never read afterwards.
	Available bool `json:"-"`
}

type Border struct {
	LatitudeMin  float64 `json:"latitudeMin"`
	LatitudeMax  float64 `json:"latitudeMax"`
	LongitudeMin float64 `json:"longitudeMin"`
	LongitudeMax float64 `json:"longitudeMax"`
}

type MapData struct {
	MapName   string              `json:"mapName"`
	Border    Border              `json:"border"`
	Locations map[string]Location `json:"locations"`
}

type UnitData struct {
	ProfitPerUnit     float64 `json:"profitPerUnit"`
	Co2PerUnitInGrams float64 `json:"co2PerUnitInGrams"`
}

type DeviceData struct {
	LeasingCostPerWeek    float64 `json:"leasingCostPerWeek"`
	RefillCapacityPerWeek float64 `json:"refillCapacityPerWeek"`
	StaticCo2             float64 `json:"staticCo2"`
}

type GeneralData struct {
	ClassicUnitData                 UnitData   `json:"classicUnitData"`
	RefillUnitData                  UnitData   `json:"refillUnitData"`
	Freestyle3100Data               DeviceData `json:"freestyle3100Data"`
	Freestyle9100Data               DeviceData `json:"freestyle9100Data"`
	Co2PricePerKiloInSek            float64    `json:"co2PricePerKiloInSek"`
	WillingnessToTravelInMeters     float64    `json:"willingnessToTravelInMeters"`
	ConstantExpDistributionFunction float64    `json:"constantExpDistributionFunction"`
	RefillSalesFactor               float64    `json:"refillSalesFactor"`
	RefillDistributionRate          float64    `json:"refillDistributionRate"`
}

// Assignment is the device allocation of one location. The heuristic only
// produces {1,0} or {0,1}; the refiner may produce higher counts.
type Assignment struct {
	F3100 int `json:"freestyle3100Count"`
	F9100 int `json:"freestyle9100Count"`
}

var (
	DeviceA = Assignment{F3100: 1}
	DeviceB = Assignment{F9100: 1}
)

func (a Assignment) Empty() bool { return a.F3100 == 0 && a.F9100 == 0 }

// Solution maps location name to its assignment. Only non-empty
// assignments are stored.
type Solution map[string]Assignment

func (s Solution) Clone() Solution {
	out := make(Solution, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Restrict returns the entries of s whose keys are in names.
func (s Solution) Restrict(names []string) Solution {
	out := Solution{}
	for _, n := range names {
		if a, ok := s[n]; ok {
			out[n] = a
		}
	}
	return out
}

// Keys returns the location names in sorted order.
func (s Solution) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SubmitSolution is the wire shape accepted by the game service.
type SubmitSolution struct {
	Locations Solution `json:"locations"`
}

// ScoreVector holds the game score. Total is derived from the other
// three fields and must always be recomputed, never accumulated.
type ScoreVector struct {
	CO2Savings    float64 `json:"co2Savings"`
	Earnings      float64 `json:"earnings"`
	TotalFootfall float64 `json:"totalFootfall"`
	Total         float64 `json:"total"`
}

// ComputeTotal returns (co2 * price + earnings) * (1 + footfall).
func (v ScoreVector) ComputeTotal(co2Price float64) float64 {
	return (v.CO2Savings*co2Price + v.Earnings) * (1 + v.TotalFootfall)
}

type ScoredLocation struct {
	Name           string  `json:"locationName"`
	Type           string  `json:"locationType"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Footfall       float64 `json:"footfall"`
	F3100          int     `json:"freestyle3100Count"`
	F9100          int     `json:"freestyle9100Count"`
	SalesVolume    float64 `json:"salesVolume"`
	SalesCapacity  float64 `json:"salesCapacity"`
	LeasingCost    float64 `json:"leasingCost"`
	Revenue        float64 `json:"revenue"`
	Earnings       float64 `json:"earnings"`
	GramCo2Savings float64 `json:"gramCo2Savings"`
	IsProfitable   bool    `json:"isProfitable"`
	IsCo2Saving    bool    `json:"isCo2Saving"`
}

type ScoredSolution struct {
	GameID    string                    `json:"id"`
	MapName   string                    `json:"mapName"`
	GameScore ScoreVector               `json:"gameScore"`
	Locations map[string]ScoredLocation `json:"locations"`
}

// Run is one execution of the optimization pipeline for one map.
type Run struct {
	ID         string          `json:"id"`
	MapName    string          `json:"mapName"`
	Status     string          `json:"status"` // running, completed, failed
	Params     OptimizeRequest `json:"params"`
	Solution   Solution        `json:"solution,omitempty"`
	Score      *ScoreVector    `json:"score,omitempty"`
	GameID     string          `json:"gameId,omitempty"`
	Refined    bool            `json:"refined"`
	Truncated  bool            `json:"truncated,omitempty"`
	Submitted  bool            `json:"submitted,omitempty"`
	Error      string          `json:"error,omitempty"`
	Metrics    map[string]any  `json:"metrics,omitempty"`
	CreatedAt  string          `json:"createdAt"`
	FinishedAt string          `json:"finishedAt,omitempty"`
}

type OptimizeRequest struct {
	MapName       string `json:"mapName"`
	BeamWidth     int    `json:"beamWidth,omitempty"`
	Passes        int    `json:"passes,omitempty"`
	BruteForceMax *int   `json:"bruteForceMax,omitempty"`
	Alternate     *bool  `json:"alternate,omitempty"`
	Refine        bool   `json:"refine,omitempty"`
	RequireDevice bool   `json:"requireDevice,omitempty"`
	TimeBudgetMs  int    `json:"timeBudgetMs,omitempty"`
	Submit        bool   `json:"submit,omitempty"`
}

// RunEvent is a progress notification emitted while a run executes.
type RunEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}
