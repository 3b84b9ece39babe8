package service

import (
	"errors"

	"github.com/wricardo/ksp-balance/balance/batch"
	"github.com/wricardo/ksp-balance/balance/config"
	"github.com/wricardo/ksp-balance/balance/engine"
)

// MaxBatchRows caps the number of parts accepted in one request.
const MaxBatchRows = 10000

var ErrInvalidInput = errors.New("invalid input")

// TechInfo describes a loaded tier
type TechInfo struct {
	Name        string            `json:"name"`
	Params      engine.TechParams `json:"params"`
	MaxTmr      float64           `json:"max_tmr"`
	MinTmr      float64           `json:"min_tmr"`
	MaxTmrRange float64           `json:"max_tmr_range"`
	MinTmrRange float64           `json:"min_tmr_range"`
	IspRange    float64           `json:"isp_range"`
	UsedBy      []string          `json:"used_by"`
}

// SizeSample is a configuration evaluated at one size
type SizeSample struct {
	Size          float64             `json:"size"`
	Tmr           float64             `json:"tmr,omitempty"`
	TmrMultiplier float64             `json:"tmr_multiplier,omitempty"`
	Stats         *engine.EngineStats `json:"stats,omitempty"`
	Error         string              `json:"error,omitempty"`
}

// ConfigInfo describes a loaded size-curve configuration
type ConfigInfo struct {
	Name    string            `json:"name"`
	Tech    string            `json:"tech"`
	Params  engine.SizeParams `json:"params"`
	Samples []SizeSample      `json:"samples,omitempty"`
}

// DeriveResult is a single derivation
type DeriveResult struct {
	Config        string             `json:"config"`
	Tech          string             `json:"tech"`
	Size          float64            `json:"size"`
	Tmr           float64            `json:"tmr"`
	TmrMultiplier float64            `json:"tmr_multiplier"`
	Stats         engine.EngineStats `json:"stats"`
}

// BatchResult is the outcome of a synchronous batch. Failed counts both
// failed derivations and rows that could not be read.
type BatchResult struct {
	Results   []batch.Result   `json:"results"`
	RowErrors []batch.RowError `json:"row_errors,omitempty"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

// CurveResult is a sampled tech curve
type CurveResult struct {
	Tech   string              `json:"tech"`
	Points []engine.CurvePoint `json:"points"`
}

// ReloadResult summarizes a registry reload
type ReloadResult struct {
	Techs       int                `json:"techs"`
	Configs     int                `json:"configs"`
	Diagnostics config.Diagnostics `json:"diagnostics"`
}
