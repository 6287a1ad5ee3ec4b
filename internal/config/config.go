// Package config loads and validates YAML fit specifications and turns
// them into the runtime objects a fit needs: a parameter set, a model
// and an optimizer.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/cwbudde/cellfit/internal/cell"
	"github.com/cwbudde/cellfit/internal/fit"
	"github.com/cwbudde/cellfit/internal/opt"
	"github.com/cwbudde/cellfit/internal/params"
	"github.com/cwbudde/cellfit/internal/store"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMethod      = "lbfgsb"
	DefaultMetric      = "sse"
	DefaultMultistart  = 1
	DefaultOCV         = 4.0
	DefaultMayflyIters = 200
	DefaultMayflyPop   = 40
)

// FitSpec describes one fitting job: the dataset, the model, the
// parameters to estimate and the optimizer to run.
type FitSpec struct {
	Dataset            string        `yaml:"dataset"`
	Method             string        `yaml:"method"`
	Metric             string        `yaml:"metric"`
	MaxIters           int           `yaml:"max_iters"`
	PopSize            int           `yaml:"pop_size"`
	Seed               int64         `yaml:"seed"`
	Multistart         int           `yaml:"multistart"`
	Patience           int           `yaml:"patience"`
	Threshold          float64       `yaml:"threshold"`
	OCV                float64       `yaml:"ocv"`
	CheckpointInterval int           `yaml:"checkpoint_interval"`
	Params             []ParamConfig `yaml:"params"`
}

// ParamConfig declares one parameter to estimate. Bounds and the initial
// value are pointers so an absent key reads as "unbounded" or "unset"
// rather than zero.
type ParamConfig struct {
	Name    string       `yaml:"name"`
	Lower   *float64     `yaml:"lower,omitempty"`
	Upper   *float64     `yaml:"upper,omitempty"`
	Initial *float64     `yaml:"initial,omitempty"`
	Prior   *PriorConfig `yaml:"prior,omitempty"`
}

// PriorConfig selects a sampling distribution for one parameter.
type PriorConfig struct {
	Kind  string  `yaml:"kind"`
	Mu    float64 `yaml:"mu,omitempty"`
	Sigma float64 `yaml:"sigma,omitempty"`
	Min   float64 `yaml:"min,omitempty"`
	Max   float64 `yaml:"max,omitempty"`
}

// DefaultSpec returns a spec with the default method, metric and cell
// voltage filled in. Load unmarshals on top of it, so absent YAML keys
// keep these values.
func DefaultSpec() *FitSpec {
	return &FitSpec{
		Method:     DefaultMethod,
		Metric:     DefaultMetric,
		Multistart: DefaultMultistart,
		OCV:        DefaultOCV,
	}
}

// Load reads a fit spec from a YAML file.
func Load(path string) (*FitSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fit spec: %w", err)
	}
	spec := DefaultSpec()
	if err := yaml.Unmarshal(data, spec); err != nil {
		return nil, fmt.Errorf("parse fit spec: %w", err)
	}
	return spec, nil
}

// Save writes a fit spec to a YAML file.
func Save(path string, spec *FitSpec) error {
	data, err := yaml.Marshal(spec)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the spec before any dataset or optimizer work starts.
func (s *FitSpec) Validate() error {
	if s.Dataset == "" {
		return fmt.Errorf("fit spec: dataset is required")
	}
	if len(s.Params) == 0 {
		return fmt.Errorf("fit spec: at least one parameter is required")
	}
	if !isPopulation(s.Method) {
		if _, err := opt.ParseMethod(s.Method); err != nil {
			return fmt.Errorf("fit spec: %w", err)
		}
	}
	if _, err := fit.ParseMetric(s.Metric); err != nil {
		return fmt.Errorf("fit spec: %w", err)
	}
	if s.MaxIters < 0 {
		return fmt.Errorf("fit spec: max_iters must not be negative")
	}
	if s.PopSize < 0 {
		return fmt.Errorf("fit spec: pop_size must not be negative")
	}
	if s.Multistart < 0 {
		return fmt.Errorf("fit spec: multistart must not be negative")
	}
	if s.CheckpointInterval < 0 {
		return fmt.Errorf("fit spec: checkpoint_interval must not be negative")
	}
	for i, p := range s.Params {
		if p.Name == "" {
			return fmt.Errorf("fit spec: params[%d] has no name", i)
		}
		if p.Prior != nil {
			if err := p.Prior.validate(); err != nil {
				return fmt.Errorf("fit spec: param %q: %w", p.Name, err)
			}
		}
	}
	return nil
}

// BuildParams converts the declared parameters into a validated set.
func (s *FitSpec) BuildParams() (*params.Set, error) {
	list := make([]params.Parameter, 0, len(s.Params))
	for i, pc := range s.Params {
		p := params.NewParameter(pc.Name)
		if pc.Lower != nil {
			p.Lower = *pc.Lower
		}
		if pc.Upper != nil {
			p.Upper = *pc.Upper
		}
		if pc.Initial != nil {
			p.Initial = *pc.Initial
		}
		if pc.Prior != nil {
			prior, err := pc.Prior.build(uint64(s.Seed) + uint64(i))
			if err != nil {
				return nil, fmt.Errorf("param %q: %w", pc.Name, err)
			}
			p.Prior = prior
		}
		list = append(list, p)
	}
	return params.NewSet(list...)
}

// BuildModel returns the equivalent-circuit model for the configured
// open-circuit voltage.
func (s *FitSpec) BuildModel() *cell.Thevenin {
	ocv := s.OCV
	if ocv == 0 {
		ocv = DefaultOCV
	}
	return cell.NewThevenin(ocv)
}

// BuildOptimizer resolves the configured method into an adapter. The
// population method gets its own defaults for iterations and swarm size
// because it needs far more of both than the local methods.
func (s *FitSpec) BuildOptimizer() (opt.Optimizer, error) {
	if isPopulation(s.Method) {
		iters := s.MaxIters
		if iters <= 0 {
			iters = DefaultMayflyIters
		}
		pop := s.PopSize
		if pop <= 0 {
			pop = DefaultMayflyPop
		}
		return opt.NewMayfly(iters, pop, s.Seed), nil
	}
	method, err := opt.ParseMethod(s.Method)
	if err != nil {
		return nil, err
	}
	return opt.NewMinimizer(method, s.MaxIters)
}

// Convergence returns the early-stopping config, with spec overrides
// applied on top of the defaults.
func (s *FitSpec) Convergence() fit.ConvergenceConfig {
	cc := fit.DefaultConvergenceConfig()
	if s.Patience > 0 {
		cc.Patience = s.Patience
	}
	if s.Threshold > 0 {
		cc.Threshold = s.Threshold
	}
	return cc
}

// JobConfig converts the spec into the persisted job form used by
// checkpoints and the HTTP API. Priors do not round-trip: resumed and
// server-submitted jobs draw restart points uniformly inside the bounds.
func (s *FitSpec) JobConfig() store.JobConfig {
	specs := make([]store.ParamSpec, len(s.Params))
	for i, p := range s.Params {
		specs[i] = store.ParamSpec{Name: p.Name, Lower: p.Lower, Upper: p.Upper, Initial: p.Initial}
	}
	return store.JobConfig{
		DataPath:           s.Dataset,
		Method:             s.Method,
		Metric:             s.Metric,
		MaxIters:           s.MaxIters,
		PopSize:            s.PopSize,
		Seed:               s.Seed,
		Multistart:         s.Multistart,
		OCV:                s.OCV,
		Params:             specs,
		CheckpointInterval: s.CheckpointInterval,
	}
}

// FromJobConfig rebuilds a fit spec from a persisted job configuration,
// filling defaults for fields the job left empty.
func FromJobConfig(cfg store.JobConfig) *FitSpec {
	spec := DefaultSpec()
	spec.Dataset = cfg.DataPath
	if cfg.Method != "" {
		spec.Method = cfg.Method
	}
	if cfg.Metric != "" {
		spec.Metric = cfg.Metric
	}
	spec.MaxIters = cfg.MaxIters
	spec.PopSize = cfg.PopSize
	spec.Seed = cfg.Seed
	if cfg.Multistart > 0 {
		spec.Multistart = cfg.Multistart
	}
	if cfg.OCV != 0 {
		spec.OCV = cfg.OCV
	}
	spec.CheckpointInterval = cfg.CheckpointInterval
	spec.Params = make([]ParamConfig, len(cfg.Params))
	for i, p := range cfg.Params {
		spec.Params[i] = ParamConfig{Name: p.Name, Lower: p.Lower, Upper: p.Upper, Initial: p.Initial}
	}
	return spec
}

func isPopulation(method string) bool {
	return strings.EqualFold(method, "mayfly")
}

func (p *PriorConfig) build(seed uint64) (params.Prior, error) {
	switch strings.ToLower(p.Kind) {
	case "gaussian", "normal":
		if p.Sigma <= 0 {
			return nil, fmt.Errorf("gaussian prior requires sigma > 0, got %g", p.Sigma)
		}
		return params.GaussianPrior(p.Mu, p.Sigma, seed), nil
	case "uniform":
		if p.Min >= p.Max {
			return nil, fmt.Errorf("uniform prior requires min < max, got [%g, %g]", p.Min, p.Max)
		}
		return params.UniformPrior(p.Min, p.Max, seed), nil
	default:
		return nil, fmt.Errorf("unknown prior kind %q", p.Kind)
	}
}

func (p *PriorConfig) validate() error {
	_, err := p.build(0)
	return err
}
