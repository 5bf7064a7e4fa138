package cache

// Keyer derives cache keys.
type Keyer interface {
	// RunKey identifies a randomization run by its input digest and options.
	RunKey(inputsHash string, opts RunKeyOpts) string

	// PlotKey identifies a rendered plot of a cached run.
	PlotKey(runKey, format string) string
}

// RunKeyOpts holds every option that changes a run's outcome.
type RunKeyOpts struct {
	Bins               int     `json:"bins"`
	Tolerance          float64 `json:"tolerance"`
	Overlap            float64 `json:"overlap"`
	CRS                string  `json:"crs"`
	Metric             string  `json:"metric"`
	Seed               uint64  `json:"seed"`
	MaxTries           int     `json:"max_tries"`
	TimeoutMillis      int64   `json:"timeout_ms"`
	EscapeEvery        int     `json:"escape_every"`
	Strategy           string  `json:"strategy"`
	InitialTemperature float64 `json:"initial_temperature"`
	Cooling            float64 `json:"cooling"`
	BestEffort         bool    `json:"best_effort"`
	PoolMin            int     `json:"pool_min"`
	PoolMax            int     `json:"pool_max"`
	Replicates         int     `json:"replicates"`
}

// DefaultKeyer builds unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a keyer with no prefix.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// RunKey hashes the input digest and options.
func (DefaultKeyer) RunKey(inputsHash string, opts RunKeyOpts) string {
	return hashKey("run", inputsHash, opts)
}

// PlotKey derives a plot key from a run key.
func (DefaultKeyer) PlotKey(runKey, format string) string {
	return hashKey("plot", runKey, format)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = DefaultKeyer{}
