package config

// Overrides carries command-line values that take priority over the file.
// Zero fields leave the loaded value alone.
type Overrides struct {
	Path    string // explicit config file
	Debug   bool
	TSL     bool
	LogFile string
}

// apply applies CLI flag overrides to the config.
func (o Overrides) apply(cfg *Config) {
	if o.Debug {
		cfg.Logging.Level = "debug"
	}
	if o.TSL {
		cfg.Export.TSL = true
	}
	if o.LogFile != "" {
		cfg.Logging.LogFile = o.LogFile
	}
}
