package config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		// no active environment unless one is named
		DefaultEnvironment: "",
		Timeout:            30000, // 30 seconds
		Retries:            0,
		RetryDelay:         1000, // 1 second
		FollowRedirects:    boolPtr(true),
		MaxRedirects:       10,
		ValidateSSL:        boolPtr(true),
		Output:             "console",
		Bail:               boolPtr(false),
		Verbose:            boolPtr(false),
		NoColor:            boolPtr(false),
		ScriptTimeout:      5000, // 5 seconds
		Engines:            []string{"goja", "javascript"},
		Log: LogConfig{
			Level:      "warn",
			Format:     "console",
			Output:     "stderr",
			File:       "hitscript.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		},
		History: HistoryConfig{
			Enabled:       boolPtr(false),
			File:          ".hitscript/history.db",
			RetentionDays: 30,
		},
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	d := DefaultConfig()
	return c.DefaultEnvironment == d.DefaultEnvironment &&
		c.Timeout == d.Timeout &&
		c.Retries == d.Retries &&
		c.RetryDelay == d.RetryDelay &&
		c.GetFollowRedirects() == d.GetFollowRedirects() &&
		c.MaxRedirects == d.MaxRedirects &&
		c.GetValidateSSL() == d.GetValidateSSL() &&
		c.Proxy == d.Proxy &&
		len(c.Headers) == 0 &&
		c.Output == d.Output &&
		c.GetBail() == d.GetBail() &&
		c.GetVerbose() == d.GetVerbose() &&
		c.GetNoColor() == d.GetNoColor() &&
		c.ScriptTimeout == d.ScriptTimeout &&
		c.SendRequestRate == d.SendRequestRate &&
		c.Log == d.Log &&
		c.GetHistoryEnabled() == d.GetHistoryEnabled() &&
		len(c.Environments) == 0
}
