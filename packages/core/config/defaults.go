package config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		DefaultEnvironment: "dev",
		Timeout:            30000, // 30 seconds
		FollowRedirects:    BoolPtr(true),
		MaxRedirects:       10,
		ValidateSSL:        BoolPtr(true),
		Decompress:         BoolPtr(true),
		Verbose:            BoolPtr(false),
		NoColor:            BoolPtr(false),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.DefaultEnvironment == defaults.DefaultEnvironment &&
		c.BaseURL == "" &&
		c.Timeout == defaults.Timeout &&
		c.GetFollowRedirects() == defaults.GetFollowRedirects() &&
		c.MaxRedirects == defaults.MaxRedirects &&
		c.GetValidateSSL() == defaults.GetValidateSSL() &&
		c.GetDecompress() == defaults.GetDecompress() &&
		c.Proxy == "" &&
		len(c.Headers) == 0 &&
		len(c.Params) == 0 &&
		c.GetVerbose() == defaults.GetVerbose() &&
		c.GetNoColor() == defaults.GetNoColor()
}
