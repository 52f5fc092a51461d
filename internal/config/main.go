package config

import "fmt"

type RunningEnvironment string

const Development RunningEnvironment = "development"
const Production RunningEnvironment = "production"

type Config struct {
	RunningEnvironment RunningEnvironment
	DebugMode          bool
	API                APIConfig
	Session            SessionConfig
	Drafts             DraftsConfig
	Upload             UploadConfig
	Agent              AgentConfig
	Logging            LoggingConfig
	Monitoring         MonitoringConfig
}

func (c *Config) Validate() error {
	if c.RunningEnvironment != Development && c.RunningEnvironment != Production {
		return fmt.Errorf("unknown running environment %q (must be one of development, production)", c.RunningEnvironment)
	}
	err := c.API.Validate()
	if err != nil {
		return err
	}
	err = c.Session.Validate()
	if err != nil {
		return err
	}
	err = c.Drafts.Validate(c.RunningEnvironment)
	if err != nil {
		return err
	}
	err = c.Upload.Validate()
	if err != nil {
		return err
	}
	err = c.Agent.Validate()
	if err != nil {
		return err
	}
	return nil
}
