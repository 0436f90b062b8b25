package configfx

import (
	"go.uber.org/fx"

	"github.com/repoctx/repoctx/internal/config"
	"github.com/repoctx/repoctx/internal/logger"
)

// Params represents the parameters needed to create configuration
type Params struct {
	fx.In

	ConfigPath string `name:"configPath" optional:"true"`
	DBPath     string `name:"dbPath"     optional:"true"`
	EmbedURL   string `name:"embedURL"   optional:"true"`
	EmbedModel string `name:"embedModel" optional:"true"`
	Verbose    bool   `name:"verbose"    optional:"true"`
}

// NewConfig loads the config file and layers flag overrides on top.
func NewConfig(params Params) (*config.Config, error) {
	cfg, err := config.Load(params.ConfigPath)
	if err != nil {
		return nil, err
	}
	if params.DBPath != "" {
		cfg.DBPath = params.DBPath
	}
	if params.EmbedURL != "" {
		cfg.EmbedURL = params.EmbedURL
	}
	if params.EmbedModel != "" {
		cfg.EmbedModel = params.EmbedModel
	}
	if params.Verbose {
		cfg.Verbose = true
	}
	logger.SetVerbose(cfg.Verbose)
	return &cfg, nil
}

// Module provides configuration for the application
var Module = fx.Module("config",
	fx.Provide(NewConfig),
)
