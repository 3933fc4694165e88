package engine

import (
	"github.com/spaghettifunk/strata/engine/core"
)

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX uint32
	// Window starting position y axis, if applicable.
	StartPosY uint32
	// Window starting width, if applicable.
	StartWidth uint32
	// Window starting height, if applicable.
	StartHeight uint32
	// The application name used in windowing, if applicable.
	Name     string
	LogLevel string
	// Full engine configuration the fields above were taken from.
	Config *core.Config
}

func NewApplicationConfig(cfg *core.Config) *ApplicationConfig {
	return &ApplicationConfig{
		StartPosX:   cfg.Application.StartPosX,
		StartPosY:   cfg.Application.StartPosY,
		StartWidth:  cfg.Application.Width,
		StartHeight: cfg.Application.Height,
		Name:        cfg.Application.Name,
		LogLevel:    cfg.Log.Level,
		Config:      cfg,
	}
}
