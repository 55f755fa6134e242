// Package main defines the CLI structure using kong.
package main

import "github.com/alecthomas/kong"

// Globals are flags shared by every command.
type Globals struct {
	Config string `short:"c" default:"${config_file}" help:"YAML config file (optional)"`
}

// CLI defines the command-line interface.
type CLI struct {
	Globals

	Serve   ServeCmd   `cmd:"" default:"1" help:"Run the HTTP service"`
	Chat    ChatCmd    `cmd:"" help:"Interactive conversation on stdin"`
	Migrate MigrateCmd `cmd:"" help:"Apply or roll back the postgres schema"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// ServeCmd runs the HTTP service.
type ServeCmd struct {
	Addr string `help:"Listen address (overrides config)"`
}

// ChatCmd runs a single conversation against the registry.
type ChatCmd struct {
	User    string `default:"local" help:"User id of the conversation"`
	Group   string `help:"Conversation id (random when empty)"`
	Credits int    `default:"-1" help:"Credits available to the run (config default when negative)"`
	Project string `help:"Project id"`
	Scene   string `help:"Scene id"`
	Agent   string `help:"Agent the conversation starts with (overrides config)"`
}

// MigrateCmd manages the postgres schema.
type MigrateCmd struct {
	Direction string `arg:"" optional:"" default:"up" enum:"up,down,version" help:"up, down or version"`
	Steps     int    `default:"1" help:"Migrations to roll back with down"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

// kongVars returns variables for kong.
func kongVars() kong.Vars {
	return kong.Vars{
		"version":     version,
		"config_file": "mediaagent.yaml",
	}
}
