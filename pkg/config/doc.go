// Package config loads user settings for poet.
//
// Settings come from three layers, later ones winning:
//
//  1. Built-in defaults ([Default])
//  2. The TOML config file, by default $XDG_CONFIG_HOME/poet/config.toml
//  3. POET_* environment variables
//
// An example file:
//
//	[repositories.pypi]
//	url = "https://pypi.org/pypi"
//
//	[virtualenvs]
//	in-project = true
//	path = "~/.cache/poet/virtualenvs"
//	create = true
//
//	[http]
//	timeout = 30  # seconds
//
//	[installer]
//	max-workers = 8
//
// Library packages never read the environment or working directory
// themselves; they receive a [Config] from the command line layer.
package config
