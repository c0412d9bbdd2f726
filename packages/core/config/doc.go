// Package config loads the optional hityaml JSON configuration file.
//
// The file is looked up in the working directory under the names in
// ConfigFilenames unless a path is given. Command-line flags and HITYAML_*
// environment variables override what it sets.
package config
