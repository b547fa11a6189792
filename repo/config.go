// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package repo

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gcash/bchutil"
	"github.com/jessevdk/go-flags"
	"github.com/project-illium/mintd/params"
)

//go:embed sample-mintd.conf
var configFS embed.FS

const (
	DefaultLogFilename    = "mintd.log"
	defaultConfigFilename = "mintd.conf"

	DefaultMaxBackupSize = 128 * 1024
	DefaultMaxNonces     = 100000
)

var (
	DefaultHomeDir    = bchutil.AppDataDir("mintd", false)
	defaultConfigFile = filepath.Join(DefaultHomeDir, defaultConfigFilename)
)

// Config defines the configuration options for the mint daemon.
//
// See LoadConfig for details on the configuration load process.
type Config struct {
	ShowVersion bool   `short:"v" long:"version" description:"Display version information and exit"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir     string `short:"d" long:"datadir" description:"Directory to store data"`
	LogDir      string `long:"logdir" description:"Directory to log output"`
	LogLevel    string `short:"l" long:"loglevel" description:"Set the logging level [debug, info, warning, error, alert, critical, emergency]." default:"info"`
	InMemory    bool   `long:"inmemory" description:"Keep all state in memory. Nothing is persisted across restarts."`
	LowMemory   bool   `long:"lowmemory" description:"Use less memory for the database at the cost of slower reads"`
	DevMode     bool   `long:"dev" description:"Use development logging"`

	Federation FederationOptions `group:"Federation"`
	Mint       MintOptions       `group:"Mint"`
}

// FederationOptions describes the committee this node is a member of.
// The signing threshold is an input from the membership layer and is
// never assumed.
type FederationOptions struct {
	Preset    string `long:"federation" description:"Use a preset federation [mainnet, devnet, regtest] instead of --threshold and --peers"`
	Threshold uint16 `long:"threshold" description:"The number of signature shares needed to finalize an output" default:"3"`
	Peers     uint16 `long:"peers" description:"The number of peers in the federation" default:"4"`
	PeerID    uint16 `long:"peerid" description:"This node's index in the federation" default:"0"`
}

type MintOptions struct {
	KeepShares    bool `long:"keepshares" description:"Keep received signature shares after an output is finalized"`
	MaxBackupSize int  `long:"maxbackupsize" description:"The maximum size of a user backup payload, in bytes"`
	MaxNonces     uint `long:"maxnonces" description:"The number of spent nonces to cache in memory"`
}

// LoadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in proper functionality without any config settings
// while still allowing the user to override settings with config files and
// command line options.  Command line options always take precedence.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:])
}

func loadConfig(args []string) (*Config, error) {
	// Default config.
	cfg := Config{
		DataDir:    DefaultHomeDir,
		ConfigFile: defaultConfigFile,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.  Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return nil, err
		}
	}
	if preCfg.ConfigFile == defaultConfigFile && preCfg.DataDir != DefaultHomeDir {
		preCfg.ConfigFile = filepath.Join(preCfg.DataDir, defaultConfigFilename)
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", VersionString())
		os.Exit(0)
	}

	// Load additional config from file.
	var configFileError error
	parser := flags.NewParser(&cfg, flags.Default)

	if _, err := os.Stat(preCfg.ConfigFile); os.IsNotExist(err) {
		err := createDefaultConfigFile(preCfg.ConfigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating a "+
				"default config file: %v\n", err)
		}
	}

	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintf(os.Stderr, "Error parsing config "+
				"file: %v\n", err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, err
		}
		configFileError = err
	}

	// Reparse command-line arguments to override config file settings
	_, err = parser.ParseArgs(args)
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return nil, err
		}
		fmt.Fprintf(os.Stderr, "Error parsing command line arguments: %v\n", err)
		return nil, err
	}

	if err := cfg.Federation.validate(); err != nil {
		return nil, err
	}

	if cfg.LogDir == "" {
		cfg.LogDir = CleanAndExpandPath(path.Join(cfg.DataDir, "logs"))
	}
	cfg.DataDir = CleanAndExpandPath(path.Join(cfg.DataDir, "db"))

	if cfg.Mint.MaxBackupSize == 0 {
		cfg.Mint.MaxBackupSize = DefaultMaxBackupSize
	}
	if cfg.Mint.MaxNonces == 0 {
		cfg.Mint.MaxNonces = DefaultMaxNonces
	}

	// Warn about missing config file only after all other configuration is
	// done. This prevents the warning on help messages and invalid
	// options. Note this should go directly before the return.
	if configFileError != nil {
		log.Errorf("Bad config file: %s", configFileError)
	}

	return &cfg, nil
}

// Params returns the preset federation if one is selected, otherwise a
// federation built from the threshold and peer count.
func (f FederationOptions) Params() (*params.FederationParams, error) {
	if f.Preset != "" {
		return params.FederationParamsByName(f.Preset)
	}
	return params.NewFederationParams(f.Threshold, f.Peers)
}

func (f FederationOptions) validate() error {
	p, err := f.Params()
	if err != nil {
		return err
	}
	if f.PeerID >= p.Peers {
		return fmt.Errorf("peerid must be less than %d", p.Peers)
	}
	return nil
}

// createDefaultConfigFile copies the sample-mintd.conf content to the given
// destination path.
func createDefaultConfigFile(destinationPath string) error {
	// Create the destination directory if it does not exists
	err := os.MkdirAll(filepath.Dir(destinationPath), 0700)
	if err != nil {
		return err
	}

	sampleBytes, err := fs.ReadFile(configFS, "sample-mintd.conf")
	if err != nil {
		return err
	}

	dest, err := os.OpenFile(destinationPath,
		os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer dest.Close()

	_, err = io.Copy(dest, bytes.NewReader(sampleBytes))
	return err
}

// CleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func CleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(DefaultHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
