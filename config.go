package jetdb

import (
	"time"

	"github.com/sirupsen/logrus"
)

// ColumnOrder selects which permutation of a table's columns is exposed
// by default: the storage order (data) or the user-visible order the
// catalog records separately (display). See catalog.Table.Columns.
type ColumnOrder int

const (
	// DataColumnOrder returns columns ordered by column_index.
	DataColumnOrder ColumnOrder = iota
	// DisplayColumnOrder returns columns ordered by the display
	// permutation recorded in the table-def chain.
	DisplayColumnOrder
)

// Config collects the environment toggles spec.md §6 describes as
// "illustrative names, the contract is their effects". It replaces the
// source's global System.getProperty reads with an explicit record
// passed into Open, the way the teacher's PageConfig/LogConfig pattern
// threads configuration through a constructor instead of package
// globals.
type Config struct {
	// DefaultTimeZone names the zone for DATETIME values, which carry no
	// explicit zone (Jet DATETIME is a bare double). Defaults to
	// time.Local. No package in this module reads it: package value
	// encodes and decodes DATETIME in UTC.
	DefaultTimeZone *time.Location

	// DefaultCharset names the charset for TEXT columns in Jet 3 files,
	// which predate UCS-2-only storage. Defaults to "windows-1252". No
	// package in this module reads it: package value decodes every TEXT
	// value as UCS-2 or its one-byte compressed form.
	DefaultCharset string

	// ColumnOrder selects the default iteration order for
	// catalog.Table.Columns. Defaults to DataColumnOrder.
	ColumnOrder ColumnOrder

	// EnforceForeignKeys turns off referential-integrity checking and
	// cascades entirely when false. Defaults to true.
	EnforceForeignKeys bool

	// BrokenNio names a degraded, non-zero-copy page transfer mode for
	// hosts whose mmap/sendfile-equivalent is unreliable. Defaults to
	// false. No package in this module reads it: page.Channel always
	// transfers pages through its io.ReadWriteSeeker.
	BrokenNio bool

	// ResourcePath names a directory for collation tables and empty
	// database templates. No package in this module reads it: package
	// collation builds its tables in code, and Database.Create formats a
	// new file without a template.
	ResourcePath string

	// Logger receives structured diagnostics. Defaults to a logrus
	// logger writing to stderr at InfoLevel, matching the teacher's
	// logger package defaults.
	Logger *logrus.Logger
}

// DefaultConfig returns a Config with every field set to its documented
// default.
func DefaultConfig() *Config {
	return &Config{
		DefaultTimeZone:    time.Local,
		DefaultCharset:     "windows-1252",
		ColumnOrder:        DataColumnOrder,
		EnforceForeignKeys: true,
		BrokenNio:          false,
		Logger:             defaultLogger(),
	}
}

// Normalize fills in every zero-valued field of cfg with its documented
// default, returning DefaultConfig() if cfg is nil. Package catalog calls
// this on the Config a caller passes to Database.Open/Create, so it
// never has to duplicate these defaults itself.
func Normalize(cfg *Config) *Config { return withDefaults(cfg) }

func defaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return l
}

// withDefaults fills in zero-valued fields of cfg, returning cfg itself
// for chaining. A nil cfg yields DefaultConfig().
func withDefaults(cfg *Config) *Config {
	if cfg == nil {
		return DefaultConfig()
	}
	if cfg.DefaultTimeZone == nil {
		cfg.DefaultTimeZone = time.Local
	}
	if cfg.DefaultCharset == "" {
		cfg.DefaultCharset = "windows-1252"
	}
	if cfg.Logger == nil {
		cfg.Logger = defaultLogger()
	}
	return cfg
}
