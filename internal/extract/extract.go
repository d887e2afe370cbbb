// Package extract turns a configured web page into a comparable snapshot
// value. Field rules pick single nodes by CSS selector, table rules turn
// row/cell structures into sequences of mappings; rules are applied in
// declaration order so the resulting mapping has a stable key order.
package extract

import (
	"time"

	"github.com/driftwatch-project/driftwatch/pkg/structdiff"
)

// Target is one watched site, as loaded from the configuration file.
type Target struct {
	// Name identifies the target in the store and in notifications. It
	// must not contain '|'.
	Name string `mapstructure:"name"`
	// URL of the page to snapshot.
	URL string `mapstructure:"url"`
	// Login, when set, is performed before every snapshot.
	Login *Login `mapstructure:"login"`

	Fields []Field `mapstructure:"fields"`
	Tables []Table `mapstructure:"tables"`

	// Interval between polls; the poller falls back to its default when
	// zero.
	Interval time.Duration `mapstructure:"interval"`
	// Webhook overrides the global webhook URL for this target.
	Webhook string `mapstructure:"webhook"`

	Diff DiffRules `mapstructure:"diff"`
}

// Login describes a classic form login: fetch the form, carry over its
// hidden inputs, post the credentials.
type Login struct {
	URL string `mapstructure:"url"`
	// Form is the CSS selector of the login form ("form" when empty).
	Form          string `mapstructure:"form"`
	UsernameField string `mapstructure:"username_field"`
	PasswordField string `mapstructure:"password_field"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	// Success is a selector that must match on the page the login lands
	// on; empty skips the check.
	Success string `mapstructure:"success"`
}

// Field extracts a single scalar: the text (or an attribute) of the first
// node the selector matches. A non-matching selector yields null.
type Field struct {
	Key      string `mapstructure:"key"`
	Selector string `mapstructure:"selector"`
	Attr     string `mapstructure:"attr"`
}

// Table extracts a sequence of mappings, one per row. Cells are assigned
// to Columns by position; rows with fewer cells than columns are a hard
// error rather than a silent misalignment.
type Table struct {
	Key  string `mapstructure:"key"`
	Rows string `mapstructure:"rows"`
	// Cells is the per-row cell selector ("td" when empty).
	Cells   string   `mapstructure:"cells"`
	Columns []string `mapstructure:"columns"`
}

// DiffRules is the per-target comparison configuration.
type DiffRules struct {
	IgnoreKeys []string `mapstructure:"ignore_keys"`
	IgnoreCase bool     `mapstructure:"ignore_case"`
	MaxDepth   int      `mapstructure:"max_depth"`
	SkipNulls  bool     `mapstructure:"skip_nulls"`
}

func (r DiffRules) Options() structdiff.Options {
	return structdiff.Options{
		IgnoreKeys: r.IgnoreKeys,
		IgnoreCase: r.IgnoreCase,
		MaxDepth:   r.MaxDepth,
		SkipNulls:  r.SkipNulls,
	}
}
