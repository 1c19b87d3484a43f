// Package resolver maps episode numbers to an ordered list of candidate
// download URLs. Rules are static configuration; the resolver never touches
// the network.
package resolver

import (
	"fmt"
	"strconv"
	"strings"
)

// Rule describes how one hosting origin names its episode files.
type Rule struct {
	// Name identifies the rule in logs and metrics (e.g. "aws", "pentadact-padded").
	Name string `yaml:"name"`

	// Base is the origin URL up to the episode number, including any file stem.
	// Example: "https://www.pentadact.com/podcast/CCEp"
	Base string `yaml:"base"`

	// PadWidth zero-pads the number to this many digits. 0 disables padding.
	PadWidth int `yaml:"pad_width"`

	// Extension follows the number (e.g. ".mp3").
	Extension string `yaml:"extension"`

	// Query is an optional trailing query suffix. A leading "?" is added when missing.
	Query string `yaml:"query,omitempty"`
}

// Format renders an episode number according to the rule's padding.
// Numbers wider than PadWidth are never truncated.
func (r Rule) Format(n int) string {
	if r.PadWidth <= 0 {
		return strconv.Itoa(n)
	}
	return fmt.Sprintf("%0*d", r.PadWidth, n)
}

// URL builds the full candidate location for episode n.
func (r Rule) URL(n int) string {
	var b strings.Builder
	b.WriteString(r.Base)
	b.WriteString(r.Format(n))
	b.WriteString(r.Extension)
	if r.Query != "" {
		if !strings.HasPrefix(r.Query, "?") {
			b.WriteByte('?')
		}
		b.WriteString(r.Query)
	}
	return b.String()
}

// Validate checks that the rule can produce usable URLs.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rule name is required")
	}
	if strings.TrimSpace(r.Base) == "" {
		return fmt.Errorf("rule %q: base url is required", r.Name)
	}
	if r.PadWidth < 0 {
		return fmt.Errorf("rule %q: pad_width must be >= 0 (got %d)", r.Name, r.PadWidth)
	}
	return nil
}

// DefaultRules returns the known Crate and Crowbar origins, most likely first.
//
// Early episodes live on S3 with three-digit numbers. From roughly episode 76
// most are on pentadact.com, where some files are zero-padded and some are not.
// There is no clean cutoff, so every item walks all three.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:      "aws",
			Base:      "https://s3-eu-west-1.amazonaws.com/crateandcrowbar/episodes/CCEp",
			PadWidth:  3,
			Extension: ".mp3",
		},
		{
			Name:      "pentadact-padded",
			Base:      "https://www.pentadact.com/podcast/CCEp",
			PadWidth:  3,
			Extension: ".mp3",
		},
		{
			Name:      "pentadact",
			Base:      "https://www.pentadact.com/podcast/CCEp",
			Extension: ".mp3",
		},
	}
}
