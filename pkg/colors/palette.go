package colors

import (
	"fmt"
	"math"
	"strings"
	"time"

	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	CompleteColor = "#DFF0D8" // light green
	OverdueColor  = "#F2DEDE" // light red
	PendingColor  = "#D9EDF7" // light blue
	TextColor     = "#000000"
)

// Status is the display classification of a task.
type Status int

const (
	Pending Status = iota
	Overdue
	Complete
)

func (s Status) String() string {
	switch s {
	case Complete:
		return "complete"
	case Overdue:
		return "overdue"
	default:
		return "pending"
	}
}

// Classify returns Complete for completed tasks, Overdue when due is strictly
// before now, and Pending otherwise.
func Classify(completed bool, due, now time.Time) Status {
	if completed {
		return Complete
	}
	if due.Before(now) {
		return Overdue
	}
	return Pending
}

// Palette holds the event colours used for each Status plus the text colour.
type Palette struct {
	Complete string `yaml:"complete" json:"complete"`
	Overdue  string `yaml:"overdue" json:"overdue"`
	Pending  string `yaml:"pending" json:"pending"`
	Text     string `yaml:"text" json:"text"`
}

func DefaultPalette() Palette {
	return Palette{
		Complete: CompleteColor,
		Overdue:  OverdueColor,
		Pending:  PendingColor,
		Text:     TextColor,
	}
}

// For returns the colour for s.
func (p Palette) For(s Status) string {
	switch s {
	case Complete:
		return p.Complete
	case Overdue:
		return p.Overdue
	default:
		return p.Pending
	}
}

// WithDefaults fills empty entries from DefaultPalette.
func (p Palette) WithDefaults() Palette {
	d := DefaultPalette()
	if p.Complete == "" {
		p.Complete = d.Complete
	}
	if p.Overdue == "" {
		p.Overdue = d.Overdue
	}
	if p.Pending == "" {
		p.Pending = d.Pending
	}
	if p.Text == "" {
		p.Text = d.Text
	}
	return p
}

// Validate checks that every entry is a #rrggbb colour.
func (p Palette) Validate() error {
	entries := []struct{ name, value string }{
		{"complete", p.Complete},
		{"overdue", p.Overdue},
		{"pending", p.Pending},
		{"text", p.Text},
	}
	for _, e := range entries {
		if _, err := colorful.Hex(e.value); err != nil {
			return fmt.Errorf("invalid %s colour %q: %w", e.name, e.value, err)
		}
	}
	return nil
}

// googleEventColors is the event palette returned by the Calendar API colors endpoint.
var googleEventColors = []struct {
	ID  string
	Hex string
}{
	{"1", "#a4bdfc"},
	{"2", "#7ae7bf"},
	{"3", "#dbadff"},
	{"4", "#ff887c"},
	{"5", "#fbd75b"},
	{"6", "#ffb878"},
	{"7", "#46d6db"},
	{"8", "#e1e1e1"},
	{"9", "#5484ed"},
	{"10", "#51b749"},
	{"11", "#dc2127"},
}

// googleEventHues holds the CIE-HCL hue of each googleEventColors entry.
var googleEventHues = func() map[string]float64 {
	hues := make(map[string]float64, len(googleEventColors))
	for _, gc := range googleEventColors {
		c, err := colorful.Hex(gc.Hex)
		if err != nil {
			panic(fmt.Sprintf("colors: bad Google event colour %s: %v", gc.Hex, err))
		}
		h, _, _ := c.Hcl()
		hues[gc.ID] = h
	}
	return hues
}()

var defaultGoogleIDs = map[string]string{
	CompleteColor: "2",
	OverdueColor:  "4",
	PendingColor:  "1",
}

// GoogleColorID maps a hex colour onto a Google Calendar event colorId.
// The default palette has fixed pastel matches. Anything else gets the entry
// with the closest hue, or "8" (graphite) for greys and unparseable input.
func GoogleColorID(hex string) string {
	if id, ok := defaultGoogleIDs[strings.ToUpper(hex)]; ok {
		return id
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return "8"
	}
	for _, gc := range googleEventColors {
		if strings.EqualFold(gc.Hex, hex) {
			return gc.ID
		}
	}

	h, chroma, _ := c.Hcl()
	if chroma < 0.05 {
		return "8"
	}
	best, bestDist := "8", math.MaxFloat64
	for _, gc := range googleEventColors {
		if gc.ID == "8" {
			continue
		}
		if d := hueDistance(h, googleEventHues[gc.ID]); d < bestDist {
			best, bestDist = gc.ID, d
		}
	}
	return best
}

func hueDistance(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > 180 {
		d = 360 - d
	}
	return d
}
