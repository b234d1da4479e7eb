package session

import (
	"regexp"
	"strings"
)

// Identity holds the attributes derivable from a radio's banner and prompt.
type Identity struct {
	Model    string
	Name     string
	Serial   string
	Software string
}

// Empty reports whether nothing at all was derived.
func (id Identity) Empty() bool {
	return id.Model == "" && id.Name == "" && id.Serial == "" && id.Software == ""
}

// IdentityRules is the pattern table used to derive a radio's identity from
// its SSH banner, CLI prompt, and (as a last resort) inventory output. The
// heuristics are firmware-specific, so the table is constructed explicitly
// and passed into each session rather than baked into control flow.
type IdentityRules struct {
	// Prompt matches the CLI prompt in the response to an empty line.
	Prompt *regexp.Regexp

	// BannerSerial and BannerVersion extract S/N and software version from
	// the banner; the model is the text before the first comma.
	BannerSerial  *regexp.Regexp
	BannerVersion *regexp.Regexp

	// PromptMesh matches mesh-radio prompts of the form "MODEL@name>".
	PromptMesh *regexp.Regexp

	// PromptPlain matches the classic "name>" prompt.
	PromptPlain *regexp.Regexp

	// InventoryCommand is issued when the banner is absent; some
	// firmware/hardware combinations stopped sending one. The Inventory*
	// patterns parse its response.
	InventoryCommand string
	InventoryModel   *regexp.Regexp
	InventorySerial  *regexp.Regexp
	InventoryVersion *regexp.Regexp
}

// DefaultIdentityRules returns the pattern table covering the known
// firmware families.
func DefaultIdentityRules() *IdentityRules {
	return &IdentityRules{
		Prompt:           regexp.MustCompile(`(\S+>)`),
		BannerSerial:     regexp.MustCompile(`(?i)S/N:\s*([^,]+)`),
		BannerVersion:    regexp.MustCompile(`Ver:\s*(.+)`),
		PromptMesh:       regexp.MustCompile(`^(MH-\S+)@(\S+)>`),
		PromptPlain:      regexp.MustCompile(`^(.+)>`),
		InventoryCommand: "show inventory 1",
		InventoryModel:   regexp.MustCompile(`(?m)^inventory 1 desc\s*:\s*(\S+)`),
		InventorySerial:  regexp.MustCompile(`(?m)^inventory 1 serial\s*:\s*(\S+)`),
		InventoryVersion: regexp.MustCompile(`(?m)^inventory 1 sw-rev\s*:\s*(\S+)`),
	}
}

// parseBanner extracts model, serial and software version from the banner.
// Returns a zero Identity if the banner does not look like a radio's.
func (r *IdentityRules) parseBanner(banner string) Identity {
	var id Identity
	if banner == "" {
		return id
	}
	if i := strings.Index(banner, ","); i > 0 {
		id.Model = strings.TrimSpace(banner[:i])
	}
	if m := r.BannerSerial.FindStringSubmatch(banner); m != nil {
		id.Serial = strings.TrimSpace(m[1])
	}
	if m := r.BannerVersion.FindStringSubmatch(banner); m != nil {
		id.Software = strings.TrimSpace(m[1])
	}
	return id
}

// parseInventory extracts identity fields from the inventory fallback
// response.
func (r *IdentityRules) parseInventory(response string) Identity {
	var id Identity
	if m := r.InventoryModel.FindStringSubmatch(response); m != nil {
		id.Model = m[1]
	}
	if m := r.InventorySerial.FindStringSubmatch(response); m != nil {
		id.Serial = m[1]
	}
	if m := r.InventoryVersion.FindStringSubmatch(response); m != nil {
		id.Software = m[1]
	}
	return id
}
