package funnel

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

type StepKind string

const (
	StepKindEvent StepKind = "event"
	StepKindURL   StepKind = "url"
)

type MatchKind string

const (
	MatchExact    MatchKind = "exact"
	MatchWildcard MatchKind = "wildcard"
	MatchContains MatchKind = "contains"
)

// Step is one stage of a funnel. Match is compared against the event
// type for event steps and against the page URL for url steps. When
// MatchKind is empty it is inferred: patterns containing % are treated
// as wildcards, everything else as an exact match.
type Step struct {
	Name      string    `json:"name" yaml:"name"`
	Kind      StepKind  `json:"kind" yaml:"kind"`
	Match     string    `json:"match" yaml:"match"`
	MatchKind MatchKind `json:"match_kind,omitempty" yaml:"match_kind,omitempty"`
}

// Definition is a stored funnel. Steps are kept as a JSON column so the
// shape can evolve without migrations.
type Definition struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	SiteID    uint      `gorm:"index;not null" json:"site_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Steps     string    `gorm:"type:text;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (Definition) TableName() string {
	return "funnel_definitions"
}

func (d *Definition) StepList() ([]Step, error) {
	var steps []Step
	if err := json.Unmarshal([]byte(d.Steps), &steps); err != nil {
		return nil, fmt.Errorf("failed to decode funnel steps: %w", err)
	}
	return steps, nil
}

func (d *Definition) SetSteps(steps []Step) error {
	data, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("failed to encode funnel steps: %w", err)
	}
	d.Steps = string(data)
	return nil
}

// ValidateSteps rejects definitions a funnel run could not interpret.
func ValidateSteps(steps []Step) error {
	if len(steps) < 2 {
		return fmt.Errorf("funnel requires at least 2 steps, got %d", len(steps))
	}
	for i, step := range steps {
		if step.Name == "" {
			return fmt.Errorf("step %d has no name", i+1)
		}
		if step.Match == "" {
			return fmt.Errorf("step %q has no match expression", step.Name)
		}
		switch step.Kind {
		case StepKindEvent, StepKindURL:
		default:
			return fmt.Errorf("step %q has unknown kind %q", step.Name, step.Kind)
		}
		switch step.MatchKind {
		case "", MatchExact, MatchWildcard, MatchContains:
		default:
			return fmt.Errorf("step %q has unknown match kind %q", step.Name, step.MatchKind)
		}
	}
	return nil
}

// DefinitionFile is the YAML shape accepted by the CLI.
type DefinitionFile struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

func LoadDefinitionFile(path string) (*DefinitionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read funnel file: %w", err)
	}
	var file DefinitionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse funnel file %s: %w", path, err)
	}
	if file.Name == "" {
		return nil, fmt.Errorf("funnel file %s has no name", path)
	}
	if err := ValidateSteps(file.Steps); err != nil {
		return nil, err
	}
	return &file, nil
}

func CreateDefinition(db *gorm.DB, siteID uint, name string, steps []Step) (*Definition, error) {
	if err := ValidateSteps(steps); err != nil {
		return nil, err
	}
	def := &Definition{SiteID: siteID, Name: name}
	if err := def.SetSteps(steps); err != nil {
		return nil, err
	}
	if err := db.Create(def).Error; err != nil {
		return nil, fmt.Errorf("failed to create funnel definition: %w", err)
	}
	return def, nil
}

func GetDefinitionByID(db *gorm.DB, id uint) (*Definition, error) {
	var def Definition
	if err := db.First(&def, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get funnel definition %d: %w", id, err)
	}
	return &def, nil
}

func GetDefinitionsBySite(db *gorm.DB, siteID uint) ([]Definition, error) {
	var defs []Definition
	if err := db.Where("site_id = ?", siteID).Order("id asc").Find(&defs).Error; err != nil {
		return nil, fmt.Errorf("failed to list funnel definitions: %w", err)
	}
	return defs, nil
}
