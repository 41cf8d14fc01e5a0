package cohort

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"trailmark/internal/timeframe"
)

type IntervalType string

const (
	IntervalDaily   IntervalType = "daily"
	IntervalWeekly  IntervalType = "weekly"
	IntervalMonthly IntervalType = "monthly"
)

// BucketSize maps the interval to the truncation granularity used when
// assigning visitors to cohorts.
func (it IntervalType) BucketSize() timeframe.BucketSize {
	switch it {
	case IntervalWeekly:
		return timeframe.BucketSizeWeek
	case IntervalMonthly:
		return timeframe.BucketSizeMonth
	default:
		return timeframe.BucketSizeDay
	}
}

const DateFieldFirstSeen = "first_seen"

// Definition is a stored cohort configuration. RetentionPeriods is a
// JSON-encoded list of day offsets, e.g. [1,7,14,30,60,90].
type Definition struct {
	ID               uint         `gorm:"primarykey" json:"id"`
	SiteID           uint         `gorm:"index;not null" json:"site_id"`
	Name             string       `gorm:"size:255;not null" json:"name"`
	IntervalType     IntervalType `gorm:"size:16;not null" json:"interval_type"`
	RetentionPeriods string       `gorm:"type:text;not null" json:"-"`
	DateField        string       `gorm:"size:32;not null;default:first_seen" json:"date_field"`
	CreatedAt        time.Time    `json:"created_at"`
}

func (Definition) TableName() string {
	return "cohort_definitions"
}

func (d *Definition) PeriodList() ([]int, error) {
	var periods []int
	if err := json.Unmarshal([]byte(d.RetentionPeriods), &periods); err != nil {
		return nil, fmt.Errorf("failed to decode retention periods: %w", err)
	}
	return periods, nil
}

func (d *Definition) SetPeriods(periods []int) error {
	data, err := json.Marshal(periods)
	if err != nil {
		return fmt.Errorf("failed to encode retention periods: %w", err)
	}
	d.RetentionPeriods = string(data)
	return nil
}

func ValidateIntervalType(it IntervalType) error {
	switch it {
	case IntervalDaily, IntervalWeekly, IntervalMonthly:
		return nil
	}
	return fmt.Errorf("unknown interval type %q", it)
}

func ValidatePeriods(periods []int) error {
	if len(periods) == 0 {
		return fmt.Errorf("cohort requires at least one retention period")
	}
	for _, p := range periods {
		if p < 0 {
			return fmt.Errorf("retention period must not be negative, got %d", p)
		}
	}
	return nil
}

// DefinitionFile is the YAML shape accepted by the CLI.
type DefinitionFile struct {
	Name             string       `yaml:"name"`
	IntervalType     IntervalType `yaml:"interval_type"`
	RetentionPeriods []int        `yaml:"retention_periods"`
	DateField        string       `yaml:"date_field"`
}

func LoadDefinitionFile(path string) (*DefinitionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cohort file: %w", err)
	}
	var file DefinitionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse cohort file %s: %w", path, err)
	}
	if file.Name == "" {
		return nil, fmt.Errorf("cohort file %s has no name", path)
	}
	if err := ValidateIntervalType(file.IntervalType); err != nil {
		return nil, err
	}
	if err := ValidatePeriods(file.RetentionPeriods); err != nil {
		return nil, err
	}
	if file.DateField == "" {
		file.DateField = DateFieldFirstSeen
	}
	return &file, nil
}

func CreateDefinition(db *gorm.DB, siteID uint, file *DefinitionFile) (*Definition, error) {
	def := &Definition{
		SiteID:       siteID,
		Name:         file.Name,
		IntervalType: file.IntervalType,
		DateField:    file.DateField,
	}
	if def.DateField == "" {
		def.DateField = DateFieldFirstSeen
	}
	if err := def.SetPeriods(file.RetentionPeriods); err != nil {
		return nil, err
	}
	if err := db.Create(def).Error; err != nil {
		return nil, fmt.Errorf("failed to create cohort definition: %w", err)
	}
	return def, nil
}

func GetDefinitionByID(db *gorm.DB, id uint) (*Definition, error) {
	var def Definition
	if err := db.First(&def, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get cohort definition %d: %w", id, err)
	}
	return &def, nil
}

func GetDefinitionsBySite(db *gorm.DB, siteID uint) ([]Definition, error) {
	var defs []Definition
	if err := db.Where("site_id = ?", siteID).Order("id asc").Find(&defs).Error; err != nil {
		return nil, fmt.Errorf("failed to list cohort definitions: %w", err)
	}
	return defs, nil
}
