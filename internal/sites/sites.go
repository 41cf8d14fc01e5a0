// Package sites holds the tracked-site model. Every event window and report
// is scoped to exactly one site.
package sites

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SiteNotFoundError represents an error when a site is not found
type SiteNotFoundError struct {
	Domain string
}

func (e *SiteNotFoundError) Error() string {
	return fmt.Sprintf("site not found for domain: %s", e.Domain)
}

// NewSiteNotFoundError creates a new SiteNotFoundError
func NewSiteNotFoundError(domain string) *SiteNotFoundError {
	return &SiteNotFoundError{Domain: domain}
}

// Site represents a tracked site
type Site struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Domain    string    `gorm:"unique;not null" json:"domain"`
	CreatedAt time.Time `json:"created_at"`
}

// GetFirstSite retrieves the first site from the database
func GetFirstSite(db *gorm.DB) (*Site, error) {
	var site Site
	if err := db.First(&site).Error; err != nil {
		return nil, err
	}
	return &site, nil
}

// GetSiteByDomain retrieves a Site entry by exact domain match
func GetSiteByDomain(db *gorm.DB, domain string) (*Site, error) {
	var site Site
	if err := db.Where("domain = ?", domain).First(&site).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewSiteNotFoundError(domain)
		}
		return nil, fmt.Errorf("unexpected error querying site: %w", err)
	}
	return &site, nil
}

// CreateSite persists a new site
func CreateSite(db *gorm.DB, site *Site) error {
	if site.CreatedAt.IsZero() {
		site.CreatedAt = time.Now().UTC()
	}
	if err := db.Create(site).Error; err != nil {
		return fmt.Errorf("failed to create site: %w", err)
	}
	return nil
}

// FindOrCreateSite returns the site for domain, creating it when missing.
func FindOrCreateSite(db *gorm.DB, domain string) (*Site, error) {
	site, err := GetSiteByDomain(db, domain)
	if err == nil {
		return site, nil
	}
	var notFound *SiteNotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}
	site = &Site{Domain: domain}
	if err := CreateSite(db, site); err != nil {
		return nil, err
	}
	return site, nil
}
