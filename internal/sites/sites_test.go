package sites_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailmark/internal/sites"
	"trailmark/internal/testsupport"
)

func TestGetSiteByDomain(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	created := testsupport.CreateTestSite(t, db, "example.com")

	site, err := sites.GetSiteByDomain(db, "example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, site.ID)

	_, err = sites.GetSiteByDomain(db, "missing.com")
	require.Error(t, err)
	var notFound *sites.SiteNotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing.com", notFound.Domain)
}

func TestFindOrCreateSite(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	site, err := sites.FindOrCreateSite(db, "new.example.com")
	require.NoError(t, err)
	require.NotZero(t, site.ID)
	assert.False(t, site.CreatedAt.IsZero())

	again, err := sites.FindOrCreateSite(db, "new.example.com")
	require.NoError(t, err)
	assert.Equal(t, site.ID, again.ID)
}

func TestGetFirstSite(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	first := testsupport.CreateTestSite(t, db, "a.example.com")
	testsupport.CreateTestSite(t, db, "b.example.com")

	site, err := sites.GetFirstSite(db)
	require.NoError(t, err)
	assert.Equal(t, first.ID, site.ID)
}
