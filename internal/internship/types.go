package internship

import (
	"net/http"
	"time"
)

// Constant listing fields. The source page exposes only a title per card; every
// other field is fixed for the government programme.
const (
	FallbackTitle  = "PM Internship"
	Organization   = "Government of India"
	Description    = "Government internship program"
	Location       = "New Delhi"
	SkillsRequired = "Government,Policy,Administration"
	Duration       = "3 months"
	Stipend        = "₹10,000"
	ImageURL       = "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=400"
	CompanyLogo    = "https://upload.wikimedia.org/wikipedia/commons/5/55/Emblem_of_India.svg"
)

// DefaultCollection is the document collection (or table) listings are written to.
const DefaultCollection = "internships"

// Listing is one extracted internship record. It is immutable once persisted.
type Listing struct {
	Title          string `json:"title" firestore:"title" bson:"title"`
	Organization   string `json:"organization" firestore:"organization" bson:"organization"`
	Description    string `json:"description" firestore:"description" bson:"description"`
	Location       string `json:"location" firestore:"location" bson:"location"`
	SkillsRequired string `json:"skillsRequired" firestore:"skillsRequired" bson:"skillsRequired"`
	Duration       string `json:"duration" firestore:"duration" bson:"duration"`
	Stipend        string `json:"stipend" firestore:"stipend" bson:"stipend"`
	ImageURL       string `json:"imageUrl" firestore:"imageUrl" bson:"imageUrl"`
	CompanyLogo    string `json:"companyLogo" firestore:"companyLogo" bson:"companyLogo"`
	// Timestamp is the extraction time in epoch milliseconds.
	Timestamp int64 `json:"timestamp" firestore:"timestamp" bson:"timestamp"`
}

// NewListing returns a listing carrying the fixed programme fields.
func NewListing(title string, timestamp int64) Listing {
	return Listing{
		Title:          title,
		Organization:   Organization,
		Description:    Description,
		Location:       Location,
		SkillsRequired: SkillsRequired,
		Duration:       Duration,
		Stipend:        Stipend,
		ImageURL:       ImageURL,
		CompanyLogo:    CompanyLogo,
		Timestamp:      timestamp,
	}
}

// FetchRequest captures everything needed to fetch the source page.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// Result summarizes one successful scrape run.
type Result struct {
	Count       int       `json:"count"`
	DocumentIDs []string  `json:"document_ids"`
	SnapshotURI string    `json:"snapshot_uri,omitempty"`
	ScrapedAt   time.Time `json:"scraped_at"`
}
