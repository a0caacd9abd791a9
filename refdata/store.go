// Package refdata provides access to the reference documents the pipeline
// consults: CRM records, party registers, transaction history, company
// registry extracts, news snippets and the rules configuration. Documents
// are named JSON trees; they can come from embedded defaults, a directory on
// disk, or a Postgres table.
package refdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kybradar/kybradar/helper"
	"github.com/kybradar/kybradar/model"
)

// ErrNotFound reports an absent customer or record. It is the only
// reference-data error that aborts a pipeline run.
var ErrNotFound = errors.New("record not found")

// Document names understood by the library.
const (
	DocCRM          = "crm.json"
	DocParties      = "parties.json"
	DocTransactions = "transactions.json"
	DocCompanies    = "companyhouse.json"
	DocNews         = "news.json"
	DocRules        = "rules.json"
)

// DocumentStore loads a named JSON document.
type DocumentStore interface {
	Load(name string) ([]byte, error)
}

// CustomerRecord is a raw CRM record.
type CustomerRecord struct {
	CustomerID            string   `json:"customer_id"`
	LegalName             string   `json:"legal_name"`
	Sector                string   `json:"sector"`
	SubSector             string   `json:"sub_sector"`
	IncorporationCountry  string   `json:"incorporation_country"`
	OperatingCountry      string   `json:"operating_country"`
	OnboardingDate        string   `json:"onboarding_date"`
	TurnoverBand          string   `json:"turnover_band"`
	InternalRiskRating    string   `json:"internal_risk_rating"`
	PEPFlag               bool     `json:"pep_flag"`
	SanctionsFlag         bool     `json:"sanctions_flag"`
	KYBStatus             string   `json:"kyb_status"`
	KYBLastReviewDate     string   `json:"kyb_last_review_date"`
	Products              []string `json:"products"`
	LinkedCustomerIDs     []string `json:"linked_customer_ids,omitempty"`
	OrganizationStructure string   `json:"organization_structure,omitempty"`
}

// EntityProfile maps the CRM record onto the outcome profile shape.
func (r CustomerRecord) EntityProfile() model.EntityProfile {
	return model.EntityProfile{
		LegalName:            r.LegalName,
		CustomerID:           r.CustomerID,
		Sector:               r.Sector,
		SubSector:            r.SubSector,
		IncorporationCountry: r.IncorporationCountry,
		OperatingCountry:     r.OperatingCountry,
		OnboardingDate:       r.OnboardingDate,
		TurnoverBand:         r.TurnoverBand,
		InternalRiskRating:   r.InternalRiskRating,
		PEPFlag:              r.PEPFlag,
		SanctionsFlag:        r.SanctionsFlag,
		KYBStatus:            r.KYBStatus,
		KYBLastReviewDate:    r.KYBLastReviewDate,
		Products:             r.Products,
	}
}

// PartyRawRecord is a raw register entry for an associated party.
type PartyRawRecord struct {
	PartyID           string `json:"party_id"`
	Name              string `json:"name"`
	Role              string `json:"role"`
	RiskLabel         string `json:"risk_label"`
	Residency         string `json:"residency"`
	PEP               bool   `json:"pep"`
	Sanctions         bool   `json:"sanctions"`
	HighRiskResidency bool   `json:"high_risk_residency"`
}

// MonthlyStat is one month of aggregated transaction activity.
type MonthlyStat struct {
	Period                string  `json:"period"`
	IntlOutwardAmount     float64 `json:"intl_outward_amount"`
	TotalOutwardAmount    float64 `json:"total_outward_amount"`
	HighRiskCountryVolume float64 `json:"high_risk_country_volume"`
	CashDepositsAmount    float64 `json:"cash_deposits_amount"`
}

// BusinessRecord is a company registry extract.
type BusinessRecord struct {
	CustomerID        string `json:"customer_id"`
	CompanyNumber     string `json:"company_number"`
	CompanyName       string `json:"company_name"`
	CompanyStatus     string `json:"company_status"`
	IncorporationDate string `json:"incorporation_date"`
	FilingOverdue     bool   `json:"filing_overdue"`
	ChargesRegistered int    `json:"charges_registered"`
}

// NewsSnippet is a stored news or social mention of a customer.
type NewsSnippet struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// Library exposes typed access to the reference documents of one store.
// It is safe for concurrent use when the underlying store is.
type Library struct {
	store DocumentStore
}

// NewLibrary wraps a document store.
func NewLibrary(store DocumentStore) *Library {
	return &Library{store: store}
}

func (l *Library) document(name string, out any) error {
	data, err := l.store.Load(name)
	if err != nil {
		return helper.NewError(fmt.Sprintf("load document %s", name), err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return helper.NewError(fmt.Sprintf("parse document %s", name), err)
	}
	return nil
}

// Customer returns the CRM record for a customer, or ErrNotFound.
func (l *Library) Customer(customerID string) (CustomerRecord, error) {
	var doc struct {
		Customers []CustomerRecord `json:"customers"`
	}
	if err := l.document(DocCRM, &doc); err != nil {
		return CustomerRecord{}, err
	}
	for _, c := range doc.Customers {
		if c.CustomerID == customerID {
			return c, nil
		}
	}
	return CustomerRecord{}, fmt.Errorf("customer %s: %w", customerID, ErrNotFound)
}

// Customers returns every CRM record.
func (l *Library) Customers() ([]CustomerRecord, error) {
	var doc struct {
		Customers []CustomerRecord `json:"customers"`
	}
	if err := l.document(DocCRM, &doc); err != nil {
		return nil, err
	}
	return doc.Customers, nil
}

// Parties returns the raw party register for a customer. A customer with no
// register entry yields an empty slice, not an error.
func (l *Library) Parties(customerID string) ([]PartyRawRecord, error) {
	var doc struct {
		Customers map[string][]PartyRawRecord `json:"customers"`
	}
	if err := l.document(DocParties, &doc); err != nil {
		return nil, err
	}
	return doc.Customers[customerID], nil
}

// MonthlyStats returns up to the last six months of transaction stats,
// ordered by period ascending. ErrNotFound when the customer has no
// transaction document at all.
func (l *Library) MonthlyStats(customerID string) ([]MonthlyStat, error) {
	var doc struct {
		Customers map[string]struct {
			MonthlyStats []MonthlyStat `json:"monthly_stats"`
		} `json:"customers"`
	}
	if err := l.document(DocTransactions, &doc); err != nil {
		return nil, err
	}
	entry, ok := doc.Customers[customerID]
	if !ok {
		return nil, fmt.Errorf("transactions for %s: %w", customerID, ErrNotFound)
	}

	stats := entry.MonthlyStats
	sort.SliceStable(stats, func(i, j int) bool {
		return parsePeriod(stats[i].Period).Before(parsePeriod(stats[j].Period))
	})
	if len(stats) > 6 {
		stats = stats[len(stats)-6:]
	}
	return stats, nil
}

// parsePeriod accepts yyyy-MM or yyyy-MM-dd, defaulting to the first day of
// the month. Unparsable periods sort first.
func parsePeriod(period string) time.Time {
	if t, err := time.Parse("2006-01-02", period); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01", period); err == nil {
		return t
	}
	return time.Time{}
}

// Businesses returns the registry extracts matching a customer.
func (l *Library) Businesses(customerID string) ([]BusinessRecord, error) {
	var doc struct {
		Businesses []BusinessRecord `json:"businesses"`
	}
	if err := l.document(DocCompanies, &doc); err != nil {
		return nil, err
	}
	var out []BusinessRecord
	for _, b := range doc.Businesses {
		if b.CustomerID == customerID {
			out = append(out, b)
		}
	}
	return out, nil
}

// Snippets returns the stored news/social snippets for a customer.
func (l *Library) Snippets(customerID string) ([]NewsSnippet, error) {
	var doc struct {
		Customers map[string][]NewsSnippet `json:"customers"`
	}
	if err := l.document(DocNews, &doc); err != nil {
		return nil, err
	}
	return doc.Customers[customerID], nil
}

// Rules loads the rules configuration. A missing or malformed document
// yields the zero config, which the engine treats with its conservative
// defaults.
func (l *Library) Rules() (model.RulesConfig, error) {
	var cfg model.RulesConfig
	if err := l.document(DocRules, &cfg); err != nil {
		return model.RulesConfig{}, err
	}
	return cfg, nil
}
