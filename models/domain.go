package models

import "time"

// Status is the outcome of a call to an external collaborator.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusUnavailable Status = "unavailable"
	StatusError       Status = "error"
)

// TLD categories.
const (
	TLDGeneric     = "generic"
	TLDCountryCode = "country_code"
	TLDOther       = "other"
)

// DomainStructure breaks a host into its public-suffix parts.
type DomainStructure struct {
	Subdomain         string `json:"subdomain"`
	RegistrableDomain string `json:"registrable_domain"`
	Suffix            string `json:"suffix"`
	IsSubdomain       bool   `json:"is_subdomain"`
	TLDCategory       string `json:"tld_category"`
}

// DomainMetrics holds authority and age data for a domain. Nil pointers mean
// the provider did not report the value.
type DomainMetrics struct {
	Domain             string          `json:"domain"`
	DomainAuthority    *float64        `json:"domain_authority"`
	PageAuthority      *float64        `json:"page_authority"`
	SpamScore          *float64        `json:"spam_score"`
	RootDomainsLinking *int64          `json:"root_domains_linking"`
	ExternalLinks      *int64          `json:"external_links"`
	DomainAgeYears     *float64        `json:"domain_age_years"`
	CreationDate       *time.Time      `json:"creation_date,omitempty"`
	Registrar          string          `json:"registrar,omitempty"`
	Provider           string          `json:"provider,omitempty"`
	Status             Status          `json:"status"`
	Message            string          `json:"message,omitempty"`
	AgeStatus          Status          `json:"age_status"`
	AgeMessage         string          `json:"age_message,omitempty"`
	Structure          DomainStructure `json:"structure"`
}
