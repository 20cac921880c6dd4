// Package domain collects authority and age metrics for the analysed site.
package domain

import (
	"net/url"
	"strings"

	"github.com/aluiziolira/go-topical-authority/models"
	"golang.org/x/net/publicsuffix"
)

var (
	genericTLDs     = map[string]bool{"com": true, "net": true, "org": true, "info": true, "biz": true}
	countryCodeTLDs = map[string]bool{"uk": true, "de": true, "fr": true, "jp": true, "cn": true, "in": true, "br": true, "au": true}
)

// HostOf returns the lowercased host of rawURL without port or "www.".
func HostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// Registrable returns the eTLD+1 of host, or host itself when it has none
// (IP addresses, bare suffixes, localhost).
func Registrable(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}

// Structure splits host into subdomain, registrable domain and suffix.
func Structure(host string) models.DomainStructure {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	suffix, _ := publicsuffix.PublicSuffix(host)
	registrable := Registrable(host)

	var sub string
	if registrable != host && strings.HasSuffix(host, "."+registrable) {
		sub = strings.TrimSuffix(host, "."+registrable)
	}

	return models.DomainStructure{
		Subdomain:         sub,
		RegistrableDomain: registrable,
		Suffix:            suffix,
		IsSubdomain:       sub != "",
		TLDCategory:       tldCategory(suffix),
	}
}

func tldCategory(suffix string) string {
	last := suffix
	if i := strings.LastIndex(suffix, "."); i >= 0 {
		last = suffix[i+1:]
	}
	switch {
	case genericTLDs[last]:
		return models.TLDGeneric
	case countryCodeTLDs[last]:
		return models.TLDCountryCode
	default:
		return models.TLDOther
	}
}
