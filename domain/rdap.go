package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultRDAPEndpoint bootstraps RDAP queries to the authoritative registry.
const DefaultRDAPEndpoint = "https://rdap.org"

// ErrNoRegistrationDate is returned when the registry omits the creation event.
var ErrNoRegistrationDate = errors.New("domain: no registration date")

// Registration is the registry data used for domain age.
type Registration struct {
	Created   time.Time
	Registrar string
}

// AgeLookup resolves when a domain was registered.
type AgeLookup interface {
	Name() string
	Lookup(ctx context.Context, domain string) (*Registration, error)
}

// RDAP looks registrations up over the Registration Data Access Protocol.
type RDAP struct {
	baseURL    string
	httpClient *http.Client
}

// NewRDAP returns an RDAP lookup. A nil client gets a traced default.
func NewRDAP(baseURL string, hc *http.Client) *RDAP {
	if baseURL == "" {
		baseURL = DefaultRDAPEndpoint
	}
	if hc == nil {
		hc = &http.Client{
			Timeout:   20 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &RDAP{baseURL: strings.TrimRight(baseURL, "/"), httpClient: hc}
}

// Name implements AgeLookup.
func (r *RDAP) Name() string { return "rdap" }

type rdapDomain struct {
	Events []struct {
		Action string `json:"eventAction"`
		Date   string `json:"eventDate"`
	} `json:"events"`
	Entities []struct {
		Roles      []string          `json:"roles"`
		VCardArray []json.RawMessage `json:"vcardArray"`
	} `json:"entities"`
}

// Lookup implements AgeLookup.
func (r *RDAP) Lookup(ctx context.Context, domain string) (*Registration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/domain/"+domain, nil)
	if err != nil {
		return nil, fmt.Errorf("build rdap request: %w", err)
	}
	req.Header.Set("Accept", "application/rdap+json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rdap request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rdap request: status %d", resp.StatusCode)
	}

	var doc rdapDomain
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode rdap response: %w", err)
	}

	reg := &Registration{Registrar: registrarName(doc)}
	for _, ev := range doc.Events {
		if ev.Action != "registration" {
			continue
		}
		created, err := time.Parse(time.RFC3339, ev.Date)
		if err != nil {
			return nil, fmt.Errorf("parse registration date %q: %w", ev.Date, err)
		}
		reg.Created = created
		return reg, nil
	}
	return nil, ErrNoRegistrationDate
}

// registrarName pulls the "fn" property out of the registrar's jCard.
func registrarName(doc rdapDomain) string {
	for _, ent := range doc.Entities {
		isRegistrar := false
		for _, role := range ent.Roles {
			if role == "registrar" {
				isRegistrar = true
			}
		}
		if !isRegistrar || len(ent.VCardArray) < 2 {
			continue
		}
		var props [][]json.RawMessage
		if err := json.Unmarshal(ent.VCardArray[1], &props); err != nil {
			continue
		}
		for _, prop := range props {
			if len(prop) < 4 {
				continue
			}
			var name, value string
			if json.Unmarshal(prop[0], &name) != nil || name != "fn" {
				continue
			}
			if json.Unmarshal(prop[3], &value) == nil {
				return value
			}
		}
	}
	return ""
}
