// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package jurisdiction holds the fixed catalog of privacy regimes and
// document-context presets used to steer PII detection.
package jurisdiction

import "strings"

// =============================================================================
// JURISDICTIONS
// =============================================================================

// Jurisdiction is a named regulatory regime.
type Jurisdiction struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Law         string   `json:"law"`
	PIIExamples []string `json:"piiExamples"`
}

// DefaultID is the jurisdiction used when none is chosen or a suggestion
// is not in the catalog.
const DefaultID = "global"

var catalog = []Jurisdiction{
	{
		ID:          "global",
		Name:        "Global / Unspecified",
		Law:         "International Privacy Standards (GDPR-like)",
		PIIExamples: []string{"Email", "Phone", "Passport Number", "Credit Card", "Date of Birth"},
	},
	{
		ID:          "us",
		Name:        "United States",
		Law:         "HIPAA (Health), CCPA (California), GLBA (Finance)",
		PIIExamples: []string{"SSN (Social Security)", "Driver's License", "ZIP Code", "Health Plan Beneficiary Number", "Medical Record Number (MRN)"},
	},
	{
		ID:          "eu",
		Name:        "European Union",
		Law:         "GDPR (General Data Protection Regulation)",
		PIIExamples: []string{"IBAN", "National ID", "Passport Number", "Tax Identification Number", "Union Membership", "Biometric Data"},
	},
	{
		ID:          "uk",
		Name:        "United Kingdom",
		Law:         "UK GDPR / DPA 2018",
		PIIExamples: []string{"NHS Number", "NINO (National Insurance)", "Sort Code", "Driver Number"},
	},
	{
		ID:          "in",
		Name:        "India",
		Law:         "DPDP Act 2023",
		PIIExamples: []string{"Aadhaar Number", "PAN Card", "Voter ID", "IFSC Code", "Mobile Number"},
	},
	{
		ID:          "ca",
		Name:        "Canada",
		Law:         "PIPEDA",
		PIIExamples: []string{"SIN (Social Insurance)", "Health Card Number", "Driver's Licence"},
	},
	{
		ID:          "au",
		Name:        "Australia",
		Law:         "Privacy Act 1988",
		PIIExamples: []string{"TFN (Tax File Number)", "Medicare Number", "Driver Licence"},
	},
	{
		ID:          "br",
		Name:        "Brazil",
		Law:         "LGPD",
		PIIExamples: []string{"CPF (Individual Taxpayer)", "RG (Identity)", "CNPJ (Business)", "Voter Title"},
	},
}

// All returns a copy of the catalog in display order.
func All() []Jurisdiction {
	out := make([]Jurisdiction, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a jurisdiction by id, case-insensitively.
func Lookup(id string) (Jurisdiction, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, j := range catalog {
		if j.ID == id {
			return j, true
		}
	}
	return Jurisdiction{}, false
}

// Default returns the global jurisdiction.
func Default() Jurisdiction {
	j, _ := Lookup(DefaultID)
	return j
}

// Resolve returns the jurisdiction for id, or Default when id is unknown.
// Model-suggested ids go through here.
func Resolve(id string) Jurisdiction {
	if j, ok := Lookup(id); ok {
		return j
	}
	return Default()
}

// IDs returns all catalog ids in display order.
func IDs() []string {
	ids := make([]string, len(catalog))
	for i, j := range catalog {
		ids[i] = j.ID
	}
	return ids
}

// Label returns "Name (Law)" as used in prompts.
func (j Jurisdiction) Label() string {
	return j.Name + " (" + j.Law + ")"
}
