// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package jurisdiction

import "strings"

// DefaultContext is sent to the model when the user gives no context.
const DefaultContext = "General Text"

// Preset is a canned document-context description.
type Preset struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
}

var presets = []Preset{
	{
		ID:    "medical",
		Label: "Medical Records",
		Value: "Medical/Health Records. Strictly redact Patient Names, MRN, DOB, Doctor Names, and Insurance IDs.",
	},
	{
		ID:    "legal",
		Label: "Legal Contracts",
		Value: "Legal Documents. Strictly redact Client Names, Case Numbers, Dollar Amounts, and Signatures.",
	},
	{
		ID:    "sales",
		Label: "Sales & Purchase",
		Value: "Sales and Purchase Records (Invoices, Purchase Orders, Receipts). Strictly redact Customer Names, Billing Addresses, Payment Methods (Credit Cards/Bank Info), and Transaction IDs.",
	},
	{
		ID:    "tech",
		Label: "System Logs/Code",
		Value: "Technical Logs or Source Code. Strictly redact API Keys, IP Addresses, Passwords, Database Connection Strings, and Usernames.",
	},
	{
		ID:    "general",
		Label: "General / Resume",
		Value: "General Resume or Cover Letter. Redact Name, Email, Phone, Address, and University Names.",
	},
}

// Presets returns a copy of the context presets in display order.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// PresetByID finds a preset by id, case-insensitively.
func PresetByID(id string) (Preset, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range presets {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}

// ResolveContext turns user input into the context text for prompts: a
// preset id expands to its description, blank input becomes
// DefaultContext, anything else is used verbatim.
func ResolveContext(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return DefaultContext
	}
	if p, ok := PresetByID(input); ok {
		return p.Value
	}
	return input
}
