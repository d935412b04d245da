package rules

import "github.com/heibot/chatguard"

// CategoryMeta provides metadata about a detection category.
type CategoryMeta struct {
	Category    chatguard.Category
	Name        string
	Description string
	DefaultRisk chatguard.Severity
}

// CategoryRegistry maps categories to their metadata.
var CategoryRegistry = map[chatguard.Category]CategoryMeta{
	chatguard.CategoryPhone: {
		Category:    chatguard.CategoryPhone,
		Name:        "Phone Number",
		Description: "Phone number shared in chat",
		DefaultRisk: chatguard.SeverityCritical,
	},
	chatguard.CategoryEmail: {
		Category:    chatguard.CategoryEmail,
		Name:        "Email Address",
		Description: "Email address shared in chat",
		DefaultRisk: chatguard.SeverityCritical,
	},
	chatguard.CategoryFinancial: {
		Category:    chatguard.CategoryFinancial,
		Name:        "Financial Account",
		Description: "Bank account details shared in chat",
		DefaultRisk: chatguard.SeverityCritical,
	},
	chatguard.CategoryMessenger: {
		Category:    chatguard.CategoryMessenger,
		Name:        "Messenger Contact",
		Description: "Messenger handle or request to move the chat",
		DefaultRisk: chatguard.SeverityHigh,
	},
	chatguard.CategoryOffPlatform: {
		Category:    chatguard.CategoryOffPlatform,
		Name:        "Off-platform Solicitation",
		Description: "Proposal to deal or pay outside the platform",
		DefaultRisk: chatguard.SeverityHigh,
	},
	chatguard.CategoryOffensive: {
		Category:    chatguard.CategoryOffensive,
		Name:        "Offensive Language",
		Description: "Profanity or abusive language",
		DefaultRisk: chatguard.SeverityMedium,
	},
	chatguard.CategoryNumeric: {
		Category:    chatguard.CategoryNumeric,
		Name:        "Suspicious Number",
		Description: "Long digit sequence, flagged for audit only",
		DefaultRisk: chatguard.SeverityLow,
	},
}

// GetCategoryInfo returns metadata for a category.
func GetCategoryInfo(c chatguard.Category) CategoryMeta {
	if info, ok := CategoryRegistry[c]; ok {
		return info
	}
	return CategoryMeta{
		Category:    c,
		Name:        string(c),
		Description: "Unknown category",
		DefaultRisk: chatguard.SeverityLow,
	}
}
