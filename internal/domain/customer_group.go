package domain

import (
	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// TranslatedName holds a human-readable name per language.
type TranslatedName map[language.Tag]string

// Get returns the name for the given language, falling back to English
// and then to any available translation.
func (t TranslatedName) Get(tag language.Tag) string {
	if name, ok := t[tag]; ok {
		return name
	}
	return t.Default()
}

func (t TranslatedName) Default() string {
	if name, ok := t[language.English]; ok {
		return name
	}
	for _, name := range t {
		return name
	}
	return ""
}

// LoginMethod is an identity-provider login method, identified by the
// amr value the authentication service reports.
type LoginMethod struct {
	ID   string
	Name string
}

// CustomerGroup is a named discount/eligibility tier, e.g. "children" or
// "companies". A non-empty OnlyForLoginMethods set restricts the group to
// those login methods; empty means unrestricted.
type CustomerGroup struct {
	ID                  string
	Name                TranslatedName
	OnlyForLoginMethods []LoginMethod
}

func (cg CustomerGroup) HasLoginRestrictions() bool {
	return len(cg.OnlyForLoginMethods) > 0
}

func (cg CustomerGroup) IsAllowedLoginMethod(loginMethodID string) bool {
	if !cg.HasLoginRestrictions() {
		return true
	}

	for _, method := range cg.OnlyForLoginMethods {
		if method.ID == loginMethodID {
			return true
		}
	}

	return false
}

// ProductCustomerGroup overrides a product version's default price for
// one customer group, independent of time.
type ProductCustomerGroup struct {
	ID              uuid.UUID
	ProductID       uuid.UUID // product version row
	CustomerGroupID string
	Price           PricePair
}
