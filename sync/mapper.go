// ABOUTME: Maps CRM contacts to the remote directory contact representation
// ABOUTME: Applies the location and phone kind relation tables and omits empty fields
package sync

import (
	"strings"

	"github.com/harperreed/gappsync/models"
)

// Relation tags shared by both directory backends.
const (
	RelHome    = "home"
	RelWork    = "work"
	RelOther   = "other"
	RelMobile  = "mobile"
	RelFax     = "fax"
	RelPager   = "pager"
	suffixFax  = "_fax"
	extensionX = " x"
)

// RemoteResource is the directory-side view of a contact, independent of the
// wire format.
type RemoteResource struct {
	Name         *NameBlock
	Organization *OrganizationBlock
	Emails       []RemoteEmail
	Phones       []RemotePhone
	ProfileURL   string
}

type NameBlock struct {
	GivenName  string
	FamilyName string
}

type OrganizationBlock struct {
	Rel   string
	Name  string
	Title string
}

type RemoteEmail struct {
	Address string
	Rel     string
	Primary bool
}

type RemotePhone struct {
	Number  string
	Rel     string
	Primary bool
}

// MapContact builds the remote representation of a contact.
func MapContact(contact models.Contact) RemoteResource {
	var res RemoteResource

	if contact.FirstName != "" || contact.LastName != "" {
		res.Name = &NameBlock{GivenName: contact.FirstName, FamilyName: contact.LastName}
	}

	if contact.CurrentEmployer != "" || contact.JobTitle != "" {
		res.Organization = &OrganizationBlock{
			Rel:   RelWork,
			Name:  contact.CurrentEmployer,
			Title: contact.JobTitle,
		}
	}

	for _, e := range contact.Emails {
		if e.Address == "" {
			continue
		}
		res.Emails = append(res.Emails, RemoteEmail{
			Address: e.Address,
			Rel:     emailRel(e.Location),
			Primary: e.IsPrimary,
		})
	}

	for _, p := range contact.Phones {
		if p.Number == "" {
			continue
		}
		number := p.Number
		if p.Extension != "" {
			number += extensionX + p.Extension
		}
		res.Phones = append(res.Phones, RemotePhone{
			Number:  number,
			Rel:     phoneRel(p.Location, p.Kind),
			Primary: p.IsPrimary,
		})
	}

	return res
}

func emailRel(location string) string {
	switch strings.ToLower(location) {
	case models.LocationHome:
		return RelHome
	case models.LocationWork:
		return RelWork
	default:
		return RelOther
	}
}

func phoneLocation(location string) string {
	switch strings.ToLower(location) {
	case models.LocationHome:
		return RelHome
	case models.LocationWork, models.LocationMain, models.LocationBilling:
		return RelWork
	default:
		return RelOther
	}
}

func phoneRel(location, kind string) string {
	loc := phoneLocation(location)

	switch strings.ToLower(kind) {
	case models.PhoneKindPhone, "":
		return loc
	case models.PhoneKindMobile:
		return RelMobile
	case models.PhoneKindFax:
		if loc == RelOther {
			return RelFax
		}
		return loc + suffixFax
	case models.PhoneKindPager:
		return RelPager
	default:
		return RelOther
	}
}
