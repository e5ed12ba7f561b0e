// ABOUTME: Google Contacts GData v3 backend for the directory
// ABOUTME: Sends Atom entries scoped by domain with requestor id and match-any preconditions
package sync

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/gappsync/models"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
)

const (
	DefaultGDataEndpoint = "https://www.google.com/m8/feeds/contacts"
	GDataScope           = "https://www.google.com/m8/feeds/"

	gdataVersion    = "3.0"
	atomContentType = "application/atom+xml"
	projectionFull  = "full"
	projectionBase  = "base"

	nsAtom     = "http://www.w3.org/2005/Atom"
	nsGd       = "http://schemas.google.com/g/2005"
	nsGContact = "http://schemas.google.com/contact/2008"
	relPrefix  = nsGd + "#"
	kindScheme = nsGd + "#kind"
	kindTerm   = nsGContact + "#contact"
)

// GDataClient talks to the Google Contacts feed on behalf of one requestor.
type GDataClient struct {
	http        *http.Client
	endpoint    string
	scope       string
	requestor   string
	profileBase string
	limiter     *rate.Limiter
}

func NewGDataClient(client *http.Client, settings models.Settings, opts Options) *GDataClient {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = DefaultGDataEndpoint
	}
	return &GDataClient{
		http:        client,
		endpoint:    strings.TrimRight(endpoint, "/"),
		scope:       settings.Domain,
		requestor:   settings.OAuthEmail,
		profileBase: settings.ProfileBaseURL,
		limiter:     opts.Limiter,
	}
}

// feedURL builds the resource URL. Individual accounts use the "default"
// feed, domains their own.
func (c *GDataClient) feedURL(projection, remoteID string) string {
	segment := c.scope
	if strings.Contains(c.scope, "@") {
		segment = "default"
	}

	u := c.endpoint + "/" + url.PathEscape(segment) + "/" + projection
	if remoteID != "" {
		u += "/" + url.PathEscape(remoteID)
	}
	return u + "?" + url.Values{"xoauth_requestor_id": {c.requestor}}.Encode()
}

func (c *GDataClient) Get(ctx context.Context, remoteID string) error {
	u := c.feedURL(projectionFull, remoteID)
	if remoteID == "" {
		u += "&max-results=1"
	}
	resp, err := c.do(ctx, "get", http.MethodGet, u, nil, false)
	if err != nil {
		return err
	}
	return drain(resp)
}

func (c *GDataClient) Create(ctx context.Context, contact models.Contact) (string, error) {
	body, err := c.encode(contact, false)
	if err != nil {
		return "", err
	}

	resp, err := c.do(ctx, "create", http.MethodPost, c.feedURL(projectionFull, ""), body, false)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var created atomCreated
	if err := xml.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", newError(KindRemoteAPI, "create", fmt.Errorf("failed to parse created entry: %w", err))
	}

	remoteID := trailingSegment(created.ID)
	if remoteID == "" {
		return "", newError(KindRemoteAPI, "create", fmt.Errorf("created entry has no id"))
	}
	return remoteID, nil
}

func (c *GDataClient) Update(ctx context.Context, contact models.Contact, remoteID string) error {
	if err := requireRemoteID("update", contact.ID, remoteID); err != nil {
		return err
	}

	body, err := c.encode(contact, true)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, "update", http.MethodPut, c.feedURL(projectionFull, remoteID), body, true)
	if err != nil {
		return err
	}
	return drain(resp)
}

// Delete removes a contact. A contact that is already gone counts as deleted.
func (c *GDataClient) Delete(ctx context.Context, remoteID string) error {
	if err := requireRemoteID("delete", uuid.Nil, remoteID); err != nil {
		return err
	}

	resp, err := c.do(ctx, "delete", http.MethodDelete, c.feedURL(projectionBase, remoteID), nil, true)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	return drain(resp)
}

func (c *GDataClient) encode(contact models.Contact, update bool) ([]byte, error) {
	res := MapContact(contact)
	res.ProfileURL = profileURL(c.profileBase, contact.ID)

	entry := newAtomEntry(res)
	if update {
		entry.ETag = "*"
	}

	data, err := xml.Marshal(entry)
	if err != nil {
		return nil, newError(KindRemoteAPI, "encode", err)
	}
	return append([]byte(xml.Header), data...), nil
}

// do sends one request. Non-2xx responses come back as classified errors
// wrapping *googleapi.Error.
func (c *GDataClient) do(ctx context.Context, op, method, u string, body []byte, ifMatch bool) (*http.Response, error) {
	if err := wait(ctx, c.limiter); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, newError(KindRemoteAPI, op, err)
	}
	req.Header.Set("GData-Version", gdataVersion)
	if body != nil {
		req.Header.Set("Content-Type", atomContentType)
	}
	if ifMatch {
		req.Header.Set("If-Match", "*")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(op, err)
	}

	if err := googleapi.CheckResponse(resp); err != nil {
		_ = resp.Body.Close()
		return nil, classify(op, err)
	}
	return resp, nil
}

func drain(resp *http.Response) error {
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// Atom documents use literal prefixes so the output matches the feed's
// expected namespace declarations.
type atomEntry struct {
	XMLName       xml.Name         `xml:"atom:entry"`
	XMLNSAtom     string           `xml:"xmlns:atom,attr"`
	XMLNSGd       string           `xml:"xmlns:gd,attr"`
	XMLNSGContact string           `xml:"xmlns:gContact,attr"`
	ETag          string           `xml:"gd:etag,attr,omitempty"`
	Category      atomCategory     `xml:"atom:category"`
	Website       *gContactWebsite `xml:"gContact:website,omitempty"`
	Name          *gdName          `xml:"gd:name,omitempty"`
	Organization  *gdOrganization  `xml:"gd:organization,omitempty"`
	Emails        []gdEmail        `xml:"gd:email"`
	Phones        []gdPhoneNumber  `xml:"gd:phoneNumber"`
}

type atomCategory struct {
	Scheme string `xml:"scheme,attr"`
	Term   string `xml:"term,attr"`
}

type gContactWebsite struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

type gdName struct {
	GivenName  string `xml:"gd:givenName,omitempty"`
	FamilyName string `xml:"gd:familyName,omitempty"`
}

type gdOrganization struct {
	Rel   string `xml:"rel,attr"`
	Name  string `xml:"gd:orgName,omitempty"`
	Title string `xml:"gd:orgTitle,omitempty"`
}

type gdEmail struct {
	Address string `xml:"address,attr"`
	Rel     string `xml:"rel,attr"`
	Primary string `xml:"primary,attr,omitempty"`
}

type gdPhoneNumber struct {
	Rel     string `xml:"rel,attr"`
	Primary string `xml:"primary,attr,omitempty"`
	Number  string `xml:",chardata"`
}

// atomCreated is the part of a created entry we read back.
type atomCreated struct {
	XMLName xml.Name `xml:"entry"`
	ID      string   `xml:"id"`
}

func newAtomEntry(res RemoteResource) atomEntry {
	entry := atomEntry{
		XMLNSAtom:     nsAtom,
		XMLNSGd:       nsGd,
		XMLNSGContact: nsGContact,
		Category:      atomCategory{Scheme: kindScheme, Term: kindTerm},
	}

	if res.ProfileURL != "" {
		entry.Website = &gContactWebsite{Href: res.ProfileURL, Rel: "profile"}
	}
	if res.Name != nil {
		entry.Name = &gdName{GivenName: res.Name.GivenName, FamilyName: res.Name.FamilyName}
	}
	if res.Organization != nil {
		entry.Organization = &gdOrganization{
			Rel:   relPrefix + res.Organization.Rel,
			Name:  res.Organization.Name,
			Title: res.Organization.Title,
		}
	}
	for _, e := range res.Emails {
		entry.Emails = append(entry.Emails, gdEmail{Address: e.Address, Rel: relPrefix + e.Rel, Primary: primaryAttr(e.Primary)})
	}
	for _, p := range res.Phones {
		entry.Phones = append(entry.Phones, gdPhoneNumber{Rel: relPrefix + p.Rel, Primary: primaryAttr(p.Primary), Number: p.Number})
	}

	return entry
}

func primaryAttr(primary bool) string {
	if primary {
		return "true"
	}
	return ""
}
