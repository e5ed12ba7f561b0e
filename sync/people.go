// ABOUTME: Google People API backend for the directory
// ABOUTME: Creates, updates and deletes contacts through the people/v1 client
package sync

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/gappsync/models"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"
)

const (
	peoplePrefix       = "people/"
	personFieldsUpdate = "names,organizations,emailAddresses,phoneNumbers,urls"
	personFieldsRead   = "names"
)

// PeopleClient implements Directory over the People API.
type PeopleClient struct {
	service     *people.Service
	profileBase string
	limiter     *rate.Limiter
}

// NewPeopleClient creates a People API client on an authenticated HTTP client.
func NewPeopleClient(ctx context.Context, client *http.Client, settings models.Settings, opts Options) (*PeopleClient, error) {
	clientOpts := []option.ClientOption{option.WithHTTPClient(client)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	service, err := people.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, newError(KindConfiguration, "people", fmt.Errorf("failed to create People service: %w", err))
	}

	return &PeopleClient{
		service:     service,
		profileBase: settings.ProfileBaseURL,
		limiter:     opts.Limiter,
	}, nil
}

func (c *PeopleClient) Get(ctx context.Context, remoteID string) error {
	if err := wait(ctx, c.limiter); err != nil {
		return err
	}

	if remoteID == "" {
		_, err := c.service.People.Connections.List(peoplePrefix + "me").
			PersonFields(personFieldsRead).
			PageSize(1).
			Context(ctx).
			Do()
		return classify("get", err)
	}

	_, err := c.service.People.Get(peoplePrefix + remoteID).PersonFields(personFieldsRead).Context(ctx).Do()
	return classify("get", err)
}

func (c *PeopleClient) Create(ctx context.Context, contact models.Contact) (string, error) {
	if err := wait(ctx, c.limiter); err != nil {
		return "", err
	}

	created, err := c.service.People.CreateContact(c.person(contact)).Context(ctx).Do()
	if err != nil {
		return "", classify("create", err)
	}

	remoteID := trailingSegment(created.ResourceName)
	if remoteID == "" {
		return "", newError(KindRemoteAPI, "create", fmt.Errorf("created person has no resource name"))
	}
	return remoteID, nil
}

// Update overwrites the remote person, taking the current etag as the precondition.
func (c *PeopleClient) Update(ctx context.Context, contact models.Contact, remoteID string) error {
	if err := requireRemoteID("update", contact.ID, remoteID); err != nil {
		return err
	}
	if err := wait(ctx, c.limiter); err != nil {
		return err
	}

	resourceName := peoplePrefix + remoteID
	current, err := c.service.People.Get(resourceName).PersonFields(personFieldsRead).Context(ctx).Do()
	if err != nil {
		return classify("update", err)
	}

	person := c.person(contact)
	person.Etag = current.Etag

	_, err = c.service.People.UpdateContact(resourceName, person).
		UpdatePersonFields(personFieldsUpdate).
		Context(ctx).
		Do()
	return classify("update", err)
}

func (c *PeopleClient) Delete(ctx context.Context, remoteID string) error {
	if err := requireRemoteID("delete", uuid.Nil, remoteID); err != nil {
		return err
	}
	if err := wait(ctx, c.limiter); err != nil {
		return err
	}

	_, err := c.service.People.DeleteContact(peoplePrefix + remoteID).Context(ctx).Do()
	if isNotFound(err) {
		return nil
	}
	return classify("delete", err)
}

func (c *PeopleClient) person(contact models.Contact) *people.Person {
	res := MapContact(contact)
	res.ProfileURL = profileURL(c.profileBase, contact.ID)
	return toPerson(res)
}

func toPerson(res RemoteResource) *people.Person {
	person := &people.Person{}

	if res.Name != nil {
		person.Names = []*people.Name{{GivenName: res.Name.GivenName, FamilyName: res.Name.FamilyName}}
	}
	if res.Organization != nil {
		person.Organizations = []*people.Organization{{
			Type:  res.Organization.Rel,
			Name:  res.Organization.Name,
			Title: res.Organization.Title,
		}}
	}
	for _, e := range res.Emails {
		person.EmailAddresses = append(person.EmailAddresses, &people.EmailAddress{
			Value:    e.Address,
			Type:     e.Rel,
			Metadata: &people.FieldMetadata{Primary: e.Primary},
		})
	}
	for _, p := range res.Phones {
		person.PhoneNumbers = append(person.PhoneNumbers, &people.PhoneNumber{
			Value:    p.Number,
			Type:     peoplePhoneType(p.Rel),
			Metadata: &people.FieldMetadata{Primary: p.Primary},
		})
	}
	if res.ProfileURL != "" {
		person.Urls = []*people.Url{{Value: res.ProfileURL, Type: "profile"}}
	}

	return person
}

// peoplePhoneType converts relation tags like work_fax to People types like workFax.
func peoplePhoneType(rel string) string {
	loc, kind, found := strings.Cut(rel, "_")
	if !found {
		return rel
	}
	return loc + strings.ToUpper(kind[:1]) + kind[1:]
}
