package testfixtures

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
)

var contactCounter uint64

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ContactFixture describes a raw EspoCRM contact as the REST API returns it.
type ContactFixture struct {
	ID               string
	Name             string
	Type             string
	OrgEmail         string
	Email            string
	PlatformUserID   string
	PlatformUsername string
	GitHubUsername   string
}

// ContactOption configures the generated contact fixture.
type ContactOption func(*ContactFixture)

// NewContactFixture returns a member contact with a unique id, org email and
// platform user id.
func NewContactFixture(opts ...ContactOption) ContactFixture {
	idx := atomic.AddUint64(&contactCounter, 1)
	f := ContactFixture{
		ID:               fmt.Sprintf("contact-%03d", idx),
		Name:             fmt.Sprintf("Contact %03d", idx),
		Type:             "Member",
		OrgEmail:         fmt.Sprintf("user%03d@508.dev", idx),
		Email:            fmt.Sprintf("user%03d@example.com", idx),
		PlatformUserID:   fmt.Sprintf("%d", 100000+idx),
		PlatformUsername: fmt.Sprintf("user%03d", idx),
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// Raw renders the fixture with the CRM's field names.
func (f ContactFixture) Raw() map[string]any {
	return map[string]any{
		"id":               f.ID,
		"name":             f.Name,
		"type":             f.Type,
		"c508Email":        f.OrgEmail,
		"emailAddress":     f.Email,
		"cDiscordUserID":   f.PlatformUserID,
		"cDiscordUsername": f.PlatformUsername,
		"cGitHubUsername":  f.GitHubUsername,
	}
}

// WithContactID overrides the generated contact id.
func WithContactID(id string) ContactOption {
	return func(f *ContactFixture) { f.ID = id }
}

// WithContactName overrides the display name.
func WithContactName(name string) ContactOption {
	return func(f *ContactFixture) { f.Name = name }
}

// WithContactType sets the CRM contact type, e.g. "Candidate".
func WithContactType(contactType string) ContactOption {
	return func(f *ContactFixture) { f.Type = contactType }
}

// WithOrgEmail sets the organization email field; "None" mimics the CRM placeholder.
func WithOrgEmail(email string) ContactOption {
	return func(f *ContactFixture) { f.OrgEmail = email }
}

// WithEmail sets the generic email field.
func WithEmail(email string) ContactOption {
	return func(f *ContactFixture) { f.Email = email }
}

// WithPlatformUserID sets the chat-platform user id; "No Discord" mimics the placeholder.
func WithPlatformUserID(id string) ContactOption {
	return func(f *ContactFixture) { f.PlatformUserID = id }
}

// WithGitHubUsername sets the GitHub username.
func WithGitHubUsername(name string) ContactOption {
	return func(f *ContactFixture) { f.GitHubUsername = name }
}
