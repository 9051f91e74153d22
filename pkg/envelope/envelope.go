package envelope

import (
	"fmt"
	"strings"
	"time"
)

type Provider string

const (
	ProviderMock        Provider = "mock"
	ProviderDocuSign    Provider = "docusign"
	ProviderDropboxSign Provider = "dropboxsign"
)

func (p Provider) Valid() bool {
	switch p {
	case ProviderMock, ProviderDocuSign, ProviderDropboxSign:
		return true
	}
	return false
}

type SignerRole string

const (
	RoleTenant    SignerRole = "tenant"
	RoleLandlord  SignerRole = "landlord"
	RoleAgent     SignerRole = "agent"
	RoleWitness   SignerRole = "witness"
	RoleGuarantor SignerRole = "guarantor"
)

type Document struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	FileURL string `json:"file_url"`
}

type Signer struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	Role      SignerRole   `json:"role"`
	Order     int          `json:"order"`
	Status    SignerStatus `json:"status"`
	SignedAt  *time.Time   `json:"signed_at,omitempty"`
	IPAddress string       `json:"ip_address,omitempty"`
}

// Envelope is one signing transaction: an ordered set of documents plus the
// parties that must sign them, routed through a single provider.
type Envelope struct {
	ID                 string            `json:"id"`
	ProviderEnvelopeID string            `json:"provider_envelope_id"`
	OwnerID            string            `json:"owner_id"`
	Provider           Provider          `json:"provider"`
	DocumentType       string            `json:"document_type"`
	RelatedEntityID    string            `json:"related_entity_id,omitempty"`
	Title              string            `json:"title"`
	Message            string            `json:"message,omitempty"`
	Documents          []Document        `json:"documents"`
	Signers            []Signer          `json:"signers"`
	Status             Status            `json:"status"`
	ExpiresAt          *time.Time        `json:"expires_at,omitempty"`
	SentAt             *time.Time        `json:"sent_at,omitempty"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

func (e *Envelope) Signer(signerID string) *Signer {
	for i := range e.Signers {
		if e.Signers[i].ID == signerID {
			return &e.Signers[i]
		}
	}
	return nil
}

func (e *Envelope) SignerByEmail(email string) *Signer {
	email = strings.ToLower(strings.TrimSpace(email))
	for i := range e.Signers {
		if strings.ToLower(e.Signers[i].Email) == email {
			return &e.Signers[i]
		}
	}
	return nil
}

// Clone returns a deep copy, so callers can hand envelopes across goroutine
// boundaries without sharing mutable slices or maps.
func (e *Envelope) Clone() *Envelope {
	cp := *e
	cp.Documents = append([]Document(nil), e.Documents...)
	cp.Signers = append([]Signer(nil), e.Signers...)
	for i := range cp.Signers {
		if e.Signers[i].SignedAt != nil {
			t := *e.Signers[i].SignedAt
			cp.Signers[i].SignedAt = &t
		}
	}
	if e.ExpiresAt != nil {
		t := *e.ExpiresAt
		cp.ExpiresAt = &t
	}
	if e.SentAt != nil {
		t := *e.SentAt
		cp.SentAt = &t
	}
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		cp.CompletedAt = &t
	}
	if e.Metadata != nil {
		cp.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Validate checks the shape of an envelope before it is handed to a provider.
func (e *Envelope) Validate(now time.Time) error {
	if !e.Provider.Valid() {
		return fmt.Errorf("unknown provider %q", e.Provider)
	}
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if len(e.Documents) == 0 {
		return fmt.Errorf("at least one document is required")
	}
	if len(e.Signers) == 0 {
		return fmt.Errorf("at least one signer is required")
	}
	seenIDs := make(map[string]bool, len(e.Signers))
	seenEmails := make(map[string]bool, len(e.Signers))
	for _, s := range e.Signers {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("signer id is required")
		}
		email := strings.ToLower(strings.TrimSpace(s.Email))
		if email == "" {
			return fmt.Errorf("signer %s: email is required", s.ID)
		}
		if s.Order < 1 {
			return fmt.Errorf("signer %s: order must be >= 1", s.ID)
		}
		if seenIDs[s.ID] {
			return fmt.Errorf("duplicate signer id %s", s.ID)
		}
		if seenEmails[email] {
			return fmt.Errorf("duplicate signer email %s", email)
		}
		seenIDs[s.ID] = true
		seenEmails[email] = true
	}
	if e.ExpiresAt != nil && !e.ExpiresAt.After(now) {
		return fmt.Errorf("expires_at must be after creation time")
	}
	return nil
}
