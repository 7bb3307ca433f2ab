package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SignatureStatus represents the envelope state of a signature request
type SignatureStatus string

const (
	SignatureStatusDraft     SignatureStatus = "draft"
	SignatureStatusSent      SignatureStatus = "sent"
	SignatureStatusDelivered SignatureStatus = "delivered"
	SignatureStatusSigned    SignatureStatus = "signed"
	SignatureStatusDeclined  SignatureStatus = "declined"
	SignatureStatusVoided    SignatureStatus = "voided"
)

// validSignatureTransitions defines the allowed envelope transitions
var validSignatureTransitions = map[SignatureStatus][]SignatureStatus{
	SignatureStatusDraft:     {SignatureStatusSent, SignatureStatusVoided},
	SignatureStatusSent:      {SignatureStatusDelivered, SignatureStatusSigned, SignatureStatusDeclined, SignatureStatusVoided},
	SignatureStatusDelivered: {SignatureStatusSigned, SignatureStatusDeclined, SignatureStatusVoided},
	SignatureStatusSigned:    {},
	SignatureStatusDeclined:  {},
	SignatureStatusVoided:    {},
}

// CanTransitionTo checks if a transition from s to target is valid
func (s SignatureStatus) CanTransitionTo(target SignatureStatus) bool {
	for _, allowed := range validSignatureTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed
func (s SignatureStatus) IsTerminal() bool {
	return s == SignatureStatusSigned || s == SignatureStatusDeclined || s == SignatureStatusVoided
}

// ParseEnvelopeStatus maps a DocuSign envelope status onto a signature status
func ParseEnvelopeStatus(status string) (SignatureStatus, bool) {
	switch strings.ToLower(status) {
	case "sent":
		return SignatureStatusSent, true
	case "delivered":
		return SignatureStatusDelivered, true
	case "completed", "signed":
		return SignatureStatusSigned, true
	case "declined":
		return SignatureStatusDeclined, true
	case "voided":
		return SignatureStatusVoided, true
	}
	return "", false
}

// SignatureRequest is a partner contract routed for e-signature
type SignatureRequest struct {
	ID                 string          `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID           string          `json:"tenant_id" gorm:"type:uuid;not null;index"`
	RelatedType        RecipientType   `json:"related_type" gorm:"type:varchar(20);not null"`
	RelatedID          string          `json:"related_id" gorm:"type:uuid;not null"`
	DocumentName       string          `json:"document_name" gorm:"not null"`
	DocumentURL        string          `json:"document_url"`
	SignerName         string          `json:"signer_name" gorm:"not null"`
	SignerEmail        string          `json:"signer_email" gorm:"not null"`
	ProviderEnvelopeID string          `json:"provider_envelope_id,omitempty" gorm:"index"`
	Status             SignatureStatus `json:"status" gorm:"type:varchar(20);not null;default:draft"`
	SentAt             *time.Time      `json:"sent_at,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (SignatureRequest) TableName() string { return "signature_requests" }

// SignatureTransition is one persisted status change
type SignatureTransition struct {
	ID                 string          `json:"id" gorm:"type:uuid;primaryKey"`
	SignatureRequestID string          `json:"signature_request_id" gorm:"type:uuid;not null;index"`
	FromStatus         SignatureStatus `json:"from_status" gorm:"type:varchar(20);not null"`
	ToStatus           SignatureStatus `json:"to_status" gorm:"type:varchar(20);not null"`
	Source             string          `json:"source"` // api, provider
	ActorID            string          `json:"actor_id,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

func (SignatureTransition) TableName() string { return "signature_transitions" }

// NewSignatureRequest creates a draft request for a partner
func NewSignatureRequest(tenantID string, relatedType RecipientType, relatedID, documentName, documentURL, signerName, signerEmail string) (*SignatureRequest, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if relatedType == RecipientRegistration || !relatedType.IsValid() {
		return nil, ErrInvalidRelatedType
	}
	if strings.TrimSpace(documentName) == "" || strings.TrimSpace(signerName) == "" {
		return nil, ErrMissingName
	}
	signerEmail = NormalizeEmail(signerEmail)
	if !strings.Contains(signerEmail, "@") {
		return nil, ErrInvalidEmail
	}

	now := time.Now()
	return &SignatureRequest{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		RelatedType:  relatedType,
		RelatedID:    relatedID,
		DocumentName: documentName,
		DocumentURL:  documentURL,
		SignerName:   signerName,
		SignerEmail:  signerEmail,
		Status:       SignatureStatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// TransitionTo moves the request to target and returns the transition to persist
func (r *SignatureRequest) TransitionTo(target SignatureStatus, source, actorID string) (*SignatureTransition, error) {
	if !r.Status.CanTransitionTo(target) {
		return nil, transitionErr("signature", string(r.Status), string(target))
	}

	now := time.Now()
	t := &SignatureTransition{
		ID:                 uuid.New().String(),
		SignatureRequestID: r.ID,
		FromStatus:         r.Status,
		ToStatus:           target,
		Source:             source,
		ActorID:            actorID,
		CreatedAt:          now,
	}

	r.Status = target
	r.UpdatedAt = now
	switch {
	case target == SignatureStatusSent:
		r.SentAt = &now
	case target.IsTerminal():
		r.CompletedAt = &now
	}
	return t, nil
}
