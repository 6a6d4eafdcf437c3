package models

import (
	"fmt"
	"strings"
)

// JobStatus defines the derived lifecycle states for jobs.
type JobStatus string

const (
	JobCreated                JobStatus = "created"
	JobInProgress             JobStatus = "in_progress"
	JobPendingRemoteSignature JobStatus = "pending_remote_signature"
	JobCompleted              JobStatus = "completed"
)

// PhotoTag categorizes when during the job a photo was taken.
type PhotoTag string

const (
	PhotoBefore PhotoTag = "before"
	PhotoDuring PhotoTag = "during"
	PhotoAfter  PhotoTag = "after"
)

// ContactMethod defines supported delivery channels for a signing request.
type ContactMethod string

const (
	ContactEmail ContactMethod = "email"
	ContactSMS   ContactMethod = "sms"
)

// SigningStatus defines the lifecycle states for remote signing requests.
type SigningStatus string

const (
	SigningPending  SigningStatus = "pending"
	SigningViewed   SigningStatus = "viewed"
	SigningApproved SigningStatus = "approved"
	SigningRejected SigningStatus = "rejected"
	SigningExpired  SigningStatus = "expired"
)

var validJobStatuses = map[JobStatus]struct{}{
	JobCreated:                {},
	JobInProgress:             {},
	JobPendingRemoteSignature: {},
	JobCompleted:              {},
}

var validPhotoTags = map[PhotoTag]struct{}{
	PhotoBefore: {},
	PhotoDuring: {},
	PhotoAfter:  {},
}

var validContactMethods = map[ContactMethod]struct{}{
	ContactEmail: {},
	ContactSMS:   {},
}

var validSigningStatuses = map[SigningStatus]struct{}{
	SigningPending:  {},
	SigningViewed:   {},
	SigningApproved: {},
	SigningRejected: {},
	SigningExpired:  {},
}

// signingTransitions encodes the legal state machine edges. The Expired
// edges are reserved for the expiry sweep; the workflow service rejects
// a caller-supplied expired status.
var signingTransitions = map[SigningStatus][]SigningStatus{
	SigningPending: {SigningViewed, SigningApproved, SigningRejected, SigningExpired},
	SigningViewed:  {SigningApproved, SigningRejected, SigningExpired},
}

func IsValidJobStatus(status JobStatus) bool {
	_, ok := validJobStatuses[status]
	return ok
}

func IsValidSigningStatus(status SigningStatus) bool {
	_, ok := validSigningStatuses[status]
	return ok
}

// IsTerminalSigningStatus reports whether no further transitions are legal.
func IsTerminalSigningStatus(status SigningStatus) bool {
	switch status {
	case SigningApproved, SigningRejected, SigningExpired:
		return true
	}
	return false
}

// CanTransitionSigning reports whether from -> to is a legal edge.
func CanTransitionSigning(from, to SigningStatus) bool {
	for _, next := range signingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func ParsePhotoTag(raw string) (PhotoTag, error) {
	value := PhotoTag(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("photo tag is required")
	}
	if _, ok := validPhotoTags[value]; !ok {
		return "", fmt.Errorf("invalid photo tag: %s", value)
	}
	return value, nil
}

func ParseContactMethod(raw string) (ContactMethod, error) {
	value := ContactMethod(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("contact method is required")
	}
	if _, ok := validContactMethods[value]; !ok {
		return "", fmt.Errorf("invalid contact method: %s", value)
	}
	return value, nil
}

func ParseSigningStatus(raw string) (SigningStatus, error) {
	value := SigningStatus(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("status is required")
	}
	if !IsValidSigningStatus(value) {
		return "", fmt.Errorf("invalid status: %s", value)
	}
	return value, nil
}
