package signing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"fieldsign/internal/models"
	"fieldsign/internal/notify"
	"fieldsign/internal/store"
)

const minPhoneDigits = 10

// Store is the durable local persistence the workflow depends on.
type Store interface {
	GetJob(ctx context.Context, id string) (*models.Job, error)
	CreateSigningRequest(ctx context.Context, req *models.SigningRequest, outbox *store.OutboxEntry) error
	GetSigningRequest(ctx context.Context, id string) (*models.SigningRequest, error)
	GetSigningRequestByToken(ctx context.Context, token string) (*models.SigningRequest, error)
	ListSigningRequestsByStatus(ctx context.Context, statuses ...models.SigningStatus) ([]models.SigningRequest, error)
	UpdateSigningRequest(ctx context.Context, id string, update store.SigningUpdate, outbox *store.OutboxEntry) error
	MarkSigningRequestsExpired(ctx context.Context, ids []string, entries []store.OutboxEntry) error
}

// Identity resolves the authenticated worker for the current call.
type Identity interface {
	UserID(ctx context.Context) (string, bool)
}

// Review carries the client-supplied data merged on a status transition.
type Review struct {
	Feedback         string
	SignatureRef     string
	ClientSignedName string
}

// CreateResult is the outcome of a successful request creation.
type CreateResult struct {
	Request   *models.SigningRequest
	ReviewURL string
}

// Service is the remote-approval workflow state machine. All collaborators
// are injected; the clock is a function so tests can pin time.
type Service struct {
	store      Store
	identity   Identity
	dispatcher notify.Dispatcher
	baseURL    string
	now        func() time.Time
	logger     *slog.Logger
	wakeMirror func()
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithClock pins the service clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMirrorWake registers a callback poked after each durable commit so
// the outbox flusher can push the new entry promptly. Best-effort only.
func WithMirrorWake(wake func()) Option {
	return func(s *Service) { s.wakeMirror = wake }
}

func NewService(st Store, identity Identity, dispatcher notify.Dispatcher, baseURL string, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:      st,
		identity:   identity,
		dispatcher: dispatcher,
		baseURL:    strings.TrimRight(baseURL, "/"),
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest validates the contact address, durably commits a new
// pending request (the success boundary), then mirrors and notifies.
// A notification failure is surfaced to the caller even though the request
// record already exists; it is not rolled back.
func (s *Service) CreateRequest(ctx context.Context, jobID string, method models.ContactMethod, address string) (*CreateResult, error) {
	userID, ok := s.identity.UserID(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}

	address = strings.TrimSpace(address)
	if err := validateContactAddress(method, address); err != nil {
		return nil, err
	}

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, &PersistenceError{Op: "create signing request", Err: err}
	}
	if job == nil {
		return nil, ErrJobNotFound
	}

	token, err := NewSecureToken()
	if err != nil {
		return nil, fmt.Errorf("generate secure token: %w", err)
	}

	now := s.now()
	req := &models.SigningRequest{
		ID:             uuid.NewString(),
		JobID:          jobID,
		UserID:         userID,
		ContactMethod:  method,
		ContactAddress: address,
		SecureToken:    token,
		Status:         models.SigningPending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(models.SigningTTL),
	}

	if err := s.store.CreateSigningRequest(ctx, req, s.outboxEntry(req, now)); err != nil {
		return nil, &PersistenceError{Op: "create signing request", Err: err}
	}
	s.pokeMirror()

	url := s.reviewURL(token)
	if err := s.dispatch(ctx, req, url); err != nil {
		s.logger.Warn("review notification failed; request stays pending",
			"request_id", req.ID, "job_id", jobID, "channel", method, "error", err)
		return nil, &NotificationError{Channel: method, Err: err}
	}

	s.logger.Info("signing request created",
		"request_id", req.ID, "job_id", jobID, "channel", method, "expires_at", req.ExpiresAt)
	return &CreateResult{Request: req, ReviewURL: url}, nil
}

// GetByToken looks up a request by its secure token. A request whose
// deadline has passed while still non-terminal is flipped to expired as a
// side effect and reported as not found, indistinguishable from a missing
// token.
func (s *Service) GetByToken(ctx context.Context, token string) (*models.SigningRequest, error) {
	req, err := s.store.GetSigningRequestByToken(ctx, token)
	if err != nil {
		return nil, &PersistenceError{Op: "lookup signing request", Err: err}
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}

	if req.ExpiredAt(s.now()) {
		if err := s.expire(ctx, []models.SigningRequest{*req}); err != nil {
			return nil, &PersistenceError{Op: "expire signing request", Err: err}
		}
		return nil, ErrRequestNotFound
	}

	return req, nil
}

// UpdateStatus applies a legal state transition, stamps the review time and
// merges the supplied review data. The approval signature, when present, is
// copied onto the job, completing it.
func (s *Service) UpdateStatus(ctx context.Context, requestID string, newStatus models.SigningStatus, review *Review) (*models.SigningRequest, error) {
	req, err := s.store.GetSigningRequest(ctx, requestID)
	if err != nil {
		return nil, &PersistenceError{Op: "load signing request", Err: err}
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}

	now := s.now()
	if req.ExpiredAt(now) {
		if err := s.expire(ctx, []models.SigningRequest{*req}); err != nil {
			return nil, &PersistenceError{Op: "expire signing request", Err: err}
		}
		return nil, ErrRequestNotFound
	}

	// Expiry is owned by the TTL predicate and the sweep; a caller may
	// cancel by rejecting, but never mark a live request expired.
	if newStatus == models.SigningExpired {
		return nil, &TransitionError{From: req.Status, To: newStatus}
	}
	if !models.CanTransitionSigning(req.Status, newStatus) {
		return nil, &TransitionError{From: req.Status, To: newStatus}
	}

	update := store.SigningUpdate{Status: newStatus, ReviewedAt: &now}
	req.Status = newStatus
	req.ReviewedAt = &now
	if review != nil {
		if review.Feedback != "" {
			update.ClientFeedback = &review.Feedback
			req.ClientFeedback = review.Feedback
		}
		if review.SignatureRef != "" {
			update.SignatureRef = &review.SignatureRef
			req.SignatureRef = review.SignatureRef
		}
		if review.ClientSignedName != "" {
			update.ClientSignedName = &review.ClientSignedName
			req.ClientSignedName = review.ClientSignedName
		}
	}

	if err := s.store.UpdateSigningRequest(ctx, requestID, update, s.outboxEntry(req, now)); err != nil {
		return nil, &PersistenceError{Op: "update signing request", Err: err}
	}
	s.pokeMirror()

	s.logger.Info("signing request transitioned",
		"request_id", requestID, "job_id", req.JobID, "status", newStatus)
	return req, nil
}

// ListPending returns requests still awaiting a client decision, in
// insertion order. Stale records are skipped, not flipped; the sweep and
// the lookup path own that.
func (s *Service) ListPending(ctx context.Context) ([]models.SigningRequest, error) {
	requests, err := s.store.ListSigningRequestsByStatus(ctx, models.SigningPending, models.SigningViewed)
	if err != nil {
		return nil, &PersistenceError{Op: "list signing requests", Err: err}
	}

	now := s.now()
	active := make([]models.SigningRequest, 0, len(requests))
	for _, req := range requests {
		if req.Active(now) {
			active = append(active, req)
		}
	}
	return active, nil
}

// CleanupExpired flips all stale non-terminal requests to expired and
// returns how many were flipped. Idempotent; safe to run concurrently with
// the lazy check on the lookup path since both converge on the same state.
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	requests, err := s.store.ListSigningRequestsByStatus(ctx, models.SigningPending, models.SigningViewed)
	if err != nil {
		return 0, &PersistenceError{Op: "list signing requests", Err: err}
	}

	now := s.now()
	stale := make([]models.SigningRequest, 0)
	for _, req := range requests {
		if req.ExpiredAt(now) {
			stale = append(stale, req)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	if err := s.expire(ctx, stale); err != nil {
		return 0, &PersistenceError{Op: "expire signing requests", Err: err}
	}
	s.logger.Info("expired stale signing requests", "count", len(stale))
	return len(stale), nil
}

func (s *Service) expire(ctx context.Context, stale []models.SigningRequest) error {
	now := s.now()
	ids := make([]string, 0, len(stale))
	entries := make([]store.OutboxEntry, 0, len(stale))
	for i := range stale {
		stale[i].Status = models.SigningExpired
		ids = append(ids, stale[i].ID)
		entries = append(entries, *s.outboxEntry(&stale[i], now))
	}
	if err := s.store.MarkSigningRequestsExpired(ctx, ids, entries); err != nil {
		return err
	}
	s.pokeMirror()
	return nil
}

func (s *Service) reviewURL(token string) string {
	return s.baseURL + "/" + token
}

func (s *Service) dispatch(ctx context.Context, req *models.SigningRequest, url string) error {
	switch req.ContactMethod {
	case models.ContactEmail:
		subject := "Signature requested for your completed service"
		body := fmt.Sprintf(
			"Your service provider has completed a job and is requesting your sign-off.\n\nReview and sign here: %s\n\nThis link expires on %s.",
			url, req.ExpiresAt.Format(time.RFC1123),
		)
		return s.dispatcher.SendEmail(ctx, req.ContactAddress, subject, body)
	case models.ContactSMS:
		body := fmt.Sprintf("Your service provider requests your sign-off. Review here: %s (link expires in 48h)", url)
		return s.dispatcher.SendSMS(ctx, req.ContactAddress, body)
	default:
		return fmt.Errorf("unsupported contact method: %s", req.ContactMethod)
	}
}

func (s *Service) outboxEntry(req *models.SigningRequest, now time.Time) *store.OutboxEntry {
	payload, err := json.Marshal(req)
	if err != nil {
		// A SigningRequest always marshals; guard anyway.
		s.logger.Error("marshal signing request for outbox", "request_id", req.ID, "error", err)
		return nil
	}
	return &store.OutboxEntry{
		ID:        uuid.NewString(),
		Kind:      store.OutboxSigningUpsert,
		Payload:   string(payload),
		CreatedAt: now,
	}
}

func (s *Service) pokeMirror() {
	if s.wakeMirror != nil {
		s.wakeMirror()
	}
}

func validateContactAddress(method models.ContactMethod, address string) error {
	switch method {
	case models.ContactEmail:
		if !strings.Contains(address, "@") {
			return &ValidationError{Field: "contact address", Reason: "email address must contain @"}
		}
	case models.ContactSMS:
		digits := 0
		for _, r := range address {
			if unicode.IsDigit(r) {
				digits++
			}
		}
		if digits < minPhoneDigits {
			return &ValidationError{Field: "contact address", Reason: fmt.Sprintf("phone number must have at least %d digits", minPhoneDigits)}
		}
	default:
		return &ValidationError{Field: "contact method", Reason: fmt.Sprintf("unsupported method %q", method)}
	}
	return nil
}
