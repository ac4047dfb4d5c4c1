// Package assigner assigns a CILogon user identifier to a CO Person by asking the OA4MP
// dbService about the person's eppn and its campus aliases.
package assigner

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cilogon/ItrsscilogonAssigner/internal/dbservice"
	"github.com/cilogon/ItrsscilogonAssigner/internal/person/domain"
)

const instrumentationName = "github.com/cilogon/ItrsscilogonAssigner/internal/assigner"

// Context is the kind of record an identifier is assigned to.
type Context string

// ContextCoPerson is the only supported assignment context.
const ContextCoPerson Context = "CoPerson"

// Request describes one assignment.
type Request struct {
	CoID           int64
	Context        Context
	RecordID       int64
	IdentifierType string
	// EmailType is accepted from the caller but not used; dbService always receives the
	// person's official email address.
	EmailType string
}

// PersonStore is the transaction-bound store the assigner reads and writes through.
// The caller owns the transaction; the assigner never commits or rolls back.
type PersonStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Person, error)
	CreateIdentifier(ctx context.Context, i *domain.Identifier, opts domain.SaveOptions) error
}

// UserLookup resolves one candidate eppn to CILogon user identifiers.
type UserLookup interface {
	GetUser(ctx context.Context, p dbservice.GetUserParams) ([]string, error)
}

// Assigner implements CILogon user_uid assignment.
type Assigner struct {
	lookup    UserLookup
	rules     *CandidateRules
	logger    *zap.Logger
	tracer    trace.Tracer
	collected metric.Int64Counter
	created   metric.Int64Counter
}

// New returns an Assigner. Spans and counters use the global OpenTelemetry providers.
func New(lookup UserLookup, rules *CandidateRules, logger *zap.Logger) (*Assigner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	meter := otel.Meter(instrumentationName)
	collected, err := meter.Int64Counter("assigner.user_uids.collected",
		metric.WithDescription("CILogon user identifiers returned by dbService"))
	if err != nil {
		return nil, err
	}
	created, err := meter.Int64Counter("assigner.identifiers.created",
		metric.WithDescription("Additional oidcsub identifiers created for a person"))
	if err != nil {
		return nil, err
	}
	return &Assigner{
		lookup:    lookup,
		rules:     rules,
		logger:    logger,
		tracer:    otel.Tracer(instrumentationName),
		collected: collected,
		created:   created,
	}, nil
}

// Assign returns the first CILogon user identifier found for the person in req. Identifiers
// beyond the first are created as active oidcsub identifiers on store with provisioning
// suppressed, only after every dbService call has succeeded.
func (a *Assigner) Assign(ctx context.Context, store PersonStore, req Request) (_ string, err error) {
	ctx, span := a.tracer.Start(ctx, "assigner.Assign", trace.WithAttributes(
		attribute.Int64("co_id", req.CoID),
		attribute.Int64("record_id", req.RecordID),
		attribute.String("identifier_type", req.IdentifierType),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if req.Context != ContextCoPerson {
		return "", ErrUnsupportedContext
	}

	person, err := store.GetByID(ctx, req.RecordID)
	if err != nil {
		return "", err
	}
	if person == nil {
		return "", &RecordNotFoundError{RecordID: req.RecordID}
	}

	eppn, _ := person.FirstIdentifier(domain.IdentifierTypeEPPN)
	localPart, scope, ok := SplitEPPN(eppn)
	if !ok {
		a.logger.Warn("no eppn identifier found", zap.Int64("record_id", req.RecordID), zap.String("eppn", eppn))
		return "", ErrEppnMissing
	}

	email, _ := person.FirstEmail(domain.EmailTypeOfficial)
	if email == "" {
		a.logger.Warn("no official email address found", zap.Int64("record_id", req.RecordID))
		return "", ErrEmailMissing
	}

	name, _ := person.FirstName(domain.NameTypeOfficial)
	if name.Given == "" || name.Family == "" {
		a.logger.Warn("no official name found", zap.Int64("record_id", req.RecordID))
		return "", ErrNameMissing
	}

	candidates, err := a.rules.Candidates(ctx, eppn, localPart, scope)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.StringSlice("candidates", candidates))

	var uids []string
	for _, candidate := range candidates {
		got, err := a.lookup.GetUser(ctx, dbservice.GetUserParams{
			FirstName: name.Given,
			LastName:  name.Family,
			Email:     email,
			EPPN:      candidate,
		})
		if err != nil {
			a.logRemoteFailure(req.RecordID, candidate, err)
			return "", &RemoteServiceError{Candidate: candidate, Err: err}
		}
		uids = append(uids, got...)
	}
	a.collected.Add(ctx, int64(len(uids)))

	if len(uids) == 0 {
		a.logger.Warn("no CILogon user identifier returned by dbService", zap.Int64("record_id", req.RecordID), zap.Strings("candidates", candidates))
		return "", ErrNoIdentifier
	}

	for _, uid := range uids[1:] {
		ident := &domain.Identifier{
			PersonID: req.RecordID,
			Value:    uid,
			Type:     domain.IdentifierTypeOIDCSub,
			Status:   domain.StatusActive,
		}
		if err := store.CreateIdentifier(ctx, ident, domain.SaveOptions{Provision: false}); err != nil {
			return "", err
		}
		a.created.Add(ctx, 1)
	}

	a.logger.Info("assigned CILogon user identifier",
		zap.Int64("record_id", req.RecordID),
		zap.String("user_uid", uids[0]),
		zap.Int("additional", len(uids)-1))
	return uids[0], nil
}

// SplitEPPN splits eppn on its first '@'. ok is false unless both parts are non-empty.
func SplitEPPN(eppn string) (localPart, scope string, ok bool) {
	localPart, scope, found := strings.Cut(eppn, "@")
	if !found || localPart == "" || scope == "" {
		return "", "", false
	}
	return localPart, scope, true
}

func (a *Assigner) logRemoteFailure(recordID int64, candidate string, err error) {
	fields := []zap.Field{
		zap.Int64("record_id", recordID),
		zap.String("eppn", candidate),
		zap.Error(err),
	}
	var se *dbservice.StatusError
	if errors.As(err, &se) {
		fields = append(fields, zap.Int("status", se.StatusCode), zap.String("response", se.Body))
	}
	a.logger.Error("error invoking dbService", fields...)
}
