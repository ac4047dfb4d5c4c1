package assignment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cilogon/ItrsscilogonAssigner/internal/assigner"
	auditdomain "github.com/cilogon/ItrsscilogonAssigner/internal/audit/domain"
	"github.com/cilogon/ItrsscilogonAssigner/internal/person/domain"
	"github.com/cilogon/ItrsscilogonAssigner/internal/person/repository"
	"github.com/cilogon/ItrsscilogonAssigner/internal/telemetry"
)

type savedIdentifier struct {
	ident     domain.Identifier
	provision bool
}

// txRepo stages writes and only publishes them to committed when Do succeeds.
type txRepo struct {
	person    *domain.Person
	staged    []savedIdentifier
	committed []savedIdentifier
	createErr error
	nextID    int64
}

func (r *txRepo) GetByID(_ context.Context, id int64) (*domain.Person, error) {
	if r.person == nil || r.person.ID != id {
		return nil, nil
	}
	return r.person, nil
}

func (r *txRepo) CreateIdentifier(_ context.Context, i *domain.Identifier, opts domain.SaveOptions) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	i.ID = r.nextID
	r.staged = append(r.staged, savedIdentifier{ident: *i, provision: opts.Provision})
	return nil
}

func (r *txRepo) Do(_ context.Context, fn func(repository.Repository) error) error {
	r.staged = nil
	if err := fn(r); err != nil {
		r.staged = nil
		return err
	}
	r.committed = append(r.committed, r.staged...)
	r.staged = nil
	return nil
}

type fakeAssigner struct {
	value string
	extra []string
	err   error
	got   assigner.Request
}

func (f *fakeAssigner) Assign(ctx context.Context, store assigner.PersonStore, req assigner.Request) (string, error) {
	f.got = req
	for _, v := range f.extra {
		if err := store.CreateIdentifier(ctx, &domain.Identifier{PersonID: req.RecordID, Value: v, Type: domain.IdentifierTypeOIDCSub}, domain.SaveOptions{}); err != nil {
			return "", err
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.value, nil
}

type auditEntry struct {
	coID, personID int64
	action         string
	metadata       string
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (f *fakeAudit) LogEvent(_ context.Context, coID, personID int64, action, _, metadata string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, auditEntry{coID: coID, personID: personID, action: action, metadata: metadata})
}

type fakeEmitter struct {
	events []*telemetry.AssignmentEvent
}

func (f *fakeEmitter) Emit(_ context.Context, e *telemetry.AssignmentEvent) {
	f.events = append(f.events, e)
}

func validRequest() Request {
	return Request{CoID: 2, RecordID: 42, IdentifierType: "network"}
}

func TestService_Assign_SavesWithProvisioning(t *testing.T) {
	repo := &txRepo{person: &domain.Person{ID: 42}}
	a := &fakeAssigner{value: "uid-1", extra: []string{"uid-2"}}
	au := &fakeAudit{}
	em := &fakeEmitter{}
	svc := NewService(repo, a, au, em, nil)

	res, err := svc.Assign(context.Background(), validRequest())
	require.NoError(t, err)
	require.NotNil(t, res.Identifier)
	assert.Equal(t, "uid-1", res.Identifier.Value)
	assert.Equal(t, domain.IdentifierType("network"), res.Identifier.Type)
	assert.Equal(t, domain.StatusActive, res.Identifier.Status)

	require.Len(t, repo.committed, 2)
	assert.Equal(t, "uid-2", repo.committed[0].ident.Value)
	assert.False(t, repo.committed[0].provision)
	assert.Equal(t, "uid-1", repo.committed[1].ident.Value)
	assert.True(t, repo.committed[1].provision)

	assert.Equal(t, assigner.ContextCoPerson, a.got.Context)
	assert.Equal(t, int64(42), a.got.RecordID)

	require.Len(t, au.entries, 1)
	assert.Equal(t, auditdomain.ActionIdentifierAssigned, au.entries[0].action)
	assert.Contains(t, au.entries[0].metadata, `"value":"uid-1"`)

	require.Len(t, em.events, 1)
	assert.Equal(t, telemetry.OutcomeAssigned, em.events[0].Outcome)
}

func TestService_Assign_AssignerErrorRollsBack(t *testing.T) {
	repo := &txRepo{person: &domain.Person{ID: 42}}
	a := &fakeAssigner{extra: []string{"uid-2"}, err: assigner.ErrNoIdentifier}
	au := &fakeAudit{}
	em := &fakeEmitter{}
	svc := NewService(repo, a, au, em, nil)

	res, err := svc.Assign(context.Background(), validRequest())
	require.ErrorIs(t, err, assigner.ErrNoIdentifier)
	assert.Nil(t, res)
	assert.Empty(t, repo.committed)

	require.Len(t, au.entries, 1)
	assert.Equal(t, auditdomain.ActionIdentifierAssignmentFailed, au.entries[0].action)
	require.Len(t, em.events, 1)
	assert.Equal(t, telemetry.OutcomeFailed, em.events[0].Outcome)
	assert.NotEmpty(t, em.events[0].Error)
}

func TestService_Assign_SaveErrorRollsBack(t *testing.T) {
	saveErr := errors.New("insert failed")
	repo := &txRepo{person: &domain.Person{ID: 42}, createErr: saveErr}
	svc := NewService(repo, &fakeAssigner{value: "uid-1"}, nil, nil, nil)

	_, err := svc.Assign(context.Background(), validRequest())
	require.ErrorIs(t, err, saveErr)
	assert.Empty(t, repo.committed)
}

func TestService_Assign_InvalidRequest(t *testing.T) {
	repo := &txRepo{}
	a := &fakeAssigner{value: "uid-1"}
	au := &fakeAudit{}
	svc := NewService(repo, a, au, nil, nil)

	_, err := svc.Assign(context.Background(), Request{CoID: 2, RecordID: 42})
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, au.entries, "invalid requests are rejected before any work")
	assert.Equal(t, assigner.Request{}, a.got)
}

func TestRequestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"valid", Request{CoID: 1, RecordID: 1, IdentifierType: "network"}, false},
		{"zero co", Request{RecordID: 1, IdentifierType: "network"}, true},
		{"negative record", Request{CoID: 1, RecordID: -1, IdentifierType: "network"}, true},
		{"blank type", Request{CoID: 1, RecordID: 1, IdentifierType: "  "}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := tc.req
			err := req.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "CoPerson", req.Context)
		})
	}
}

func TestDecodeRequest(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"co_id":2,"context":"CoPerson","record_id":42,"identifier_type":"network","email_type":"delivery"}`))
	require.NoError(t, err)
	assert.Equal(t, Request{CoID: 2, Context: "CoPerson", RecordID: 42, IdentifierType: "network", EmailType: "delivery"}, req)

	_, err = DecodeRequest([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = DecodeRequest([]byte(`{"co_id":2,"record_id":42}`))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
