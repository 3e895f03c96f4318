package submission

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"loan-origination/internal/common/errors"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/models"
)

// ==========================
// Mock Collaborators
// ==========================

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Login(ctx context.Context, username, password string) error {
	args := m.Called(ctx, username, password)
	return args.Error(0)
}

type MockApplicationRepository struct {
	mock.Mock
}

func (m *MockApplicationRepository) Create(ctx context.Context, draft models.ApplicationDraft) (string, error) {
	args := m.Called(ctx, draft)
	return args.String(0), args.Error(1)
}

func (m *MockApplicationRepository) Update(ctx context.Context, id string, draft models.ApplicationDraft) error {
	args := m.Called(ctx, id, draft)
	return args.Error(0)
}

type MockEnumsRepository struct {
	mock.Mock
}

func (m *MockEnumsRepository) FetchIDCardTypes(ctx context.Context) ([]models.ReferenceOption, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ReferenceOption), args.Error(1)
}

func (m *MockEnumsRepository) FetchProductTypes(ctx context.Context) ([]models.ReferenceOption, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ReferenceOption), args.Error(1)
}

// ==========================
// Test Helpers
// ==========================

var (
	testIDCardTypes  = []models.ReferenceOption{{ID: "1", Name: "Citizen ID"}, {ID: "2", Name: "Passport"}}
	testProductTypes = []models.ReferenceOption{{ID: "consumer", Name: "Consumer loan"}, {ID: "business", Name: "Business loan"}}
	testCredentials  = models.Credentials{Username: "officer", Password: "secret"}
)

type fixture struct {
	auth       *MockAuthenticator
	apps       *MockApplicationRepository
	enums      *MockEnumsRepository
	controller *Controller
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		auth:  &MockAuthenticator{},
		apps:  &MockApplicationRepository{},
		enums: &MockEnumsRepository{},
	}
	f.controller = NewController(f.auth, f.apps, f.enums, NewValidator("VN"), logger.NewTestLogger(t), nil)
	return f
}

func (f *fixture) expectInitialize() {
	f.auth.On("Login", mock.Anything, "officer", "secret").Return(nil).Once()
	f.enums.On("FetchIDCardTypes", mock.Anything).Return(testIDCardTypes, nil)
	f.enums.On("FetchProductTypes", mock.Anything).Return(testProductTypes, nil)
}

func (f *fixture) initialized(t *testing.T) *fixture {
	f.expectInitialize()
	require.NoError(t, f.controller.Initialize(context.Background(), testCredentials))
	return f
}

func createValidDraft() models.ApplicationDraft {
	return models.ApplicationDraft{
		CustomerInfo: models.CustomerInfo{
			IDCardType:  "1",
			IDNumber:    "079123456789",
			FullName:    "Nguyen Van A",
			Phone:       "+84912345678",
			DateOfBirth: "1990-05-20",
		},
		LoanInfo: models.LoanInfo{
			RequestedAmount: "50000000",
			Term:            "12",
			ProductType:     "consumer",
			Purposes:        []string{"home_improvement"},
		},
	}
}

// ==========================
// Initialize / FetchEnums
// ==========================

func TestInitialize_Success(t *testing.T) {
	f := newFixture(t).initialized(t)

	snap := f.controller.Snapshot()
	assert.Equal(t, models.StateReady, snap.State)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.LastError)
	assert.False(t, snap.Saved)
	require.NotNil(t, snap.References)
	assert.Equal(t, testIDCardTypes, snap.References.IDCardTypes)
	assert.Equal(t, testProductTypes, snap.References.ProductTypes)
	f.auth.AssertExpectations(t)
}

func TestInitialize_AuthFailureIsReturnedAsIs(t *testing.T) {
	f := newFixture(t)
	authErr := errors.NewAuthenticationError(401, "Invalid user credentials")
	f.auth.On("Login", mock.Anything, "officer", "secret").Return(authErr)

	err := f.controller.Initialize(context.Background(), testCredentials)
	assert.Same(t, authErr, err)

	snap := f.controller.Snapshot()
	assert.Equal(t, models.StateError, snap.State)
	assert.Equal(t, "Invalid user credentials", snap.LastError)
	assert.Nil(t, snap.References)
	f.enums.AssertNotCalled(t, "FetchIDCardTypes", mock.Anything)
}

func TestInitialize_EnumFailureKeepsIdentity(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.controller.Edit("app-7"))

	f.auth.On("Login", mock.Anything, "officer", "secret").Return(nil)
	f.enums.On("FetchIDCardTypes", mock.Anything).Return(testIDCardTypes, nil)
	f.enums.On("FetchProductTypes", mock.Anything).Return(nil, errors.NewBackendError(503, "maintenance", ""))

	err := f.controller.Initialize(context.Background(), testCredentials)
	assert.True(t, stderrors.Is(err, errors.ErrBackend))

	snap := f.controller.Snapshot()
	assert.Equal(t, models.StateError, snap.State)
	assert.Equal(t, "maintenance", snap.LastError)
	assert.Equal(t, "app-7", snap.ApplicationID)
	assert.Nil(t, snap.References)
}

func TestFetchEnums_AlwaysRefetchesAndReplacesBoth(t *testing.T) {
	f := newFixture(t).initialized(t)

	updatedProducts := []models.ReferenceOption{{ID: "mortgage", Name: "Mortgage"}}
	f.enums.ExpectedCalls = nil
	f.enums.On("FetchIDCardTypes", mock.Anything).Return(testIDCardTypes[:1], nil).Once()
	f.enums.On("FetchProductTypes", mock.Anything).Return(updatedProducts, nil).Once()

	require.NoError(t, f.controller.FetchEnums(context.Background()))

	snap := f.controller.Snapshot()
	assert.Equal(t, testIDCardTypes[:1], snap.References.IDCardTypes)
	assert.Equal(t, updatedProducts, snap.References.ProductTypes)
	assert.Equal(t, models.StateReady, snap.State)
	f.enums.AssertExpectations(t)
}

func TestFetchEnums_PartialFailureKeepsPreviousData(t *testing.T) {
	f := newFixture(t).initialized(t)

	f.enums.ExpectedCalls = nil
	f.enums.On("FetchIDCardTypes", mock.Anything).Return([]models.ReferenceOption{{ID: "9", Name: "New"}}, nil)
	f.enums.On("FetchProductTypes", mock.Anything).Return(nil, errors.NewTransportError(fmt.Errorf("connection reset")))

	err := f.controller.FetchEnums(context.Background())
	assert.True(t, stderrors.Is(err, errors.ErrTransport))

	snap := f.controller.Snapshot()
	assert.Equal(t, models.StateError, snap.State)
	assert.Equal(t, testIDCardTypes, snap.References.IDCardTypes)
	assert.Equal(t, testProductTypes, snap.References.ProductTypes)
}

func TestSnapshot_ReferencesAreCopies(t *testing.T) {
	f := newFixture(t).initialized(t)

	snap := f.controller.Snapshot()
	snap.References.IDCardTypes[0].Name = "mutated"

	assert.Equal(t, "Citizen ID", f.controller.Snapshot().References.IDCardTypes[0].Name)
}

// ==========================
// SubmitStep
// ==========================

func TestSubmitStep_CreateOnceThenUpdate(t *testing.T) {
	f := newFixture(t).initialized(t)
	draft := createValidDraft()

	f.apps.On("Create", mock.Anything, draft).Return("app-1", nil).Once()
	f.apps.On("Update", mock.Anything, "app-1", mock.Anything).Return(nil).Twice()

	first, err := f.controller.SubmitStep(context.Background(), StepCustomerInformation, draft)
	require.NoError(t, err)
	assert.Equal(t, &SubmitResult{ApplicationID: "app-1", Created: true}, first)

	second, err := f.controller.SubmitStep(context.Background(), StepCustomerInformation, draft)
	require.NoError(t, err)
	assert.Equal(t, &SubmitResult{ApplicationID: "app-1", Created: false}, second)

	_, err = f.controller.SubmitStep(context.Background(), StepLoanInformation, draft)
	require.NoError(t, err)

	f.apps.AssertNumberOfCalls(t, "Create", 1)
	f.apps.AssertNumberOfCalls(t, "Update", 2)
	f.apps.AssertExpectations(t)
	assert.Equal(t, Saved{ID: "app-1"}, f.controller.Identity())
}

func TestSubmitStep_EmptyIdentifierIsMalformed(t *testing.T) {
	f := newFixture(t).initialized(t)
	draft := createValidDraft()

	f.apps.On("Create", mock.Anything, draft).Return("", nil).Once()
	f.apps.On("Create", mock.Anything, draft).Return("app-2", nil).Once()

	_, err := f.controller.SubmitStep(context.Background(), StepCustomerInformation, draft)
	assert.True(t, stderrors.Is(err, errors.ErrMalformedResponse))
	assert.Equal(t, Unsaved{}, f.controller.Identity())
	assert.Equal(t, models.StateError, f.controller.Snapshot().State)

	result, err := f.controller.SubmitStep(context.Background(), StepCustomerInformation, draft)
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, "app-2", result.ApplicationID)

	f.apps.AssertNumberOfCalls(t, "Create", 2)
	f.apps.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitStep_WhitespaceIdentifierIsMalformed(t *testing.T) {
	f := newFixture(t).initialized(t)
	f.apps.On("Create", mock.Anything, mock.Anything).Return("   ", nil).Once()

	_, err := f.controller.SubmitStep(context.Background(), StepCustomerInformation, createValidDraft())
	assert.True(t, stderrors.Is(err, errors.ErrMalformedResponse))
	assert.False(t, f.controller.Snapshot().Saved)
}

func TestSubmitStep_FailedCreateIsRetriedAsCreate(t *testing.T) {
	f := newFixture(t).initialized(t)
	draft := createValidDraft()

	f.apps.On("Create", mock.Anything, draft).Return("", errors.NewBackendError(500, "database unavailable", "")).Once()
	f.apps.On("Create", mock.Anything, draft).Return("app-3", nil).Once()

	_, err := f.controller.SubmitStep(context.Background(), StepCustomerInformation, draft)
	require.Error(t, err)
	snap := f.controller.Snapshot()
	assert.Equal(t, models.StateError, snap.State)
	assert.Equal(t, "database unavailable", snap.LastError)
	assert.False(t, snap.Saved)

	result, err := f.controller.SubmitStep(context.Background(), StepCustomerInformation, draft)
	require.NoError(t, err)
	assert.Equal(t, "app-3", result.ApplicationID)
	assert.Equal(t, models.StateReady, f.controller.Snapshot().State)
	assert.Empty(t, f.controller.Snapshot().LastError)
}

func TestSubmitStep_FailedUpdateKeepsIdentifier(t *testing.T) {
	f := newFixture(t).initialized(t)
	require.NoError(t, f.controller.Edit("app-9"))

	f.apps.On("Update", mock.Anything, "app-9", mock.Anything).Return(errors.NewTransportError(fmt.Errorf("timeout"))).Once()
	f.apps.On("Update", mock.Anything, "app-9", mock.Anything).Return(nil).Once()

	_, err := f.controller.SubmitStep(context.Background(), StepCustomerInformation, createValidDraft())
	assert.True(t, stderrors.Is(err, errors.ErrTransport))
	assert.Equal(t, Saved{ID: "app-9"}, f.controller.Identity())

	_, err = f.controller.SubmitStep(context.Background(), StepCustomerInformation, createValidDraft())
	require.NoError(t, err)
	f.apps.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmitStep_ValidationFailureMakesNoCall(t *testing.T) {
	f := newFixture(t).initialized(t)

	_, err := f.controller.SubmitStep(context.Background(), StepCustomerInformation, models.ApplicationDraft{})
	require.Error(t, err)

	var stdErr *errors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	assert.Equal(t, errors.ErrCodeValidationFailed, stdErr.Code)
	assert.Len(t, stdErr.Violations, 5)
	_, hasStatus := stdErr.Status()
	assert.False(t, hasStatus)

	f.apps.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.apps.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, models.StateError, f.controller.Snapshot().State)
}

func TestSubmitStep_UnknownEnumValueRejected(t *testing.T) {
	f := newFixture(t).initialized(t)
	draft := createValidDraft()
	draft.ProductType = "payday"

	_, err := f.controller.SubmitStep(context.Background(), StepCustomerInformation, draft)

	var stdErr *errors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	require.Len(t, stdErr.Violations, 1)
	assert.Equal(t, models.FieldProductType, stdErr.Violations[0].Field)
	f.apps.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmitStep_NotInitialized(t *testing.T) {
	f := newFixture(t)

	_, err := f.controller.SubmitStep(context.Background(), StepCustomerInformation, createValidDraft())
	assert.True(t, stderrors.Is(err, errors.ErrNotInitialized))
	assert.Equal(t, models.StateUninitialized, f.controller.Snapshot().State)
}

func TestSubmitStep_RejectsConcurrentSubmission(t *testing.T) {
	f := newFixture(t).initialized(t)
	draft := createValidDraft()

	entered := make(chan struct{})
	release := make(chan struct{})
	f.apps.On("Create", mock.Anything, draft).Run(func(args mock.Arguments) {
		close(entered)
		<-release
	}).Return("app-1", nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := f.controller.SubmitStep(context.Background(), StepCustomerInformation, draft)
		done <- err
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first submission never reached the repository")
	}

	assert.Equal(t, models.StateSubmitting, f.controller.Snapshot().State)
	_, err := f.controller.SubmitStep(context.Background(), StepCustomerInformation, draft)
	assert.True(t, stderrors.Is(err, errors.ErrSubmissionInFlight))
	assert.True(t, stderrors.Is(f.controller.Reset(), errors.ErrSubmissionInFlight))

	close(release)
	require.NoError(t, <-done)

	f.apps.AssertNumberOfCalls(t, "Create", 1)
	assert.Equal(t, Saved{ID: "app-1"}, f.controller.Identity())
}

// ==========================
// Reset / Edit
// ==========================

func TestReset_StartsNewApplication(t *testing.T) {
	f := newFixture(t).initialized(t)
	draft := createValidDraft()

	f.apps.On("Create", mock.Anything, draft).Return("app-1", nil).Once()
	f.apps.On("Create", mock.Anything, draft).Return("app-2", nil).Once()

	_, err := f.controller.SubmitStep(context.Background(), StepCustomerInformation, draft)
	require.NoError(t, err)

	require.NoError(t, f.controller.Reset())
	assert.Equal(t, Unsaved{}, f.controller.Identity())

	result, err := f.controller.SubmitStep(context.Background(), StepCustomerInformation, draft)
	require.NoError(t, err)
	assert.Equal(t, "app-2", result.ApplicationID)
	assert.True(t, result.Created)
}

func TestReset_ClearsErrorState(t *testing.T) {
	f := newFixture(t).initialized(t)
	_, _ = f.controller.SubmitStep(context.Background(), StepCustomerInformation, models.ApplicationDraft{})
	require.Equal(t, models.StateError, f.controller.Snapshot().State)

	require.NoError(t, f.controller.Reset())
	snap := f.controller.Snapshot()
	assert.Equal(t, models.StateReady, snap.State)
	assert.Empty(t, snap.LastError)
}

func TestEdit_RejectedWhileSubmitting(t *testing.T) {
	f := newFixture(t).initialized(t)
	draft := createValidDraft()

	entered := make(chan struct{})
	release := make(chan struct{})
	f.apps.On("Create", mock.Anything, draft).Run(func(args mock.Arguments) {
		close(entered)
		<-release
	}).Return("app-1", nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := f.controller.SubmitStep(context.Background(), StepCustomerInformation, draft)
		done <- err
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("submission never reached the repository")
	}

	assert.True(t, stderrors.Is(f.controller.Edit("app-9"), errors.ErrSubmissionInFlight))
	assert.Equal(t, Unsaved{}, f.controller.Identity())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, Saved{ID: "app-1"}, f.controller.Identity())

	require.NoError(t, f.controller.Edit("app-9"))
	assert.Equal(t, Saved{ID: "app-9"}, f.controller.Identity())
}

func TestEdit(t *testing.T) {
	f := newFixture(t)

	err := f.controller.Edit("  ")
	assert.True(t, stderrors.Is(err, errors.ErrValidationFailed))
	assert.Equal(t, Unsaved{}, f.controller.Identity())

	require.NoError(t, f.controller.Edit("app-5"))
	snap := f.controller.Snapshot()
	assert.True(t, snap.Saved)
	assert.Equal(t, "app-5", snap.ApplicationID)
}
