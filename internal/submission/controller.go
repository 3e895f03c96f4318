package submission

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"loan-origination/internal/common/errors"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/common/metrics"
	"loan-origination/internal/common/observability"
	"loan-origination/internal/common/validation"
	"loan-origination/internal/models"
)

// Controller owns one editing session: login, reference data, and the
// create-versus-update decision for the draft. At most one Create is issued
// per session; every later submission updates the adopted identifier.
type Controller struct {
	auth       Authenticator
	apps       ApplicationRepository
	enums      EnumsRepository
	validator  *Validator
	logger     logger.Logger
	errHandler *errors.ErrorHandler
	obs        *observability.Observability
	now        func() time.Time

	mu sync.Mutex

	// submitting admits a single SubmitStep at a time. Reset and Edit read
	// it under mu, together with the identity they change.
	submitting    bool
	state         models.SessionState
	loading       bool
	lastError     string
	authenticated bool
	references    *models.ReferenceData
	identity      DraftIdentity
}

// NewController wires a controller. obs may be nil.
func NewController(
	auth Authenticator,
	apps ApplicationRepository,
	enums EnumsRepository,
	validator *Validator,
	log logger.Logger,
	obs *observability.Observability,
) *Controller {
	log = log.WithFields(map[string]interface{}{"component": "submission-controller"})
	return &Controller{
		auth:       auth,
		apps:       apps,
		enums:      enums,
		validator:  validator,
		logger:     log,
		errHandler: errors.NewErrorHandler(log),
		obs:        obs,
		now:        time.Now,
		state:      models.StateUninitialized,
		identity:   Unsaved{},
	}
}

// Initialize logs in and then loads the reference data. Any failure leaves
// the session in the error state; the draft identity is never touched.
func (c *Controller) Initialize(ctx context.Context, creds models.Credentials) error {
	started := c.now()

	c.mu.Lock()
	c.state = models.StateAuthenticating
	c.loading = true
	c.mu.Unlock()

	c.logger.Info("Initializing session", map[string]interface{}{
		"username": creds.Username,
	})

	if err := c.auth.Login(ctx, creds.Username, creds.Password); err != nil {
		c.fail("initialize", err)
		c.record(ctx, "initialize", err, started)
		return err
	}

	c.mu.Lock()
	c.authenticated = true
	c.mu.Unlock()

	refs, err := c.loadReferences(ctx)
	if err != nil {
		c.fail("initialize", err)
		c.record(ctx, "initialize", err, started)
		return err
	}

	c.mu.Lock()
	c.references = refs
	c.state = models.StateReady
	c.loading = false
	c.lastError = ""
	c.mu.Unlock()

	c.logger.Info("Session ready", map[string]interface{}{
		"idCardTypes":  len(refs.IDCardTypes),
		"productTypes": len(refs.ProductTypes),
	})
	c.record(ctx, "initialize", nil, started)
	return nil
}

// FetchEnums always refetches both vocabularies and replaces them together.
// On failure the previous reference data stays in place.
func (c *Controller) FetchEnums(ctx context.Context) error {
	started := c.now()

	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	refs, err := c.loadReferences(ctx)
	if err != nil {
		c.fail("fetch_enums", err)
		c.record(ctx, "fetch_enums", err, started)
		return err
	}

	c.mu.Lock()
	c.references = refs
	c.loading = false
	c.lastError = ""
	if c.authenticated && c.state != models.StateSubmitting {
		c.state = models.StateReady
	}
	c.mu.Unlock()

	c.record(ctx, "fetch_enums", nil, started)
	return nil
}

func (c *Controller) loadReferences(ctx context.Context) (*models.ReferenceData, error) {
	var idCardTypes, productTypes []models.ReferenceOption

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		idCardTypes, err = c.enums.FetchIDCardTypes(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		productTypes, err = c.enums.FetchProductTypes(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return models.NewReferenceData(idCardTypes, productTypes, c.now().UTC()), nil
}

// SubmitStep validates step and then creates or updates the application.
// Validation failures never reach the network. Repository failures leave the
// identity unchanged so a retry makes the same create-or-update choice.
func (c *Controller) SubmitStep(ctx context.Context, step Step, draft models.ApplicationDraft) (*SubmitResult, error) {
	started := c.now()
	operation := "submit_step"

	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return nil, errors.NewSubmissionInFlightError()
	}
	if !c.authenticated || c.references == nil {
		c.mu.Unlock()
		return nil, errors.NewNotInitializedError()
	}
	c.submitting = true
	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
	}()
	refs := c.references
	identity := c.identity
	c.mu.Unlock()

	result := c.validator.ValidateStep(step, draft, refs)
	if !result.Valid {
		err := errors.NewValidationFailedError(result)
		c.fail(operation, err)
		metrics.SubmissionsFailed.WithLabelValues(string(step), string(err.Code)).Inc()
		c.record(ctx, operation, err, started)
		return nil, err
	}

	c.mu.Lock()
	c.state = models.StateSubmitting
	c.loading = true
	c.mu.Unlock()

	metrics.SubmissionsActive.Inc()
	defer metrics.SubmissionsActive.Dec()

	var out *SubmitResult
	var err error
	switch id := identity.(type) {
	case Saved:
		out, err = c.update(ctx, step, id.ID, draft)
	default:
		out, err = c.create(ctx, step, draft)
	}

	if err != nil {
		stdErr := c.fail(operation, err)
		metrics.SubmissionsFailed.WithLabelValues(string(step), string(stdErr.Code)).Inc()
		c.record(ctx, operation, err, started)
		return nil, err
	}

	c.mu.Lock()
	c.state = models.StateReady
	c.loading = false
	c.lastError = ""
	c.mu.Unlock()

	c.logger.Info("Step submitted", map[string]interface{}{
		"step":          string(step),
		"applicationId": out.ApplicationID,
		"created":       out.Created,
	})
	c.record(ctx, operation, nil, started)
	return out, nil
}

func (c *Controller) create(ctx context.Context, step Step, draft models.ApplicationDraft) (*SubmitResult, error) {
	id, err := c.apps.Create(ctx, draft)
	if err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewMalformedResponseError(0, "create returned an empty application identifier")
	}

	c.mu.Lock()
	c.identity = Saved{ID: id}
	c.mu.Unlock()

	metrics.SubmissionsTotal.WithLabelValues("create", string(step)).Inc()
	return &SubmitResult{ApplicationID: id, Created: true}, nil
}

func (c *Controller) update(ctx context.Context, step Step, id string, draft models.ApplicationDraft) (*SubmitResult, error) {
	if err := c.apps.Update(ctx, id, draft); err != nil {
		return nil, err
	}
	metrics.SubmissionsTotal.WithLabelValues("update", string(step)).Inc()
	return &SubmitResult{ApplicationID: id, Created: false}, nil
}

// Reset starts a new application: the next submission creates again.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting {
		return errors.NewSubmissionInFlightError()
	}
	c.identity = Unsaved{}
	c.lastError = ""
	if c.state == models.StateError && c.authenticated && c.references != nil {
		c.state = models.StateReady
	}
	return nil
}

// Edit resumes an application that already exists on the server.
func (c *Controller) Edit(applicationID string) error {
	applicationID = strings.TrimSpace(applicationID)
	if applicationID == "" {
		result := validation.NewResult()
		result.Add(models.FormFieldApplicationID, validation.CodeMissingRequired, "Application id is required")
		return errors.NewValidationFailedError(result)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting {
		return errors.NewSubmissionInFlightError()
	}
	c.identity = Saved{ID: applicationID}
	return nil
}

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot() models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, saved := applicationID(c.identity)
	return models.Session{
		State:         c.state,
		Loading:       c.loading,
		LastError:     c.lastError,
		ApplicationID: id,
		Saved:         saved,
		References:    c.references.Clone(),
	}
}

// Identity returns the current draft identity.
func (c *Controller) Identity() DraftIdentity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *Controller) fail(operation string, err error) *errors.StandardError {
	stdErr := c.errHandler.Handle(operation, err)

	c.mu.Lock()
	c.state = models.StateError
	c.loading = false
	c.lastError = stdErr.Message
	c.mu.Unlock()

	return stdErr
}

func (c *Controller) record(ctx context.Context, operation string, err error, started time.Time) {
	status := "success"
	if err != nil {
		status = string(errors.Normalize(err).Code)
	}
	c.obs.RecordOperation(ctx, operation, status, c.now().Sub(started))
}
