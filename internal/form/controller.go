// Package form implements the state machine driving a single waitlist
// form: field updates with debounced validation, an asynchronous debounced
// email-existence check, submission with a double-submit guard, and reset.
// The controller is independent of any rendering technology; a UI layer
// observes it through snapshots or the optional change callback.
package form

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/waitlist-service/internal/models"
	"github.com/example/waitlist-service/internal/store"
	"github.com/example/waitlist-service/internal/validation"
)

// State is the submission lifecycle state of the form.
type State string

// Form states.
const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateSuccess    State = "success"
	StateError      State = "error"
)

// EmailStatus is the independent sub-state of the async existence check.
type EmailStatus string

// Email check states.
const (
	EmailUnchecked  EmailStatus = "unchecked"
	EmailDebouncing EmailStatus = "debouncing"
	EmailChecking   EmailStatus = "checking"
	EmailExists     EmailStatus = "exists"
	EmailAvailable  EmailStatus = "available"
)

// User-facing submission failure messages. The duplicate wording is
// deliberately distinct from generic validation failures.
const (
	msgDuplicateEmail = "This email is already on the waitlist."
	msgUnavailable    = "Submissions are temporarily unavailable. Please try again later."
	msgNetwork        = "We couldn't reach the server. Please check your connection and try again."
	msgGeneric        = "Something went wrong. Please try again."
)

// Snapshot is a point-in-time copy of the controller's observable state.
type Snapshot struct {
	Data        models.FormData
	State       State
	EmailStatus EmailStatus
	Errors      []models.ValidationError
	SubmitError string
	IsValid     bool
	IsDirty     bool
	Record      *models.SubmissionRecord
}

// Controller owns the state of one form instance. All methods are safe for
// concurrent use; timers fire on their own goroutines and re-enter through
// the same lock. Controllers are not shared between forms.
type Controller struct {
	client store.Client
	logger zerolog.Logger

	validateDebounce time.Duration
	emailDebounce    time.Duration
	autoResetDelay   time.Duration
	immediate        bool
	source           string
	onChange         func(Snapshot)

	ctx    context.Context
	cancel context.CancelFunc

	mu              sync.Mutex
	data            models.FormData
	fieldErrors     map[models.Field]models.ValidationError
	touched         map[models.Field]bool
	dirty           map[models.Field]bool
	state           State
	emailStatus     EmailStatus
	submitError     string
	submitAttempted bool
	record          *models.SubmissionRecord
	closed          bool

	// Generation counters invalidate pending debounce work and in-flight
	// responses. Each is bumped when its concern is superseded (every
	// email edit for emailGen) and all are bumped on reset and close, so
	// stale callbacks become no-ops (last write wins).
	valGen   uint64
	emailGen uint64
	resetGen uint64

	validateTimer *time.Timer
	emailTimer    *time.Timer
	resetTimer    *time.Timer
}

// NewController constructs a controller bound to a submission store.
func NewController(client store.Client, logger zerolog.Logger, opts ...Option) (*Controller, error) {
	if client == nil {
		return nil, errors.New("form: store client is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		client:           client,
		logger:           logger,
		validateDebounce: DefaultValidateDebounce,
		emailDebounce:    DefaultEmailCheckDebounce,
		autoResetDelay:   DefaultAutoResetDelay,
		source:           models.SourceUnknown,
		ctx:              ctx,
		cancel:           cancel,
		fieldErrors:      make(map[models.Field]models.ValidationError),
		touched:          make(map[models.Field]bool),
		dirty:            make(map[models.Field]bool),
		state:            StateIdle,
		emailStatus:      EmailUnchecked,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

// UpdateField records a new raw value for the field, marks it dirty and
// touched, and schedules validation. Editing the email also re-arms the
// debounced existence check, superseding any pending or in-flight check.
func (c *Controller) UpdateField(field models.Field, value string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	c.setFieldValue(field, value)
	c.dirty[field] = true
	c.touched[field] = true

	if c.immediate {
		c.applyFieldValidation(field)
	} else {
		c.armValidateTimer()
	}

	if field == models.FieldEmail {
		c.armEmailCheck()
	}

	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// BlurField validates the field immediately, independent of any pending
// debounce timer.
func (c *Controller) BlurField(field models.Field) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	c.touched[field] = true
	c.applyFieldValidation(field)

	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// Submit validates the sanitized form and, when it passes, performs the
// store call synchronously. Invalid forms and a positive duplicate verdict
// from the existence check abort without touching the network. A second
// Submit while one is in flight is a no-op.
func (c *Controller) Submit(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.state == StateSubmitting {
		c.mu.Unlock()
		return
	}

	c.submitAttempted = true
	c.stopTimer(&c.validateTimer)

	checked := validation.ValidateAndSanitize(c.data)
	if !checked.IsValid {
		c.replaceErrors(checked.Errors)
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)
		return
	}
	c.replaceErrors(nil)

	if c.emailStatus == EmailExists {
		c.state = StateError
		c.submitError = msgDuplicateEmail
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)
		return
	}

	c.state = StateSubmitting
	c.submitError = ""
	data := checked.SanitizedData
	source := c.source
	gen := c.resetGen
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)

	record, err := c.client.Submit(ctx, data, source)

	c.mu.Lock()
	// A reset while the call was in flight wins; the completion is stale.
	if c.closed || gen != c.resetGen {
		c.mu.Unlock()
		return
	}

	if err != nil {
		c.state = StateError
		c.submitError = submitMessage(err)
		if errors.Is(err, store.ErrDuplicateEmail) {
			// The server verdict is authoritative even when the earlier
			// existence check reported the address available.
			c.emailStatus = EmailExists
		}
		c.logger.Warn().Err(err).Str("source", source).Msg("form: submission failed")
	} else {
		c.state = StateSuccess
		c.record = record
		c.logger.Info().Str("source", source).Msg("form: submission accepted")
		c.armAutoReset()
	}

	snap = c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// Reset returns the form to its initial defaults, clears all errors and
// flags, and cancels every pending timer and in-flight check.
func (c *Controller) Reset() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	c.resetLocked()

	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// Close tears the controller down, cancelling all pending work. The
// controller must not be used afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.valGen++
	c.emailGen++
	c.resetGen++
	c.stopTimer(&c.validateTimer)
	c.stopTimer(&c.emailTimer)
	c.stopTimer(&c.resetTimer)
	c.mu.Unlock()
	c.cancel()
}

// Values returns a copy of the current form data.
func (c *Controller) Values() models.FormData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data.Clone()
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// EmailStatus returns the current existence-check sub-state.
func (c *Controller) EmailStatus() EmailStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.emailStatus
}

// FieldError returns the visible error for a field. Errors only become
// visible once the field has been touched or a submit has been attempted.
func (c *Controller) FieldError(field models.Field) *models.ValidationError {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.touched[field] && !c.submitAttempted {
		return nil
	}
	if err, ok := c.fieldErrors[field]; ok {
		out := err
		return &out
	}
	return nil
}

// SubmitError returns the current global submission error message, empty
// when there is none.
func (c *Controller) SubmitError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitError
}

// IsDirty reports whether any field has been edited since the last reset.
func (c *Controller) IsDirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dirty) > 0
}

// IsValid validates the current data and reports the outcome. It does not
// mutate the recorded per-field errors.
func (c *Controller) IsValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return validation.ValidateAndSanitize(c.data).IsValid
}

// Snapshot returns a copy of the full observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// armValidateTimer (re)schedules the debounced full-form validation pass.
func (c *Controller) armValidateTimer() {
	c.stopTimer(&c.validateTimer)
	c.valGen++
	gen := c.valGen
	c.validateTimer = time.AfterFunc(c.validateDebounce, func() {
		c.mu.Lock()
		if c.closed || gen != c.valGen {
			c.mu.Unlock()
			return
		}
		result := validation.ValidateAndSanitize(c.data)
		c.replaceErrors(result.Errors)
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)
	})
}

// armEmailCheck supersedes any pending or in-flight existence check and
// schedules a new one for the current email value. Values that cannot pass
// local validation are not checked.
func (c *Controller) armEmailCheck() {
	c.emailGen++
	c.stopTimer(&c.emailTimer)

	if validation.ValidateField(models.FieldEmail, c.data.Email) != nil {
		c.emailStatus = EmailUnchecked
		return
	}

	gen := c.emailGen
	c.emailStatus = EmailDebouncing
	c.emailTimer = time.AfterFunc(c.emailDebounce, func() {
		c.mu.Lock()
		if c.closed || gen != c.emailGen {
			c.mu.Unlock()
			return
		}
		email := c.data.Email
		c.emailStatus = EmailChecking
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)

		exists, err := c.client.CheckEmailExists(c.ctx, email)

		c.mu.Lock()
		// Discard stale responses: the value may have changed while the
		// check was in flight.
		if c.closed || gen != c.emailGen || c.data.Email != email {
			c.mu.Unlock()
			return
		}
		if err != nil {
			c.emailStatus = EmailUnchecked
			c.logger.Debug().Err(err).Msg("form: email existence check failed")
		} else if exists {
			c.emailStatus = EmailExists
		} else {
			c.emailStatus = EmailAvailable
		}
		snap = c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)
	})
}

func (c *Controller) armAutoReset() {
	c.stopTimer(&c.resetTimer)
	if c.autoResetDelay <= 0 {
		return
	}
	c.resetGen++
	gen := c.resetGen
	c.resetTimer = time.AfterFunc(c.autoResetDelay, func() {
		c.mu.Lock()
		if c.closed || gen != c.resetGen || c.state != StateSuccess {
			c.mu.Unlock()
			return
		}
		c.resetLocked()
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)
	})
}

// resetLocked restores the initial state. Callers hold the lock.
func (c *Controller) resetLocked() {
	c.valGen++
	c.emailGen++
	c.resetGen++
	c.stopTimer(&c.validateTimer)
	c.stopTimer(&c.emailTimer)
	c.stopTimer(&c.resetTimer)

	c.data = models.FormData{}
	c.fieldErrors = make(map[models.Field]models.ValidationError)
	c.touched = make(map[models.Field]bool)
	c.dirty = make(map[models.Field]bool)
	c.state = StateIdle
	c.emailStatus = EmailUnchecked
	c.submitError = ""
	c.submitAttempted = false
	c.record = nil
}

func (c *Controller) setFieldValue(field models.Field, value string) {
	switch field {
	case models.FieldName:
		c.data.Name = value
	case models.FieldEmail:
		c.data.Email = value
	case models.FieldMessage:
		c.data.Message = &value
	case models.FieldCompany:
		c.data.Company = &value
	case models.FieldPhone:
		c.data.Phone = &value
	}
}

// applyFieldValidation validates one field against the current data and
// records or clears its error. Callers hold the lock.
func (c *Controller) applyFieldValidation(field models.Field) {
	value := ""
	switch field {
	case models.FieldName:
		value = c.data.Name
	case models.FieldEmail:
		value = c.data.Email
	case models.FieldMessage:
		if c.data.Message != nil {
			value = *c.data.Message
		}
	case models.FieldCompany:
		if c.data.Company != nil {
			value = *c.data.Company
		}
	case models.FieldPhone:
		if c.data.Phone != nil {
			value = *c.data.Phone
		}
	}

	if err := validation.ValidateField(field, value); err != nil {
		c.fieldErrors[field] = *err
	} else {
		delete(c.fieldErrors, field)
	}
}

// replaceErrors swaps the whole error set, keeping at most one error per
// field. Callers hold the lock.
func (c *Controller) replaceErrors(errs []models.ValidationError) {
	c.fieldErrors = make(map[models.Field]models.ValidationError, len(errs))
	for _, err := range errs {
		if _, exists := c.fieldErrors[err.Field]; !exists {
			c.fieldErrors[err.Field] = err
		}
	}
}

// snapshotLocked builds a Snapshot. Callers hold the lock.
func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Data:        c.data.Clone(),
		State:       c.state,
		EmailStatus: c.emailStatus,
		SubmitError: c.submitError,
		IsValid:     len(c.fieldErrors) == 0 && validation.ValidateAndSanitize(c.data).IsValid,
		IsDirty:     len(c.dirty) > 0,
		Record:      c.record,
	}
	for _, field := range models.FieldOrder {
		if err, ok := c.fieldErrors[field]; ok {
			snap.Errors = append(snap.Errors, err)
		}
	}
	return snap
}

func (c *Controller) notify(snap Snapshot) {
	if c.onChange != nil {
		c.onChange(snap)
	}
}

// stopTimer stops and clears a timer handle. Callers hold the lock.
func (c *Controller) stopTimer(timer **time.Timer) {
	if *timer != nil {
		(*timer).Stop()
		*timer = nil
	}
}

// submitMessage translates a store error into the user-visible message.
func submitMessage(err error) string {
	switch {
	case errors.Is(err, store.ErrDuplicateEmail):
		return msgDuplicateEmail
	case errors.Is(err, store.ErrConfiguration), errors.Is(err, store.ErrPermission):
		return msgUnavailable
	case errors.Is(err, store.ErrTransient),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return msgNetwork
	default:
		return msgGeneric
	}
}
