package form

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/example/waitlist-service/internal/models"
	"github.com/example/waitlist-service/internal/store"
)

// fakeClient records calls and serves scripted responses. Submit blocks
// for submitDelay to let tests overlap operations deterministically.
type fakeClient struct {
	mu           sync.Mutex
	submitCalls  int
	submitErr    error
	submitDelay  time.Duration
	checkedWith  []string
	checkDelay   time.Duration
	existsResult bool
	checkErr     error
}

func (f *fakeClient) Submit(ctx context.Context, data models.FormData, source string) (*models.SubmissionRecord, error) {
	f.mu.Lock()
	f.submitCalls++
	delay := f.submitDelay
	err := f.submitErr
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return &models.SubmissionRecord{
		ID:          "rec-1",
		Name:        data.Name,
		Email:       data.Email,
		Source:      source,
		SubmittedAt: time.Now(),
	}, nil
}

func (f *fakeClient) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	f.mu.Lock()
	f.checkedWith = append(f.checkedWith, email)
	delay := f.checkDelay
	exists := f.existsResult
	err := f.checkErr
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return exists, err
}

func (f *fakeClient) Count(ctx context.Context, filters *models.Filters) (int, error) {
	return 0, nil
}

func (f *fakeClient) Stats(ctx context.Context) (*models.Stats, error) {
	return &models.Stats{}, nil
}

func (f *fakeClient) submits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCalls
}

func (f *fakeClient) checks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.checkedWith))
	copy(out, f.checkedWith)
	return out
}

func newTestController(t *testing.T, client store.Client, opts ...Option) *Controller {
	t.Helper()
	c, err := NewController(client, zerolog.Nop(), opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestUpdateFieldMarksDirtyAndTouched(t *testing.T) {
	c := newTestController(t, &fakeClient{}, WithImmediateValidation())

	require.False(t, c.IsDirty())
	c.UpdateField(models.FieldName, "J")

	require.True(t, c.IsDirty())
	err := c.FieldError(models.FieldName)
	require.NotNil(t, err)
	require.Equal(t, models.CodeMinLength, err.Code)

	c.UpdateField(models.FieldName, "John Doe")
	require.Nil(t, c.FieldError(models.FieldName))
}

func TestFieldErrorsHiddenUntilTouched(t *testing.T) {
	c := newTestController(t, &fakeClient{}, WithImmediateValidation())

	// Name is empty and therefore invalid, but it has not been touched
	// and no submit was attempted.
	require.Nil(t, c.FieldError(models.FieldName))

	c.BlurField(models.FieldName)
	err := c.FieldError(models.FieldName)
	require.NotNil(t, err)
	require.Equal(t, models.CodeRequiredField, err.Code)
}

func TestDebouncedValidationRunsOnce(t *testing.T) {
	c := newTestController(t, &fakeClient{},
		WithValidateDebounce(40*time.Millisecond),
		WithEmailCheckDebounce(time.Hour),
	)

	c.UpdateField(models.FieldName, "J")
	time.Sleep(10 * time.Millisecond)
	c.UpdateField(models.FieldName, "Jo")

	// Before the debounce fires no error is recorded.
	require.Nil(t, c.FieldError(models.FieldName))

	require.Eventually(t, func() bool {
		return c.FieldError(models.FieldName) == nil && len(c.Snapshot().Errors) > 0
	}, time.Second, 5*time.Millisecond, "debounced validation should flag the empty email but not the valid name")

	// The validated value is the latest one: "Jo" is valid.
	snap := c.Snapshot()
	require.Equal(t, models.FieldEmail, snap.Errors[0].Field)
}

func TestEmailCheckDebounceCollapsesKeystrokes(t *testing.T) {
	client := &fakeClient{}
	c := newTestController(t, client, WithEmailCheckDebounce(60*time.Millisecond))

	c.UpdateField(models.FieldEmail, "a@x.com")
	time.Sleep(10 * time.Millisecond)
	c.UpdateField(models.FieldEmail, "b@x.com")

	require.Equal(t, EmailDebouncing, c.EmailStatus())

	require.Eventually(t, func() bool {
		return c.EmailStatus() == EmailAvailable
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, []string{"b@x.com"}, client.checks(), "exactly one check, for the latest value")
}

func TestEmailCheckStaleResponseDiscarded(t *testing.T) {
	client := &fakeClient{checkDelay: 50 * time.Millisecond, existsResult: true}
	c := newTestController(t, client, WithEmailCheckDebounce(10*time.Millisecond))

	c.UpdateField(models.FieldEmail, "a@x.com")

	// Wait for the check to be in flight, then change the value.
	require.Eventually(t, func() bool {
		return c.EmailStatus() == EmailChecking
	}, time.Second, time.Millisecond)
	c.UpdateField(models.FieldEmail, "b@x.com")

	// The in-flight "exists" verdict for a@x.com must not surface; the
	// second check resolves for b@x.com instead.
	require.Eventually(t, func() bool {
		return len(client.checks()) == 2
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return c.EmailStatus() == EmailExists
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, "b@x.com", client.checks()[1])
}

func TestInvalidEmailIsNeverChecked(t *testing.T) {
	client := &fakeClient{}
	c := newTestController(t, client, WithEmailCheckDebounce(10*time.Millisecond))

	c.UpdateField(models.FieldEmail, "not-an-email")
	time.Sleep(50 * time.Millisecond)

	require.Empty(t, client.checks())
	require.Equal(t, EmailUnchecked, c.EmailStatus())
}

func TestSubmitInvalidFormSkipsNetwork(t *testing.T) {
	client := &fakeClient{}
	c := newTestController(t, client)

	c.Submit(context.Background())

	require.Equal(t, 0, client.submits())
	require.Equal(t, StateIdle, c.State())
	require.NotNil(t, c.FieldError(models.FieldName), "errors become visible after a submit attempt")
	require.NotNil(t, c.FieldError(models.FieldEmail))
}

func TestSubmitSuccess(t *testing.T) {
	client := &fakeClient{}
	c := newTestController(t, client, WithAutoResetDelay(0), WithSource(models.SourceHero))

	c.UpdateField(models.FieldName, "  john doe  ")
	c.UpdateField(models.FieldEmail, "JOHN@EX.COM")
	c.Submit(context.Background())

	require.Equal(t, StateSuccess, c.State())
	require.Equal(t, 1, client.submits())

	snap := c.Snapshot()
	require.NotNil(t, snap.Record)
	require.Equal(t, "John Doe", snap.Record.Name)
	require.Equal(t, "john@ex.com", snap.Record.Email)
	require.Equal(t, models.SourceHero, snap.Record.Source)
}

func TestSubmitDoubleSubmitGuard(t *testing.T) {
	client := &fakeClient{submitDelay: 80 * time.Millisecond}
	c := newTestController(t, client, WithAutoResetDelay(0), WithEmailCheckDebounce(time.Hour))

	c.UpdateField(models.FieldName, "John Doe")
	c.UpdateField(models.FieldEmail, "john@ex.com")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Submit(context.Background())
	}()

	require.Eventually(t, func() bool {
		return c.State() == StateSubmitting
	}, time.Second, time.Millisecond)

	// Second submit while the first is pending must be a no-op.
	c.Submit(context.Background())
	wg.Wait()

	require.Equal(t, 1, client.submits())
	require.Equal(t, StateSuccess, c.State())
}

func TestSubmitDuplicateFromServer(t *testing.T) {
	client := &fakeClient{submitErr: store.ErrDuplicateEmail}
	c := newTestController(t, client, WithEmailCheckDebounce(time.Hour))

	c.UpdateField(models.FieldName, "John Doe")
	c.UpdateField(models.FieldEmail, "john@ex.com")
	c.Submit(context.Background())

	require.Equal(t, StateError, c.State())
	require.Equal(t, msgDuplicateEmail, c.SubmitError())
	// The server verdict overrides the never-completed client-side check.
	require.Equal(t, EmailExists, c.EmailStatus())
}

func TestSubmitAbortsWhenEmailKnownTaken(t *testing.T) {
	client := &fakeClient{existsResult: true}
	c := newTestController(t, client, WithEmailCheckDebounce(10*time.Millisecond))

	c.UpdateField(models.FieldName, "John Doe")
	c.UpdateField(models.FieldEmail, "john@ex.com")

	require.Eventually(t, func() bool {
		return c.EmailStatus() == EmailExists
	}, time.Second, time.Millisecond)

	c.Submit(context.Background())

	require.Equal(t, 0, client.submits(), "known-duplicate submit must not hit the network")
	require.Equal(t, StateError, c.State())
	require.Equal(t, msgDuplicateEmail, c.SubmitError())
}

func TestSubmitTransientErrorMessage(t *testing.T) {
	client := &fakeClient{submitErr: store.WrapTransient(errors.New("connection refused"))}
	c := newTestController(t, client, WithEmailCheckDebounce(time.Hour))

	c.UpdateField(models.FieldName, "John Doe")
	c.UpdateField(models.FieldEmail, "john@ex.com")
	c.Submit(context.Background())

	require.Equal(t, StateError, c.State())
	require.Equal(t, msgNetwork, c.SubmitError())
}

func TestAutoResetAfterSuccess(t *testing.T) {
	client := &fakeClient{}
	c := newTestController(t, client,
		WithAutoResetDelay(40*time.Millisecond),
		WithEmailCheckDebounce(time.Hour),
	)

	c.UpdateField(models.FieldName, "John Doe")
	c.UpdateField(models.FieldEmail, "john@ex.com")
	c.Submit(context.Background())
	require.Equal(t, StateSuccess, c.State())

	require.Eventually(t, func() bool {
		return c.State() == StateIdle
	}, time.Second, 5*time.Millisecond)

	require.False(t, c.IsDirty())
	require.Equal(t, models.FormData{}, c.Values())
}

func TestResetClearsStateAndCancelsTimers(t *testing.T) {
	client := &fakeClient{}
	c := newTestController(t, client, WithEmailCheckDebounce(30*time.Millisecond))

	c.UpdateField(models.FieldName, "J")
	c.UpdateField(models.FieldEmail, "john@ex.com")
	c.Reset()

	require.Equal(t, models.FormData{}, c.Values())
	require.False(t, c.IsDirty())
	require.Equal(t, StateIdle, c.State())
	require.Equal(t, EmailUnchecked, c.EmailStatus())

	// The pending existence check must not fire after reset.
	time.Sleep(80 * time.Millisecond)
	require.Empty(t, client.checks())
	require.Equal(t, EmailUnchecked, c.EmailStatus())
}

func TestResetDuringSubmitDiscardsCompletion(t *testing.T) {
	client := &fakeClient{submitDelay: 80 * time.Millisecond}
	c := newTestController(t, client, WithAutoResetDelay(0), WithEmailCheckDebounce(time.Hour))

	c.UpdateField(models.FieldName, "John Doe")
	c.UpdateField(models.FieldEmail, "john@ex.com")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Submit(context.Background())
	}()

	require.Eventually(t, func() bool {
		return c.State() == StateSubmitting
	}, time.Second, time.Millisecond)

	c.Reset()
	wg.Wait()

	// The reset wins: the in-flight completion must not flip the fresh
	// Idle state to Success or repopulate the record.
	require.Equal(t, StateIdle, c.State())
	require.Nil(t, c.Snapshot().Record)
	require.False(t, c.IsDirty())
	require.Equal(t, models.FormData{}, c.Values())
}

func TestOnChangeCallback(t *testing.T) {
	var mu sync.Mutex
	var states []State

	client := &fakeClient{}
	c, err := NewController(client, zerolog.Nop(),
		WithAutoResetDelay(0),
		WithEmailCheckDebounce(time.Hour),
		WithOnChange(func(snap Snapshot) {
			mu.Lock()
			states = append(states, snap.State)
			mu.Unlock()
		}),
	)
	require.NoError(t, err)
	defer c.Close()

	c.UpdateField(models.FieldName, "John Doe")
	c.UpdateField(models.FieldEmail, "john@ex.com")
	c.Submit(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, states, StateSubmitting)
	require.Equal(t, StateSuccess, states[len(states)-1])
}

func TestCloseMakesOperationsNoOps(t *testing.T) {
	client := &fakeClient{}
	c, err := NewController(client, zerolog.Nop())
	require.NoError(t, err)

	c.Close()
	c.UpdateField(models.FieldName, "John Doe")
	c.Submit(context.Background())

	require.Equal(t, 0, client.submits())
	require.Equal(t, models.FormData{}, c.Values())
}
