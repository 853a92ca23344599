package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// tokenFuture is both the credential cell value and a refresh-map entry. It
// starts in flight and settles exactly once; a settled future carries either
// the credential record or the failure. prev points at the cell value the
// refresh superseded so readers can resolve through a failed refresh to the
// last good record; it is dropped on success to keep the chain from growing.
type tokenFuture struct {
	done  chan struct{}
	creds Credentials
	err   error
	prev  *tokenFuture
}

func newTokenFuture(prev *tokenFuture) *tokenFuture {
	return &tokenFuture{
		done: make(chan struct{}),
		prev: prev,
	}
}

func (f *tokenFuture) settle(creds Credentials, err error) {
	f.creds = creds
	f.err = err
	if err == nil {
		f.prev = nil
	}
	close(f.done)
}

func (f *tokenFuture) settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func (f *tokenFuture) wait(ctx context.Context) (Credentials, error) {
	select {
	case <-f.done:
		return f.creds, f.err
	case <-ctx.Done():
		return Credentials{}, ctx.Err()
	}
}

// Provider holds the current canonical credential set for one application
// identity and serves it on demand, transparently refreshing the access token
// when it is close to or past expiry.
//
// All state transitions happen under a single mutex; the check-and-install of
// a refresh future is never separated from the map lookup by a suspension, so
// at most one refresh is in flight per superseded access token.
type Provider struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	identityClient  IdentityClient
	store           CredentialStore
	now             func() time.Time

	mu            sync.Mutex
	current       *tokenFuture
	refreshes     map[string]*tokenFuture
	nextSaveRetry time.Time

	pruneStop chan struct{}
	closeOnce sync.Once
}

// NewProvider builds a Provider around a credential store. The store's Load
// is invoked once, asynchronously; the first Fetch observes its outcome.
func NewProvider(cfg Config, options ...Option) (*Provider, error) {
	builder := defaultProviderBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	loggerProvider, logger := glog.Resolve("twitchauth", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if loggerProvider != nil {
		if named := loggerProvider.GetLogger("twitchauth"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.clock == nil {
		builder.clock = func() time.Time { return time.Now().UTC() }
	}
	if builder.store == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: credential store is required"))
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	p := &Provider{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  loggerProvider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		identityClient:  builder.identityClient,
		store:           builder.store,
		now:             builder.clock,
		refreshes:       map[string]*tokenFuture{},
		pruneStop:       make(chan struct{}),
	}

	initial := newTokenFuture(nil)
	p.current = initial
	go p.resolveInitial(initial)
	go p.pruneLoop()

	return p, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

// Close stops the background pruner. It does not invalidate credentials and
// does not cancel an in-flight refresh.
func (p *Provider) Close() {
	if p == nil {
		return
	}
	p.closeOnce.Do(func() {
		close(p.pruneStop)
	})
}

// Config returns the resolved configuration.
func (p *Provider) Config() Config {
	if p == nil {
		return Config{}
	}
	return p.config
}

// Fetch returns the current credentials, refreshing first when the access
// token is within the refresh padding of its expiry. Credentials without an
// expiry date are returned as-is and never auto-refreshed.
func (p *Provider) Fetch(ctx context.Context) (credentials Credentials, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["client_id"] = credentials.ClientID
		p.observeOperation(ctx, startedAt, "fetch", err, fields)
	}()

	if p == nil {
		return Credentials{}, fmt.Errorf("core: provider is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cur, err := p.awaitCurrent(ctx)
	if err != nil {
		err = p.mapError(err)
		return Credentials{}, err
	}

	remaining, hasExpiry := cur.RemainingValidity(p.now(), p.config.RefreshPadding)
	if !hasExpiry {
		return cur, nil
	}
	if remaining > 0 {
		p.maybeRetrySave(cur)
		return cur, nil
	}

	if !cur.Refreshable() {
		err = p.mapError(newFatalError("core: static credentials have expired", AuthErrorStaticExpired))
		return Credentials{}, err
	}

	credentials, err = p.RefreshFor(ctx, cur.AccessToken)
	return credentials, err
}

// awaitCurrent resolves the credential cell. A failed refresh leaves the cell
// pointing at the failed future; readers resolve through it to the last
// settled record so the next Fetch can retry. Only an initial load failure is
// terminal for the cell.
func (p *Provider) awaitCurrent(ctx context.Context) (Credentials, error) {
	p.mu.Lock()
	future := p.current
	p.mu.Unlock()

	creds, err := future.wait(ctx)
	if err == nil {
		return creds, nil
	}
	if ctx.Err() != nil {
		return Credentials{}, err
	}
	for prev := future.prev; prev != nil; prev = prev.prev {
		if !prev.settled() {
			continue
		}
		if prev.err == nil {
			return prev.creds, nil
		}
	}
	return Credentials{}, err
}

// resolveSettled is awaitCurrent for a specific future, used by the refresh
// body which must observe the pre-refresh cell value without a caller context.
func (p *Provider) resolveSettled(future *tokenFuture) (Credentials, error) {
	<-future.done
	if future.err == nil {
		return future.creds, nil
	}
	for prev := future.prev; prev != nil; prev = prev.prev {
		if !prev.settled() {
			continue
		}
		if prev.err == nil {
			return prev.creds, nil
		}
	}
	return Credentials{}, future.err
}

func (p *Provider) mapError(err error) error {
	if err == nil {
		return nil
	}
	if p == nil || p.errorMapper == nil {
		return err
	}
	mapped := p.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
