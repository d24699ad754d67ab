package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/themesync/pkg/models"
	"github.com/openfroyo/themesync/pkg/telemetry"
)

// ErrUnknownAction is returned by OnAction for actions it does not handle.
var ErrUnknownAction = errors.New("unknown theme action")

// Cache partitions reported by the cached_themes gauge.
const (
	partitionCatalog   = "wpcom"
	partitionInstalled = "installed"
)

// ThemeStore routes theme intents to the gateway, reconciles completions
// into the cache and emits exactly one notification per intent.
type ThemeStore struct {
	gateway    Gateway
	cache      Cache
	emitter    Emitter
	dispatcher Dispatcher

	// async runs a gateway call off the caller's goroutine.
	async func(func())

	logger  zerolog.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer

	registerOnce sync.Once
}

// Option configures a ThemeStore.
type Option func(*ThemeStore)

// WithLogger sets the store logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *ThemeStore) {
		s.logger = logger.With().Str("component", "theme_store").Logger()
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *ThemeStore) {
		s.metrics = m
	}
}

// WithTracer sets the tracer used for action and remote call spans.
func WithTracer(t *telemetry.Tracer) Option {
	return func(s *ThemeStore) {
		s.tracer = t
	}
}

// WithDispatcher routes completions through d instead of handling them inline.
func WithDispatcher(d Dispatcher) Option {
	return func(s *ThemeStore) {
		s.dispatcher = d
	}
}

// WithAsync replaces the function used to run gateway calls. Tests pass a
// function that runs f inline.
func WithAsync(async func(f func())) Option {
	return func(s *ThemeStore) {
		if async != nil {
			s.async = async
		}
	}
}

// NewThemeStore creates a store over the given collaborators. A nil emitter
// discards notifications.
func NewThemeStore(gateway Gateway, cache Cache, emitter Emitter, opts ...Option) *ThemeStore {
	s := &ThemeStore{
		gateway: gateway,
		cache:   cache,
		emitter: emitter,
		async:   func(f func()) { go f() },
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.emitter == nil {
		s.emitter = EmitterFunc(func(context.Context, Event) {})
	}
	return s
}

// SetDispatcher attaches the dispatcher after construction. The dispatcher
// usually wraps the store, so it cannot always be passed as an option.
func (s *ThemeStore) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// Register logs the store's registration once.
func (s *ThemeStore) Register() {
	s.registerOnce.Do(func() {
		s.logger.Info().Msg("ThemeStore onRegister")
	})
}

// OnAction handles one intent. Intents that need the remote source return
// as soon as the gateway call is scheduled; everything else, including
// capability rejections, completes before OnAction returns.
func (s *ThemeStore) OnAction(ctx context.Context, action Action) error {
	if action == nil {
		return fmt.Errorf("%w: nil", ErrUnknownAction)
	}

	ctx, span := s.tracer.StartActionSpan(ctx, string(action.Type()))
	defer span.End()

	s.metrics.RecordAction(string(action.Type()))
	s.logger.Debug().Str("action", string(action.Type())).Msg("Handling action")

	switch a := action.(type) {
	case FetchWPComThemes:
		s.fetchWPComThemes(ctx)
	case FetchedWPComThemes:
		s.handleWPComThemesFetched(ctx, a.Payload)
	case FetchInstalledThemes:
		s.fetchInstalledThemes(ctx, a.Site)
	case FetchedInstalledThemes:
		s.handleInstalledThemesFetched(ctx, a.Payload)
	case FetchCurrentTheme:
		s.fetchCurrentTheme(ctx, a.Site)
	case FetchedCurrentTheme:
		s.handleCurrentThemeFetched(ctx, a.Payload)
	case SearchThemes:
		s.searchThemes(ctx, a.SearchTerm)
	case SearchedThemes:
		s.handleSearchedThemes(ctx, a.Payload)
	case ActivateTheme:
		s.activateTheme(ctx, orEmpty(a.Payload))
	case ActivatedTheme:
		s.handleThemeActivated(ctx, orFailed(a.Payload))
	case InstallTheme:
		s.installTheme(ctx, orEmpty(a.Payload))
	case InstalledTheme:
		s.handleThemeInstalled(ctx, orFailed(a.Payload))
	case DeleteTheme:
		s.deleteTheme(ctx, orEmpty(a.Payload))
	case DeletedTheme:
		s.handleThemeDeleted(ctx, orFailed(a.Payload))
	case RemoveTheme:
		s.removeTheme(ctx, a.Theme)
	case RemoveSiteThemes:
		s.removeSiteThemes(ctx, a.Site)
	default:
		err := fmt.Errorf("%w: %s", ErrUnknownAction, action.Type())
		telemetry.RecordError(span, err)
		return err
	}
	return nil
}

func orEmpty(p *ThemePayload) *ThemePayload {
	if p == nil {
		return &ThemePayload{}
	}
	return p
}

func orFailed(p *ThemePayload) *ThemePayload {
	if p == nil {
		return &ThemePayload{Error: errEmptyCompletion}
	}
	return p
}

// remote runs call on the async runner and feeds its completion back in.
// The call outlives ctx's cancellation: once started an intent runs to
// completion or failure.
func (s *ThemeStore) remote(ctx context.Context, op Operation, site *models.Site, call func(ctx context.Context) Action) {
	ctx = context.WithoutCancel(ctx)
	s.async(func() {
		callCtx, span := s.tracer.StartRemoteSpan(ctx, string(op), site.LocalID())
		start := time.Now()
		completion := call(callCtx)
		themesErr := completionError(completion)
		failed := themesErr != nil
		s.metrics.RecordRemoteCall(string(op), time.Since(start), failed)
		if failed {
			span.SetAttributes(telemetry.AttrErrorType.String(string(themesErr.Type)))
			telemetry.RecordError(span, themesErr)
		} else {
			telemetry.RecordSuccess(span)
		}
		span.End()

		s.complete(ctx, completion)
	})
}

// complete hands a completion to the dispatcher, or handles it inline when
// there is none or it has been stopped.
func (s *ThemeStore) complete(ctx context.Context, completion Action) {
	if s.dispatcher != nil {
		err := s.dispatcher.DispatchCompletion(completion)
		if err == nil {
			return
		}
		s.logger.Warn().Err(err).Str("action", string(completion.Type())).
			Msg("Dispatcher refused completion, handling inline")
	}
	if err := s.OnAction(ctx, completion); err != nil {
		s.logger.Error().Err(err).Msg("Failed to handle completion")
	}
}

// reject completes op locally with the gate's error.
func (s *ThemeStore) reject(ctx context.Context, op Operation, site *models.Site, completion Action) {
	s.metrics.RecordRejection(string(op))
	s.logger.Debug().
		Str("operation", string(op)).
		Int64("site_id", site.LocalID()).
		Msg("Operation not available for site")
	if err := s.OnAction(ctx, completion); err != nil {
		s.logger.Error().Err(err).Msg("Failed to handle rejected completion")
	}
}

func completionError(a Action) *ThemesError {
	switch c := a.(type) {
	case FetchedWPComThemes:
		if c.Payload == nil {
			return errEmptyCompletion
		}
		return c.Payload.Error
	case FetchedInstalledThemes:
		if c.Payload == nil {
			return errEmptyCompletion
		}
		return c.Payload.Error
	case FetchedCurrentTheme:
		if c.Payload == nil {
			return errEmptyCompletion
		}
		return c.Payload.Error
	case SearchedThemes:
		if c.Payload == nil {
			return errEmptyCompletion
		}
		return c.Payload.Error
	case ActivatedTheme:
		if c.Payload == nil {
			return errEmptyCompletion
		}
		return c.Payload.Error
	case InstalledTheme:
		if c.Payload == nil {
			return errEmptyCompletion
		}
		return c.Payload.Error
	case DeletedTheme:
		if c.Payload == nil {
			return errEmptyCompletion
		}
		return c.Payload.Error
	default:
		return nil
	}
}

var errEmptyCompletion = NewThemesError(ErrorTypeGeneric, "gateway returned no payload")

func (s *ThemeStore) emit(ctx context.Context, event Event) {
	failed := event.Err() != nil
	s.metrics.RecordNotification(string(event.Name()), failed)

	l := s.logger.Debug()
	if failed {
		s.metrics.RecordError(string(event.Err().Type))
		l = s.logger.Warn().Str("error_type", string(event.Err().Type)).Str("error", event.Err().Message)
	}
	if site := SiteOf(event); site != nil {
		l = l.Int64("site_id", site.ID)
	}
	if theme := ThemeOf(event); theme != nil {
		l = l.Str("theme_id", theme.ThemeID)
	}
	l.Str("event", string(event.Name())).Msg("Emitting notification")

	s.emitter.Emit(ctx, event)
}

// Intents

func (s *ThemeStore) fetchWPComThemes(ctx context.Context) {
	s.remote(ctx, OpFetchWPComThemes, nil, func(ctx context.Context) Action {
		return FetchedWPComThemes{Payload: s.gateway.FetchWPComThemes(ctx)}
	})
}

func (s *ThemeStore) fetchInstalledThemes(ctx context.Context, site *models.Site) {
	if d := Decide(OpFetchInstalledThemes, site); !d.Proceeds() {
		s.reject(ctx, OpFetchInstalledThemes, site,
			FetchedInstalledThemes{Payload: &FetchedThemesPayload{Site: site, Error: d.Error()}})
		return
	}
	s.remote(ctx, OpFetchInstalledThemes, site, func(ctx context.Context) Action {
		return FetchedInstalledThemes{Payload: s.gateway.FetchInstalledThemes(ctx, site)}
	})
}

func (s *ThemeStore) fetchCurrentTheme(ctx context.Context, site *models.Site) {
	if d := Decide(OpFetchCurrentTheme, site); !d.Proceeds() {
		s.reject(ctx, OpFetchCurrentTheme, site,
			FetchedCurrentTheme{Payload: &FetchedCurrentThemePayload{Site: site, Error: d.Error()}})
		return
	}
	s.remote(ctx, OpFetchCurrentTheme, site, func(ctx context.Context) Action {
		return FetchedCurrentTheme{Payload: s.gateway.FetchCurrentTheme(ctx, site)}
	})
}

func (s *ThemeStore) searchThemes(ctx context.Context, searchTerm string) {
	s.remote(ctx, OpSearchThemes, nil, func(ctx context.Context) Action {
		return SearchedThemes{Payload: s.gateway.SearchThemes(ctx, searchTerm)}
	})
}

func (s *ThemeStore) activateTheme(ctx context.Context, p *ThemePayload) {
	if d := Decide(OpActivateTheme, p.Site); !d.Proceeds() {
		s.reject(ctx, OpActivateTheme, p.Site,
			ActivatedTheme{Payload: &ThemePayload{Site: p.Site, Theme: p.Theme, Error: d.Error()}})
		return
	}
	s.remote(ctx, OpActivateTheme, p.Site, func(ctx context.Context) Action {
		return ActivatedTheme{Payload: s.gateway.ActivateTheme(ctx, p.Site, p.Theme)}
	})
}

func (s *ThemeStore) installTheme(ctx context.Context, p *ThemePayload) {
	if d := Decide(OpInstallTheme, p.Site); !d.Proceeds() {
		s.reject(ctx, OpInstallTheme, p.Site,
			InstalledTheme{Payload: &ThemePayload{Site: p.Site, Theme: p.Theme, Error: d.Error()}})
		return
	}
	s.remote(ctx, OpInstallTheme, p.Site, func(ctx context.Context) Action {
		return InstalledTheme{Payload: s.gateway.InstallTheme(ctx, p.Site, p.Theme)}
	})
}

func (s *ThemeStore) deleteTheme(ctx context.Context, p *ThemePayload) {
	if d := Decide(OpDeleteTheme, p.Site); !d.Proceeds() {
		s.reject(ctx, OpDeleteTheme, p.Site,
			DeletedTheme{Payload: &ThemePayload{Site: p.Site, Theme: p.Theme, Error: d.Error()}})
		return
	}
	s.remote(ctx, OpDeleteTheme, p.Site, func(ctx context.Context) Action {
		return DeletedTheme{Payload: s.gateway.DeleteTheme(ctx, p.Site, p.Theme)}
	})
}

func (s *ThemeStore) removeTheme(ctx context.Context, theme *models.Theme) {
	event := OnThemeRemoved{Theme: theme}
	if theme != nil {
		if err := s.cache.RemoveTheme(ctx, theme); err != nil {
			event.Error = persistError("theme removal", err)
		}
	}
	s.emit(ctx, event)
}

func (s *ThemeStore) removeSiteThemes(ctx context.Context, site *models.Site) {
	event := OnThemesChanged{Site: site, Origin: ActionRemoveSiteThemes}
	if site != nil {
		removed, err := s.cache.RemoveAllThemesForSite(ctx, site)
		if err != nil {
			event.Error = persistError("site theme removal", err)
		} else {
			s.logger.Debug().Int64("site_id", site.ID).Int64("removed", removed).Msg("Removed site themes")
		}
	}
	s.emit(ctx, event)
}

// Completions

func (s *ThemeStore) handleWPComThemesFetched(ctx context.Context, p *FetchedThemesPayload) {
	if p == nil {
		p = &FetchedThemesPayload{Error: errEmptyCompletion}
	}
	event := OnThemesChanged{Site: p.Site, Origin: ActionFetchWPComThemes}
	if p.IsError() {
		event.Error = p.Error
	} else if err := s.cache.ReplaceCatalogThemes(ctx, p.Themes); err != nil {
		event.Error = persistError("catalog themes", err)
	} else {
		s.metrics.SetCachedThemes(partitionCatalog, 0, len(p.Themes))
	}
	s.emit(ctx, event)
}

func (s *ThemeStore) handleInstalledThemesFetched(ctx context.Context, p *FetchedThemesPayload) {
	if p == nil {
		p = &FetchedThemesPayload{Error: errEmptyCompletion}
	}
	event := OnThemesChanged{Site: p.Site, Origin: ActionFetchInstalledThemes}
	if p.IsError() {
		event.Error = p.Error
	} else if err := s.cache.ReplaceInstalledThemes(ctx, p.Site, p.Themes); err != nil {
		event.Error = persistError("installed themes", err)
	} else {
		s.metrics.SetCachedThemes(partitionInstalled, p.Site.LocalID(), len(p.Themes))
	}
	s.emit(ctx, event)
}

func (s *ThemeStore) handleCurrentThemeFetched(ctx context.Context, p *FetchedCurrentThemePayload) {
	if p == nil {
		p = &FetchedCurrentThemePayload{Error: errEmptyCompletion}
	}
	event := OnCurrentThemeFetched{Site: p.Site, Theme: p.Theme, Error: p.Error}
	if !p.IsError() && p.Theme != nil {
		if err := s.cache.SetActiveTheme(ctx, p.Site, p.Theme); err != nil {
			event.Error = persistError("current theme", err)
		}
	}
	s.emit(ctx, event)
}

func (s *ThemeStore) handleSearchedThemes(ctx context.Context, p *SearchedThemesPayload) {
	if p == nil {
		p = &SearchedThemesPayload{Error: errEmptyCompletion}
	}
	event := OnThemesSearched{SearchTerm: p.SearchTerm, Results: p.Themes, Error: p.Error}
	if !p.IsError() {
		for _, theme := range p.Themes {
			if theme == nil {
				continue
			}
			if err := s.cache.UpsertTheme(ctx, theme); err != nil {
				event.Error = persistError("search result "+theme.ThemeID, err)
				break
			}
		}
	}
	s.emit(ctx, event)
}

func (s *ThemeStore) handleThemeActivated(ctx context.Context, p *ThemePayload) {
	event := OnThemeActivated{Site: p.Site, Theme: p.Theme, Error: p.Error}
	if !p.IsError() && p.Theme != nil {
		activated, err := s.lookupActivatedTheme(ctx, p.Site, p.Theme.ThemeID)
		switch {
		case err != nil:
			event.Error = persistError("activated theme", err)
		case activated == nil:
			s.logger.Debug().
				Int64("site_id", p.Site.LocalID()).
				Str("theme_id", p.Theme.ThemeID).
				Msg("Activated theme not cached, skipping active flag")
		default:
			if err := s.cache.SetActiveTheme(ctx, p.Site, activated); err != nil {
				event.Error = persistError("activated theme", err)
			}
		}
	}
	s.emit(ctx, event)
}

// lookupActivatedTheme finds the full cached copy of an activated theme. A
// self-hosted site's copy comes from the catalog and is rebound to the site.
func (s *ThemeStore) lookupActivatedTheme(ctx context.Context, site *models.Site, themeID string) (*models.Theme, error) {
	if site.IsJetpackConnected() {
		return s.cache.GetThemeByID(ctx, themeID, false)
	}
	theme, err := s.cache.GetThemeByID(ctx, themeID, true)
	if err != nil || theme == nil {
		return nil, err
	}
	return theme.ForSite(site), nil
}

func (s *ThemeStore) handleThemeInstalled(ctx context.Context, p *ThemePayload) {
	event := OnThemeInstalled{Site: p.Site, Theme: p.Theme, Error: p.Error}
	if !p.IsError() && p.Theme != nil {
		if err := s.cache.UpsertTheme(ctx, p.Theme.ForSite(p.Site)); err != nil {
			event.Error = persistError("installed theme", err)
		}
	}
	s.emit(ctx, event)
}

func (s *ThemeStore) handleThemeDeleted(ctx context.Context, p *ThemePayload) {
	event := OnThemeDeleted{Site: p.Site, Theme: p.Theme, Error: p.Error}
	if !p.IsError() && p.Theme != nil {
		if err := s.cache.RemoveTheme(ctx, p.Theme.ForSite(p.Site)); err != nil {
			event.Error = persistError("theme deletion", err)
		}
	}
	s.emit(ctx, event)
}

// Queries. These read and write the cache directly and never emit.

// GetWPComThemes returns the catalog partition.
func (s *ThemeStore) GetWPComThemes(ctx context.Context) ([]*models.Theme, error) {
	return s.cache.GetWPComThemes(ctx)
}

// GetWPComThemeByThemeID returns the catalog theme with the given id, or nil
// if it is not cached or the id is blank.
func (s *ThemeStore) GetWPComThemeByThemeID(ctx context.Context, themeID string) (*models.Theme, error) {
	if strings.TrimSpace(themeID) == "" {
		return nil, nil
	}
	return s.cache.GetThemeByID(ctx, themeID, true)
}

// GetThemesForSite returns every cached theme bound to the site.
func (s *ThemeStore) GetThemesForSite(ctx context.Context, site *models.Site) ([]*models.Theme, error) {
	return s.cache.GetThemesForSite(ctx, site)
}

// GetInstalledThemeByThemeID returns an installed theme with the given id,
// or nil if it is not cached or the id is blank.
func (s *ThemeStore) GetInstalledThemeByThemeID(ctx context.Context, themeID string) (*models.Theme, error) {
	if strings.TrimSpace(themeID) == "" {
		return nil, nil
	}
	return s.cache.GetThemeByID(ctx, themeID, false)
}

// GetActiveThemeForSite returns the site's active theme, or nil.
func (s *ThemeStore) GetActiveThemeForSite(ctx context.Context, site *models.Site) (*models.Theme, error) {
	return s.cache.GetActiveTheme(ctx, site)
}

// SetActiveThemeForSite marks theme as the site's only active theme.
func (s *ThemeStore) SetActiveThemeForSite(ctx context.Context, site *models.Site, theme *models.Theme) error {
	if site == nil || theme == nil {
		return errors.New("site and theme are required")
	}
	return s.cache.SetActiveTheme(ctx, site, theme)
}
