// Package engine keeps a local theme cache in step with a remote theme source.
//
// # Overview
//
// ThemeStore accepts a closed set of intents (fetch the catalog, fetch a
// site's installed themes, fetch its current theme, search, activate,
// install, delete, and two local-only removals). Each intent either goes to
// the remote Gateway or is rejected locally by the capability gate. Either
// way it ends in a completion that is reconciled into the Cache, followed by
// exactly one notification on the Emitter.
//
//	intent ──▶ capability gate ──▶ Gateway (async) ──▶ completion
//	               │                                      │
//	               └── NOT_AVAILABLE completion ──────────┤
//	                                                      ▼
//	                                      Cache reconcile ──▶ notification
//
// # Capability Gate
//
// Decide is a pure function of the operation and two site flags:
//
//   - installed themes, install and delete need Jetpack and the REST API
//   - current theme and activation need the REST API
//   - catalog fetch, search and local removals are always allowed
//
// A rejected intent produces the same notification type as a remote failure,
// with ErrorTypeNotAvailable.
//
// # Reconciliation
//
//   - catalog fetch replaces the catalog partition
//   - installed fetch replaces the site's installed partition
//   - current theme becomes the site's single active theme
//   - search results are upserted one by one
//   - activation re-reads the full theme from the cache, from the installed
//     partition on Jetpack sites and from the catalog otherwise, and marks it
//     active; a theme missing from the cache is skipped without failing
//   - install stores a site-bound copy with the catalog flag cleared
//   - delete and remove drop the row; remove-site drops every row of the site
//
// A cache write failure turns a successful completion into a GENERIC_ERROR
// notification.
//
// # Concurrency
//
// ActionDispatcher serializes actions through one worker. Gateway calls run
// on their own goroutines and their completions re-enter the dispatcher, so
// completions for one site are applied in arrival order. Bus delivers
// notifications synchronously after the cache has been updated.
//
// # Example Usage
//
//	bus := engine.NewBus(logger)
//	store := engine.NewThemeStore(gateway, cache, bus, engine.WithLogger(logger))
//	dispatcher := engine.NewActionDispatcher(store, 256, logger, metrics)
//	store.SetDispatcher(dispatcher)
//	_ = dispatcher.Start(ctx)
//
//	done := bus.Await(ctx, engine.FilterByName(engine.EventThemeActivated))
//	_ = dispatcher.Dispatch(engine.ActivateTheme{Payload: engine.NewThemePayload(site, theme)})
//	event := <-done
package engine
