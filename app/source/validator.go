package source

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/newssift/newssift/app/store"
)

// FreshnessWindow is how long a cached valid verdict for a
// network-probed source is trusted before re-probing. Cheap kinds are
// validated once and trusted indefinitely.
const FreshnessWindow = 6 * time.Hour

// Validator decides per cycle whether a source is worth invoking,
// caching the verdict on the descriptor so healthy sources are not
// re-probed every cycle and broken endpoints are not hammered.
type Validator struct {
	registry *Registry
	now      func() time.Time
}

func NewValidator(registry *Registry) *Validator {
	return &Validator{registry: registry, now: time.Now}
}

// Run refreshes stale verdicts in place and reports whether anything
// changed (so the caller can persist the cache). Cached invalid
// verdicts are not retried; clearing the cache (config edit, explicit
// re-test) is the only way back.
func (v *Validator) Run(ctx context.Context, sources []store.SourceDescriptor) ([]store.SourceDescriptor, bool) {
	changed := false
	now := v.now().UTC()

	for i := range sources {
		desc := &sources[i]
		if !desc.Enabled {
			continue
		}

		if !v.needsValidation(*desc, now) {
			if desc.ValidationStatus == store.ValidationInvalid {
				slog.Warn("Using cached invalid verdict",
					"source", desc.Name, "error", desc.ValidationError)
			}
			continue
		}

		v.validate(ctx, desc, now)
		changed = true
	}

	return sources, changed
}

func (v *Validator) needsValidation(desc store.SourceDescriptor, now time.Time) bool {
	if desc.ValidationStatus == store.ValidationUnknown || desc.ValidatedAt == nil {
		return true
	}
	if desc.ValidationStatus == store.ValidationInvalid {
		return false
	}
	if NetworkProbed(desc.Kind) {
		return now.Sub(*desc.ValidatedAt) > FreshnessWindow
	}
	return false
}

func (v *Validator) validate(ctx context.Context, desc *store.SourceDescriptor, now time.Time) {
	fetcher, err := v.registry.New(*desc)
	if err != nil {
		if errors.Is(err, ErrUnknownKind) {
			slog.Warn("Skipping source with unknown kind", "source", desc.Name, "kind", desc.Kind)
		}
		desc.ValidationStatus = store.ValidationInvalid
		desc.ValidatedAt = &now
		desc.ValidationError = err.Error()
		return
	}

	if err := fetcher.ValidateConfig(ctx); err != nil {
		slog.Warn("Source validation failed", "source", desc.Name, "error", err)
		desc.ValidationStatus = store.ValidationInvalid
		desc.ValidatedAt = &now
		desc.ValidationError = err.Error()
		return
	}

	slog.Debug("Source validated", "source", desc.Name, "kind", desc.Kind)
	desc.ValidationStatus = store.ValidationValid
	desc.ValidatedAt = &now
	desc.ValidationError = ""
}

// Usable reports whether the orchestrator should invoke the source
// this cycle. Sources with a cached invalid verdict stay visible to
// operators but are excluded from the worklist.
func Usable(desc store.SourceDescriptor) bool {
	return desc.Enabled && desc.ValidationStatus == store.ValidationValid
}

// ClearValidation resets the cached verdict, forcing re-validation on
// the next cycle. Called on configuration edits and explicit re-tests.
func ClearValidation(desc *store.SourceDescriptor) {
	desc.ValidationStatus = store.ValidationUnknown
	desc.ValidatedAt = nil
	desc.ValidationError = ""
}
