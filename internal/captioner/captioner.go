package captioner

import (
	"context"
	"sync"
	"time"

	"github.com/timmy/snapcaption/internal/imaging"
	"github.com/timmy/snapcaption/internal/logger"
)

// FallbackCaption is returned when the local model cannot produce a caption.
const FallbackCaption = "Unable to generate caption at this time."

// Model is one caption backend. Implementations report failures as errors;
// Captioner decides how to recover.
type Model interface {
	// Name identifies the model in stored records and API responses.
	Name() string
	// Caption produces a caption for img.
	Caption(ctx context.Context, img *imaging.NormalizedImage) (string, error)
}

// Loader is implemented by models that must load resources before their
// first inference. Load is not bounded by the inference timeout.
type Loader interface {
	Load(ctx context.Context) error
}

// Result is a generated caption and the model that produced it.
type Result struct {
	Caption  string
	Provider string
}

// Config holds Captioner timing settings.
type Config struct {
	InferenceTimeout    time.Duration
	TargetInferenceTime time.Duration
}

// Captioner owns the active model selection for the process.
//
// It starts on the remote model when one is configured. The first remote
// failure switches it permanently to the local model; the failed request is
// retried locally and the remote model is never called again.
type Captioner struct {
	local  Model
	remote Model

	mu        sync.RWMutex
	useRemote bool

	timeout time.Duration
	target  time.Duration
	logger  *logger.Logger
}

// New creates a Captioner.
// Parameters:
//   - local: local model, required.
//   - remote: remote model; nil means local only.
//   - cfg: inference timing settings.
//   - log: logger used when no request logger is in context.
// Returns:
//   - *Captioner: captioner with remote active when remote is non-nil.
func New(local, remote Model, cfg *Config, log *logger.Logger) *Captioner {
	if cfg == nil {
		cfg = &Config{}
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &Captioner{
		local:     local,
		remote:    remote,
		useRemote: remote != nil,
		timeout:   cfg.InferenceTimeout,
		target:    cfg.TargetInferenceTime,
		logger:    log,
	}
}

// ActiveProvider returns the name of the model that will serve the next request.
func (c *Captioner) ActiveProvider() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.useRemote {
		return c.remote.Name()
	}
	return c.local.Name()
}

// UsingRemote reports whether the remote model is still active.
func (c *Captioner) UsingRemote() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.useRemote
}

// Generate captions img. It never fails: remote errors trigger the permanent
// switch to the local model, and local errors yield FallbackCaption.
func (c *Captioner) Generate(ctx context.Context, img *imaging.NormalizedImage) Result {
	if c.UsingRemote() {
		caption, err := c.run(ctx, c.remote, img)
		if err == nil {
			return Result{Caption: caption, Provider: c.remote.Name()}
		}
		// The caller gave up; that says nothing about the provider.
		if ctx.Err() != nil {
			c.log(ctx).WithError(err).WithField(logger.FieldProvider, c.remote.Name()).
				Info("Caption request canceled during remote inference")
			return Result{Caption: FallbackCaption, Provider: c.remote.Name()}
		}
		c.log(ctx).WithError(err).WithField(logger.FieldProvider, c.remote.Name()).
			Warn("Remote caption provider failed, switching to local model permanently")
		c.disableRemote()
	}

	caption, err := c.run(ctx, c.local, img)
	if err != nil {
		c.log(ctx).WithError(err).WithField(logger.FieldProvider, c.local.Name()).
			Error("Local caption model failed")
		return Result{Caption: FallbackCaption, Provider: c.local.Name()}
	}
	return Result{Caption: caption, Provider: c.local.Name()}
}

func (c *Captioner) disableRemote() {
	c.mu.Lock()
	c.useRemote = false
	c.mu.Unlock()
}

// run calls m under the inference timeout and reports slow calls. Models
// that need loading are loaded first, outside the inference timeout.
func (c *Captioner) run(ctx context.Context, m Model, img *imaging.NormalizedImage) (string, error) {
	if l, ok := m.(Loader); ok {
		if err := l.Load(ctx); err != nil {
			return "", err
		}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	caption, err := m.Caption(ctx, img)
	elapsed := time.Since(start)

	entry := logger.With(logger.Fields{logger.FieldProvider: m.Name()}).WithDuration(elapsed.Milliseconds())
	if err == nil && c.target > 0 && elapsed > c.target {
		entry.Warn(ctx, "Caption inference exceeded target time of %s", c.target)
	} else {
		entry.Debug(ctx, "Caption inference finished")
	}
	return caption, err
}

func (c *Captioner) log(ctx context.Context) *logger.Logger {
	if ctx != nil {
		if l := logger.FromContext(ctx); l != logger.GetDefault() {
			return l
		}
	}
	return c.logger
}
