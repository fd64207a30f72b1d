package definition

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Loader fetches and parses the definition once per process. Build one at
// startup and hand it to whatever needs the definition.
type Loader struct {
	source Source
	logger *zap.Logger

	once sync.Once
	def  *Definition
	err  error
}

// NewLoader creates a new Loader
func NewLoader(source Source, logger *zap.Logger) *Loader {
	return &Loader{
		source: source,
		logger: logger,
	}
}

// Load returns the parsed definition, fetching it on the first call.
// Later calls return the first result, including a failure.
func (l *Loader) Load(ctx context.Context) (*Definition, error) {
	l.once.Do(func() {
		l.def, l.err = l.load(ctx)
	})
	return l.def, l.err
}

func (l *Loader) load(ctx context.Context) (*Definition, error) {
	data, err := l.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch definition: %w", err)
	}

	def, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	l.logger.Info("Calendar definition loaded",
		zap.String("name", def.Name()),
		zap.String("start_date", def.StartDate().Format("2006-01-02")),
		zap.String("end_date", def.EndDate().Format("2006-01-02")),
		zap.Int("cycle_size", def.CycleSize()),
		zap.Int("exclusions", len(def.exclusions)),
		zap.Int("overrides", len(def.overrides)))

	return def, nil
}
