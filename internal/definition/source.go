package definition

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const defaultHTTPTimeout = 10 * time.Second

// Source yields the raw definition document
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// HTTPSource downloads the definition document from a URL
type HTTPSource struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPSource creates a new HTTPSource
func NewHTTPSource(url string, timeout time.Duration, logger *zap.Logger) *HTTPSource {
	if timeout == 0 {
		timeout = defaultHTTPTimeout
	}

	return &HTTPSource{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Fetch downloads the document
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	s.logger.Info("Downloading calendar definition", zap.String("url", s.url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch definition: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("definition server returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	s.logger.Info("Calendar definition downloaded",
		zap.String("url", s.url),
		zap.Int("bytes", len(body)))

	return body, nil
}

// FileSource reads the definition document from a local file
type FileSource struct {
	filePath string
	logger   *zap.Logger
}

// NewFileSource creates a new FileSource
func NewFileSource(filePath string, logger *zap.Logger) *FileSource {
	return &FileSource{
		filePath: filePath,
		logger:   logger,
	}
}

// Fetch reads the file
func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}

	s.logger.Info("Calendar definition loaded from file",
		zap.String("file", s.filePath),
		zap.Int("bytes", len(data)))

	return data, nil
}

// CompositeSource tries the primary source and falls back on error
type CompositeSource struct {
	primary  Source
	fallback Source
	logger   *zap.Logger
}

// NewCompositeSource creates a new CompositeSource
func NewCompositeSource(primary, fallback Source, logger *zap.Logger) *CompositeSource {
	return &CompositeSource{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// Fetch returns the primary document, or the fallback one if the primary fails
func (s *CompositeSource) Fetch(ctx context.Context) ([]byte, error) {
	data, err := s.primary.Fetch(ctx)
	if err == nil {
		return data, nil
	}

	s.logger.Warn("Primary definition source failed, falling back",
		zap.Error(err))

	data, fallbackErr := s.fallback.Fetch(ctx)
	if fallbackErr != nil {
		return nil, fmt.Errorf("primary and fallback both failed: primary=%w, fallback=%v", err, fallbackErr)
	}
	return data, nil
}

// SnapshotSource wraps a source and writes every valid payload to disk,
// so the file can later serve as a FileSource fallback
type SnapshotSource struct {
	source    Source
	stateFile string
	logger    *zap.Logger
}

// NewSnapshotSource creates a new SnapshotSource
func NewSnapshotSource(source Source, stateFile string, logger *zap.Logger) *SnapshotSource {
	return &SnapshotSource{
		source:    source,
		stateFile: stateFile,
		logger:    logger,
	}
}

// Fetch fetches from the wrapped source and saves the payload if it is a
// complete definition. A broken payload is an error, so a CompositeSource
// falls back to the previous snapshot instead of serving it.
func (s *SnapshotSource) Fetch(ctx context.Context) ([]byte, error) {
	data, err := s.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	def, err := Parse(data)
	if err == nil {
		err = def.Validate()
	}
	if err != nil {
		s.logger.Warn("Fetched definition rejected, snapshot kept",
			zap.String("file", s.stateFile),
			zap.Error(err))
		return nil, fmt.Errorf("fetched definition rejected: %w", err)
	}

	if err := s.save(data); err != nil {
		s.logger.Warn("Failed to save definition snapshot",
			zap.String("file", s.stateFile),
			zap.Error(err))
	}
	return data, nil
}

func (s *SnapshotSource) save(data []byte) error {
	if dir := filepath.Dir(s.stateFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	tmp := s.stateFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.stateFile); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	s.logger.Info("Definition snapshot saved", zap.String("file", s.stateFile))
	return nil
}
