package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/freightdocs/internal/model"
)

const (
	DefaultMaxRetries          = 3
	DefaultRetryDelay          = time.Second
	DefaultConfidenceThreshold = 0.7
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidType      = errors.New("invalid document type")
)

// ClassificationError reports that every attempt failed. It unwraps to the last attempt's error.
type ClassificationError struct {
	Attempts int
	Err      error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// URLSigner hands out a short-lived URL the classifier can fetch the object from.
type URLSigner interface {
	PresignGet(ctx context.Context, key string) (string, error)
}

// DocumentWriter persists a classification and its history entry together.
type DocumentWriter interface {
	ApplyClassification(id string, c model.Classification) (*model.Document, error)
}

type Config struct {
	MaxRetries          int
	RetryDelay          time.Duration
	ConfidenceThreshold float64
}

// Outcome is a successful classification and the document row it produced.
type Outcome struct {
	Result   Result
	Source   string
	Attempts int
	Document *model.Document
}

type Service struct {
	classifier Classifier
	signer     URLSigner
	docs       DocumentWriter
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(classifier Classifier, signer URLSigner, docs DocumentWriter, cfg Config, logger *slog.Logger) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		classifier: classifier,
		signer:     signer,
		docs:       docs,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	return c
}

// WorstCase is the longest ClassifyWithRetry can run when every attempt uses
// its full requestTimeout: all attempts plus the linear sleeps between them.
func (c Config) WorstCase(requestTimeout time.Duration) time.Duration {
	c = c.withDefaults()
	d := time.Duration(c.MaxRetries) * requestTimeout
	for n := 1; n < c.MaxRetries; n++ {
		d += c.RetryDelay * time.Duration(n)
	}
	return d
}

// linearBackoff waits base*n after the nth failed attempt and stops after
// maxAttempts attempts in total.
func linearBackoff(base time.Duration, maxAttempts int) retry.Backoff {
	var n int64
	b := retry.BackoffFunc(func() (time.Duration, bool) {
		n++
		return base * time.Duration(n), false
	})
	return retry.WithMaxRetries(uint64(maxAttempts-1), b)
}

// ClassifyWithRetry classifies doc, retrying any failure with a linear backoff.
// On success the document row and a history entry are written together. When
// every attempt fails nothing is written and a *ClassificationError is returned.
// storagePath, when non-empty, overrides the document's own storage path.
func (s *Service) ClassifyWithRetry(ctx context.Context, doc *model.Document, storagePath string) (*Outcome, error) {
	if storagePath == "" {
		storagePath = doc.StoragePath
	}
	url, err := s.signer.PresignGet(ctx, storagePath)
	if err != nil {
		return nil, fmt.Errorf("presign document url: %w", err)
	}

	var (
		attempts int
		res      Result
	)
	err = retry.Do(ctx, linearBackoff(s.cfg.RetryDelay, s.cfg.MaxRetries), func(ctx context.Context) error {
		attempts++
		r, err := s.classifier.Classify(ctx, url)
		if err != nil {
			s.logger.Warn("classification attempt failed",
				"document_id", doc.ID, "attempt", attempts, "max_attempts", s.cfg.MaxRetries, "error", err)
			return retry.RetryableError(err)
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, &ClassificationError{Attempts: attempts, Err: err}
	}

	source := model.SourceOpenAI
	if attempts > 1 {
		source = model.SourceOpenAIRetry
	}
	status := model.DocStatusProcessed
	if res.Confidence >= s.cfg.ConfidenceThreshold {
		status = model.DocStatusClassified
	}

	updated, err := s.docs.ApplyClassification(doc.ID, model.Classification{
		Type:       res.Type,
		Confidence: res.Confidence,
		Reason:     res.Reason,
		Source:     source,
		Status:     status,
		At:         s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("save classification: %w", err)
	}
	if updated == nil {
		return nil, ErrDocumentNotFound
	}

	s.logger.Info("document classified",
		"document_id", doc.ID, "type", res.Type, "confidence", res.Confidence, "source", source, "attempts", attempts)

	return &Outcome{Result: res, Source: source, Attempts: attempts, Document: updated}, nil
}

// Reclassify records a manual correction by userID.
func (s *Service) Reclassify(docID, docType, reason string, userID int64) (*model.Document, error) {
	if !model.ValidDocTypes[docType] {
		return nil, ErrInvalidType
	}
	updated, err := s.docs.ApplyClassification(docID, model.Classification{
		Type:       docType,
		Confidence: 1.0,
		Reason:     reason,
		Source:     model.SourceManual,
		Status:     model.DocStatusClassified,
		ChangedBy:  &userID,
		At:         s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("save reclassification: %w", err)
	}
	if updated == nil {
		return nil, ErrDocumentNotFound
	}
	return updated, nil
}
