package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ThanosKa/magic-room-sub001/internal/inference"
	"github.com/ThanosKa/magic-room-sub001/internal/ledger"
	"github.com/ThanosKa/magic-room-sub001/internal/models"
	"github.com/ThanosKa/magic-room-sub001/internal/ratelimit"
)

var ErrInsufficientCredits = errors.New("insufficient credits")

// RateLimitError carries the window reset time back to the handler.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return "rate limit exceeded"
}

// GenerationError wraps a provider failure after the deducted credits have
// been refunded.
type GenerationError struct {
	Cause string
}

func (e *GenerationError) Error() string {
	return e.Cause
}

type RateLimiter interface {
	Check(ctx context.Context, userID string) ratelimit.Result
}

type Generator interface {
	Generate(ctx context.Context, in inference.GenerateInput) ([]string, error)
}

type ObjectStore interface {
	Upload(ctx context.Context, data []byte, contentType, bucket string) (url, path string, err error)
	Delete(ctx context.Context, path string) error
}

type Request struct {
	ImageData    []byte
	ContentType  string
	RoomType     string
	Theme        string
	Quality      string
	CustomPrompt string
}

type Result struct {
	GenerationID string
	OutputURLs   []string
	Remaining    int
}

// Orchestrator runs the credit-guarded generation flow: validate, check
// balance, rate limit, deduct, call the provider, reconcile.
type Orchestrator struct {
	generations Repository
	ledger      *ledger.Service
	limiter     RateLimiter
	generator   Generator
	store       ObjectStore
}

func NewOrchestrator(generations Repository, ledgerSvc *ledger.Service, limiter RateLimiter, generator Generator, store ObjectStore) *Orchestrator {
	return &Orchestrator{
		generations: generations,
		ledger:      ledgerSvc,
		limiter:     limiter,
		generator:   generator,
		store:       store,
	}
}

// Generate executes one generation request for an already-resolved user.
//
// Credits are deducted before the provider call and refunded on failure as a
// compensating action: deduct-on-confirmed-success would let a burst of
// concurrent requests all pass the balance check before any decrement lands.
func (o *Orchestrator) Generate(ctx context.Context, user *models.User, req Request) (*Result, error) {
	if req.Quality == "" {
		req.Quality = QualityStandard
	}
	if err := validateRequest(req.RoomType, req.Theme, req.Quality); err != nil {
		return nil, err
	}
	if len(req.ImageData) == 0 {
		return nil, &ValidationError{Field: "base64Image", Message: "image is required"}
	}

	cost := CostFor(req.Quality)

	// Cheap read-only check first so a broke user causes no side effects at
	// all; the conditional deduct below is the authoritative guard.
	if user.Credits < cost {
		return nil, ErrInsufficientCredits
	}

	rl := o.limiter.Check(ctx, user.ID)
	if !rl.Allowed {
		return nil, &RateLimitError{ResetAt: rl.ResetAt}
	}

	ok, err := o.ledger.Deduct(ctx, user.ID, cost)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInsufficientCredits
	}

	genID := uuid.NewString()
	meta := map[string]string{"generation_id": genID}
	if err := o.ledger.Record(ctx, user.ID, models.TransactionUsage, cost, "", meta); err != nil {
		// The ledger row is money-equivalent state; without it the request
		// must not proceed to bill the provider. Restore the balance so the
		// failure leaves no rows and no net change.
		if creditErr := o.ledger.Credit(ctx, user.ID, cost); creditErr != nil {
			log.Error().Err(creditErr).Str("user_id", user.ID).Int("amount", cost).
				Msg("failed to restore credits after record failure, user is under-credited")
		}
		return nil, fmt.Errorf("record usage transaction: %w", err)
	}

	sourceURL, sourcePath, err := o.store.Upload(ctx, req.ImageData, req.ContentType, "")
	if err != nil {
		o.refundOrLog(ctx, user.ID, cost, genID)
		return nil, fmt.Errorf("upload source image: %w", err)
	}

	gen := &models.Generation{
		ID:         genID,
		UserID:     user.ID,
		Status:     models.GenerationStarting,
		RoomType:   req.RoomType,
		Theme:      req.Theme,
		Quality:    req.Quality,
		Prompt:     BuildPrompt(req.RoomType, req.Theme, req.Quality, req.CustomPrompt),
		SourcePath: sourcePath,
	}
	if err := o.generations.Create(ctx, gen); err != nil {
		o.refundOrLog(ctx, user.ID, cost, genID)
		return nil, fmt.Errorf("create generation record: %w", err)
	}

	numOutputs := 1
	if req.Quality == QualityPremium {
		numOutputs = 2
	}

	outputs, err := o.generator.Generate(ctx, inference.GenerateInput{
		GenerationID: genID,
		ImageURL:     sourceURL,
		Prompt:       gen.Prompt,
		NumOutputs:   numOutputs,
	})
	if err != nil {
		if updateErr := o.generations.Complete(ctx, genID, models.GenerationFailed, nil, err.Error()); updateErr != nil {
			log.Error().Err(updateErr).Str("generation_id", genID).Msg("failed to mark generation failed")
		}
		o.refundOrLog(ctx, user.ID, cost, genID)
		return nil, &GenerationError{Cause: err.Error()}
	}

	if err := o.generations.Complete(ctx, genID, models.GenerationSucceeded, outputs, ""); err != nil {
		log.Error().Err(err).Str("generation_id", genID).Msg("failed to mark generation succeeded")
	}
	o.cleanupSource(ctx, genID, sourcePath)

	return &Result{
		GenerationID: genID,
		OutputURLs:   outputs,
		Remaining:    user.Credits - cost,
	}, nil
}

// Get returns a generation owned by the given user.
func (o *Orchestrator) Get(ctx context.Context, userID, genID string) (*models.Generation, error) {
	gen, err := o.generations.GetByID(ctx, genID)
	if err != nil {
		return nil, err
	}
	if gen.UserID != userID {
		return nil, ErrNotFound
	}
	return gen, nil
}

// HandleCompletion applies an asynchronous provider status report. Terminal
// local records are left untouched so a late or replayed webhook can never
// refund twice.
func (o *Orchestrator) HandleCompletion(ctx context.Context, genID string, pred *inference.Prediction) error {
	gen, err := o.generations.GetByID(ctx, genID)
	if err != nil {
		return err
	}
	if gen.Status.Terminal() {
		return nil
	}

	switch pred.Status {
	case "starting", "processing":
		return o.generations.SetStatus(ctx, genID, models.GenerationProcessing)
	case "succeeded":
		if len(pred.Output) == 0 {
			return o.failAndRefund(ctx, gen, "prediction succeeded with no output")
		}
		if err := o.generations.Complete(ctx, genID, models.GenerationSucceeded, pred.Output, ""); err != nil {
			return err
		}
		o.cleanupSource(ctx, genID, gen.SourcePath)
		return nil
	case "failed":
		msg := pred.Error
		if msg == "" {
			msg = "prediction failed"
		}
		return o.failAndRefund(ctx, gen, msg)
	case "canceled":
		if err := o.refund(ctx, gen.UserID, CostFor(gen.Quality), genID); err != nil {
			return err
		}
		return o.generations.Complete(ctx, genID, models.GenerationCanceled, nil, pred.Error)
	default:
		return fmt.Errorf("unknown prediction status %q", pred.Status)
	}
}

// failAndRefund refunds before the terminal write: a failed refund leaves
// the record non-terminal, so the provider's retried report reaches the
// refund again instead of hitting the terminal-state no-op.
func (o *Orchestrator) failAndRefund(ctx context.Context, gen *models.Generation, msg string) error {
	if err := o.refund(ctx, gen.UserID, CostFor(gen.Quality), gen.ID); err != nil {
		return err
	}
	return o.generations.Complete(ctx, gen.ID, models.GenerationFailed, nil, msg)
}

// refundOrLog is for the synchronous error paths, where the request is
// already failing toward the caller and a refund failure can only be
// surfaced to the operator.
func (o *Orchestrator) refundOrLog(ctx context.Context, userID string, amount int, genID string) {
	if err := o.refund(ctx, userID, amount, genID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("generation_id", genID).
			Int("amount", amount).Msg("refund failed, user is under-credited")
	}
}

// refund compensates a completed deduction. Not a rollback: the provider
// call cannot share a transaction with the local credit mutation. Both the
// balance credit and the ledger row are money-equivalent state, so either
// failing is an error the caller must surface.
func (o *Orchestrator) refund(ctx context.Context, userID string, amount int, genID string) error {
	if err := o.ledger.Credit(ctx, userID, amount); err != nil {
		return fmt.Errorf("refund %d credits: %w", amount, err)
	}
	meta := map[string]string{"generation_id": genID}
	if err := o.ledger.Record(ctx, userID, models.TransactionRefund, amount, "", meta); err != nil {
		return fmt.Errorf("record refund transaction: %w", err)
	}
	return nil
}

// cleanupSource deletes the uploaded source image after a success. Best
// effort only: the generation already succeeded, so a storage hiccup is
// logged and swallowed.
func (o *Orchestrator) cleanupSource(ctx context.Context, genID, sourcePath string) {
	if sourcePath == "" {
		return
	}
	if err := o.store.Delete(ctx, sourcePath); err != nil {
		log.Warn().Err(err).Str("generation_id", genID).Str("path", sourcePath).
			Msg("failed to delete source image")
	}
}
