package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/observability"
	"github.com/boddenberg/docflow-bfa-go/internal/markup"
	"github.com/boddenberg/docflow-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DocumentExporter delivers the document in preview to a recipient.
type DocumentExporter interface {
	Export(ctx context.Context, uid string, doc *domain.GeneratedDocument, sig *domain.SignatureData, email string) (*domain.ExportReceipt, error)
}

// ControllerDeps are the collaborators shared by every controller.
type ControllerDeps struct {
	Generator      port.DocumentGenerator
	Ledger         port.CreditLedger
	History        *History
	Exporter       DocumentExporter
	Lock           port.GenerationLock
	LockTTL        time.Duration
	UpgradeCredits int
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// Controller is the per-user document lifecycle: the step state machine,
// the generate, deduct, persist sequence and the edit protocol. All state
// is guarded by mu; remote calls run with mu released.
type Controller struct {
	deps *ControllerDeps
	uid  string

	mu         sync.Mutex
	step       domain.AppStep
	prompt     string
	document   *domain.GeneratedDocument
	revision   uint64
	signature  *domain.SignatureData
	profile    *domain.UserProfile
	editing    bool
	generating bool
}

// NewController creates an idle controller for uid.
func NewController(uid string, deps *ControllerDeps) *Controller {
	return &Controller{deps: deps, uid: uid, step: domain.StepIdle}
}

// UID returns the owner of the controller.
func (c *Controller) UID() string { return c.uid }

// Snapshot returns the current state.
func (c *Controller) Snapshot() *domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() *domain.Session {
	return &domain.Session{
		Step:       c.step,
		Prompt:     c.prompt,
		Document:   c.document.Clone(),
		Signature:  cloneSignature(c.signature),
		Profile:    domain.NewProfileView(c.profile.Clone()),
		Editing:    c.editing,
		Generating: c.generating,
	}
}

func cloneSignature(s *domain.SignatureData) *domain.SignatureData {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

// setStepLocked moves to step and counts the transition.
func (c *Controller) setStepLocked(step domain.AppStep) {
	if c.step == step {
		return
	}
	c.step = step
	c.deps.Metrics.IncrTransition(step)
}

// setDocumentLocked replaces the document in preview.
func (c *Controller) setDocumentLocked(doc *domain.GeneratedDocument) {
	c.document = doc
	c.revision++
}

// ============================================================
// Profile
// ============================================================

// SetProfile replaces the cached profile wholesale.
func (c *Controller) SetProfile(p *domain.UserProfile) {
	c.mu.Lock()
	c.profile = p.Clone()
	c.mu.Unlock()
}

// Refresh reloads the profile from the ledger.
func (c *Controller) Refresh(ctx context.Context) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Controller.Refresh")
	defer span.End()

	if err := c.refreshProfile(ctx); err != nil {
		return nil, err
	}
	return c.Snapshot(), nil
}

func (c *Controller) refreshProfile(ctx context.Context) error {
	p, err := c.deps.Ledger.FetchProfile(ctx, c.uid)
	if err != nil {
		return err
	}
	c.SetProfile(p)
	return nil
}

// refreshAfterMutation reloads the profile after a ledger write. A failed
// read keeps the stale copy.
func (c *Controller) refreshAfterMutation(ctx context.Context, after string) {
	if err := c.refreshProfile(ctx); err != nil {
		c.deps.Logger.Warn("profile refresh failed, keeping cached copy",
			zap.String("uid", c.uid),
			zap.String("after", after),
			zap.Error(err),
		)
	}
}

// UpdateProfile writes displayName and photoURL and reloads the profile.
func (c *Controller) UpdateProfile(ctx context.Context, upd domain.ProfileUpdate) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Controller.UpdateProfile")
	defer span.End()

	if err := upd.Validate(); err != nil {
		return nil, err
	}
	if err := c.deps.Ledger.UpdateProfile(ctx, c.uid, upd); err != nil {
		return nil, err
	}
	if err := c.refreshProfile(ctx); err != nil {
		return nil, err
	}
	return c.Snapshot(), nil
}

// Upgrade grants the pro credit pack. From the pricing step it returns to
// the composer.
func (c *Controller) Upgrade(ctx context.Context) (*domain.UpgradeResponse, error) {
	ctx, span := tracer.Start(ctx, "Controller.Upgrade")
	defer span.End()

	c.mu.Lock()
	if c.profile == nil {
		c.mu.Unlock()
		return nil, &domain.ErrAuthRequired{Action: "upgrade"}
	}
	c.mu.Unlock()

	amount := c.deps.UpgradeCredits
	if err := c.deps.Ledger.Grant(ctx, c.uid, amount); err != nil {
		return nil, err
	}
	c.deps.Metrics.AddCredits("granted", amount)
	c.deps.Logger.Info("credits granted", zap.String("uid", c.uid), zap.Int("amount", amount))

	c.refreshAfterMutation(ctx, "grant")

	c.mu.Lock()
	if c.step == domain.StepPricing {
		c.setStepLocked(domain.StepIdle)
	}
	view := domain.NewProfileView(c.profile.Clone())
	c.mu.Unlock()

	return &domain.UpgradeResponse{Granted: amount, Profile: view}, nil
}

// ============================================================
// Generation
// ============================================================

// Generate drafts a document from prompt, charges one credit and stores the
// result. The three remote calls run strictly in that order. Once the credit
// is deducted the save runs even if ctx is cancelled.
func (c *Controller) Generate(ctx context.Context, prompt string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Controller.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", c.uid))

	prompt = strings.TrimSpace(prompt)

	c.mu.Lock()
	if prompt == "" {
		defer c.mu.Unlock()
		return c.snapshotLocked(), nil
	}
	if c.profile == nil {
		c.mu.Unlock()
		return nil, &domain.ErrAuthRequired{Action: "generate"}
	}
	if c.generating {
		c.mu.Unlock()
		c.deps.Metrics.IncrGeneration(observability.OutcomeRejected)
		return nil, &domain.ErrGenerationInProgress{UID: c.uid}
	}
	if c.step != domain.StepIdle {
		from := c.step
		c.mu.Unlock()
		return nil, &domain.ErrInvalidTransition{From: from, Action: "generate"}
	}
	if c.profile.Credits <= 0 {
		c.mu.Unlock()
		c.deps.Metrics.IncrGeneration(observability.OutcomeCreditsExhausted)
		return nil, &domain.ErrCreditsExhausted{UID: c.uid}
	}
	c.generating = true
	c.prompt = prompt
	c.setStepLocked(domain.StepGenerating)
	c.mu.Unlock()

	if c.deps.Lock != nil {
		release, ok, err := c.deps.Lock.Acquire(ctx, c.uid, c.deps.LockTTL)
		if err != nil {
			c.failGeneration()
			return nil, err
		}
		if !ok {
			c.failGeneration()
			c.deps.Metrics.IncrGeneration(observability.OutcomeRejected)
			return nil, &domain.ErrGenerationInProgress{UID: c.uid}
		}
		defer release()
	}

	start := time.Now()
	defer func() {
		c.deps.Metrics.RecordRequestDuration("generate_sequence", time.Since(start))
	}()

	doc, err := c.deps.Generator.Generate(ctx, c.uid, prompt)
	if err != nil {
		c.failGeneration()
		if errors.Is(err, context.Canceled) {
			c.deps.Metrics.IncrGeneration(observability.OutcomeCancelled)
		} else {
			c.deps.Metrics.IncrGeneration(observability.OutcomeGenerationError)
		}
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		c.failGeneration()
		c.deps.Metrics.IncrGeneration(observability.OutcomeCancelled)
		return nil, err
	}

	deducted, err := c.deps.Ledger.Deduct(ctx, c.uid)
	if err != nil {
		c.failGeneration()
		c.deps.Metrics.IncrGeneration(observability.OutcomeDeductionError)
		c.deps.Logger.Error("credit deduction failed",
			zap.String("uid", c.uid),
			zap.Error(err),
		)
		return nil, err
	}
	if !deducted {
		c.refreshAfterMutation(ctx, "refused deduction")
		c.failGeneration()
		c.deps.Metrics.IncrGeneration(observability.OutcomeCreditsExhausted)
		return nil, &domain.ErrCreditsExhausted{UID: c.uid}
	}
	c.deps.Metrics.AddCredits("deducted", 1)

	// The user has paid; the caller leaving must not lose the document.
	pctx := context.WithoutCancel(ctx)

	id, saveErr := c.deps.History.Save(pctx, c.uid, doc)
	c.refreshAfterMutation(pctx, "deduct")

	if saveErr != nil {
		c.failGeneration()
		c.deps.Metrics.IncrGeneration(observability.OutcomePersistenceError)
		c.deps.Logger.Error("document not saved after deduction",
			zap.String("uid", c.uid),
			zap.String("title", doc.Title),
			zap.Error(saveErr),
		)
		return nil, saveErr
	}

	doc.ID = id
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setDocumentLocked(doc)
	c.prompt = ""
	c.signature = nil
	c.editing = false
	c.generating = false
	c.setStepLocked(domain.StepPreview)
	c.deps.Metrics.IncrGeneration(observability.OutcomeSuccess)

	c.deps.Logger.Info("document generated",
		zap.String("uid", c.uid),
		zap.String("document_id", id),
		zap.Duration("duration", time.Since(start)),
	)
	return c.snapshotLocked(), nil
}

// failGeneration ends an in-flight generation. The step returns to idle
// unless the user already navigated elsewhere.
func (c *Controller) failGeneration() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generating = false
	if c.step == domain.StepGenerating {
		c.setStepLocked(domain.StepIdle)
	}
}

// ============================================================
// Navigation
// ============================================================

// Reset clears the document, signature and prompt and returns to idle.
func (c *Controller) Reset() (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generating {
		return nil, &domain.ErrGenerationInProgress{UID: c.uid}
	}
	c.setDocumentLocked(nil)
	c.signature = nil
	c.prompt = ""
	c.editing = false
	c.setStepLocked(domain.StepIdle)
	return c.snapshotLocked(), nil
}

// Navigate moves directly to step. History and Pricing are reachable from
// anywhere; Preview needs a document; Idle is refused while generating.
func (c *Controller) Navigate(step domain.AppStep) (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch step {
	case domain.StepHistory, domain.StepPricing:
	case domain.StepPreview:
		if c.document == nil {
			return nil, &domain.ErrInvalidTransition{From: c.step, Action: "navigate to preview"}
		}
	case domain.StepIdle:
		if c.generating {
			return nil, &domain.ErrGenerationInProgress{UID: c.uid}
		}
	default:
		return nil, &domain.ErrInvalidTransition{From: c.step, Action: "navigate to " + string(step)}
	}

	c.editing = false
	c.setStepLocked(step)
	return c.snapshotLocked(), nil
}

// ============================================================
// History
// ============================================================

// ListHistory returns the user's stored documents, newest first.
func (c *Controller) ListHistory(ctx context.Context) []domain.GeneratedDocument {
	return c.deps.History.List(ctx, c.uid)
}

// SelectFromHistory loads a stored document into preview without charging
// or re-saving it.
func (c *Controller) SelectFromHistory(ctx context.Context, id string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Controller.SelectFromHistory")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", id))

	c.mu.Lock()
	if c.step != domain.StepHistory {
		from := c.step
		c.mu.Unlock()
		return nil, &domain.ErrInvalidTransition{From: from, Action: "select from history"}
	}
	c.mu.Unlock()

	doc, err := c.deps.History.Get(ctx, c.uid, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step != domain.StepHistory {
		return nil, &domain.ErrInvalidTransition{From: c.step, Action: "select from history"}
	}
	c.setDocumentLocked(doc)
	c.signature = nil
	c.editing = false
	c.setStepLocked(domain.StepPreview)
	return c.snapshotLocked(), nil
}

// DeleteHistory removes one stored document. A document in preview with
// that id stays on screen but becomes unsaved.
func (c *Controller) DeleteHistory(ctx context.Context, id string) error {
	if err := c.deps.History.Delete(ctx, c.uid, id); err != nil {
		return err
	}
	c.mu.Lock()
	if c.document != nil && c.document.ID == id {
		c.document.ID = ""
	}
	c.mu.Unlock()
	return nil
}

// DeleteAllHistory removes every stored document of the user.
func (c *Controller) DeleteAllHistory(ctx context.Context) error {
	if err := c.deps.History.DeleteAll(ctx, c.uid); err != nil {
		return err
	}
	c.mu.Lock()
	if c.document != nil {
		c.document.ID = ""
	}
	c.mu.Unlock()
	c.deps.Logger.Info("history deleted", zap.String("uid", c.uid))
	return nil
}

// ============================================================
// Editing
// ============================================================

func (c *Controller) requirePreviewLocked(action string) error {
	if c.step != domain.StepPreview || c.document == nil {
		return &domain.ErrInvalidTransition{From: c.step, Action: action}
	}
	return nil
}

// BeginEdit enters edit mode.
func (c *Controller) BeginEdit() (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requirePreviewLocked("edit"); err != nil {
		return nil, err
	}
	c.editing = true
	return c.snapshotLocked(), nil
}

// CancelEdit leaves edit mode without touching the document.
func (c *Controller) CancelEdit() (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requirePreviewLocked("cancel edit"); err != nil {
		return nil, err
	}
	c.editing = false
	return c.snapshotLocked(), nil
}

// SaveEdit replaces the document markup with the sanitized html and leaves
// edit mode. Nothing is written to the store.
func (c *Controller) SaveEdit(html string) (*domain.Session, error) {
	clean := markup.Sanitize(html)
	if strings.TrimSpace(markup.PlainText(clean)) == "" {
		return nil, &domain.ErrValidation{Field: "htmlContent", Message: "document cannot be empty"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requirePreviewLocked("save edit"); err != nil {
		return nil, err
	}
	if !c.editing {
		return nil, &domain.ErrInvalidTransition{From: c.step, Action: "save edit outside edit mode"}
	}
	doc := c.document.Clone()
	doc.HTMLContent = clean
	c.setDocumentLocked(doc)
	c.editing = false
	return c.snapshotLocked(), nil
}

// Persist writes the document in preview to the store: an update when it
// already has an id, a new record otherwise.
func (c *Controller) Persist(ctx context.Context) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Controller.Persist")
	defer span.End()

	c.mu.Lock()
	if err := c.requirePreviewLocked("persist"); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.editing {
		c.mu.Unlock()
		return nil, &domain.ErrInvalidTransition{From: c.step, Action: "persist while editing"}
	}
	doc := c.document.Clone()
	rev := c.revision
	c.mu.Unlock()

	id := doc.ID
	var err error
	if id != "" {
		err = c.deps.History.Update(ctx, c.uid, doc)
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			id, err = "", nil
		}
	}
	if id == "" && err == nil {
		id, err = c.deps.History.Save(ctx, c.uid, doc)
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.revision == rev && c.document != nil {
		c.document.ID = id
	}
	c.deps.Logger.Info("document persisted", zap.String("uid", c.uid), zap.String("document_id", id))
	return c.snapshotLocked(), nil
}

// ============================================================
// Signature and export
// ============================================================

// AttachSignature holds sig for the document in preview.
func (c *Controller) AttachSignature(sig *domain.SignatureData) (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requirePreviewLocked("sign"); err != nil {
		return nil, err
	}
	if c.editing {
		return nil, &domain.ErrInvalidTransition{From: c.step, Action: "sign while editing"}
	}
	c.signature = cloneSignature(sig)
	return c.snapshotLocked(), nil
}

// ClearSignature drops the held signature.
func (c *Controller) ClearSignature() (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requirePreviewLocked("clear signature"); err != nil {
		return nil, err
	}
	if c.editing {
		return nil, &domain.ErrInvalidTransition{From: c.step, Action: "clear signature while editing"}
	}
	c.signature = nil
	return c.snapshotLocked(), nil
}

// Export sends the document in preview, with its signature, to email.
func (c *Controller) Export(ctx context.Context, email string) (*domain.ExportReceipt, error) {
	ctx, span := tracer.Start(ctx, "Controller.Export")
	defer span.End()

	c.mu.Lock()
	if err := c.requirePreviewLocked("export"); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.editing {
		c.mu.Unlock()
		return nil, &domain.ErrInvalidTransition{From: c.step, Action: "export while editing"}
	}
	doc := c.document.Clone()
	sig := cloneSignature(c.signature)
	c.mu.Unlock()

	return c.deps.Exporter.Export(ctx, c.uid, doc, sig, email)
}
