package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-events/backend/internal/badges"
	"github.com/lumen-events/backend/internal/checkin"
	"github.com/lumen-events/backend/internal/models"
	"github.com/lumen-events/backend/pkg/queue"
)

// EmailSender delivers one localized message.
type EmailSender interface {
	Send(to, subject, body string) error
}

// ContactSyncer upserts one contact into the marketing platform.
type ContactSyncer interface {
	UpsertContact(ctx context.Context, email string, attributes map[string]string) error
}

// SubjectBodyFunc builds the localized confirmation mail.
type SubjectBodyFunc func(recipientName, eventName, locale string) (subject, body string)

// RegistrationGetter loads registrations for job payload resolution.
type RegistrationGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
}

// EventGetter loads events for job payload resolution.
type EventGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// TokenGetter loads check-in tokens for queued badge prints.
type TokenGetter interface {
	GetByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*models.CheckInToken, error)
}

// BadgeStore loads templates and printers and records print outcomes.
type BadgeStore interface {
	GetTemplate(ctx context.Context, id uuid.UUID) (*models.BadgeTemplate, error)
	GetPrinter(ctx context.Context, id uuid.UUID) (*models.Printer, error)
	LogPrint(ctx context.Context, l *models.PrintLog) error
}

// BadgePrinter sends rendered ZPL to a printer.
type BadgePrinter interface {
	Print(ctx context.Context, printerAddress, zpl string) error
}

// Processor executes background jobs: confirmation mail, marketing sync and
// queued badge prints.
type Processor struct {
	queue     *queue.Queue
	regs      RegistrationGetter
	events    EventGetter
	tokens    TokenGetter
	badgeRepo BadgeStore
	printer   BadgePrinter
	mail      EmailSender
	marketing ContactSyncer
	buildMail SubjectBodyFunc
	logger    *zap.Logger
}

// NewProcessor creates a job processor. A nil printer disables badge-print
// jobs; they fail and retry into the DLQ.
func NewProcessor(q *queue.Queue, regs RegistrationGetter, events EventGetter, tokens TokenGetter, badgeRepo BadgeStore, printer BadgePrinter, mail EmailSender, marketing ContactSyncer, buildMail SubjectBodyFunc, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		queue:     q,
		regs:      regs,
		events:    events,
		tokens:    tokens,
		badgeRepo: badgeRepo,
		printer:   printer,
		mail:      mail,
		marketing: marketing,
		buildMail: buildMail,
		logger:    logger,
	}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeConfirmationEmail:
		return p.processEmail(ctx, job)
	case queue.JobTypeMarketingSync:
		return p.processMarketingSync(ctx, job)
	case queue.JobTypeBadgePrint:
		return p.processBadgePrint(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (p *Processor) processEmail(ctx context.Context, job *queue.Job) error {
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	event, err := p.events.GetByID(ctx, payload.EventID)
	if err != nil || event == nil {
		return fmt.Errorf("event not found: %s", payload.EventID)
	}
	eventName := event.Name
	if len(payload.Locale) >= 2 && event.NameEs != "" && payload.Locale[:2] == "es" {
		eventName = event.NameEs
	}
	subject, body := p.buildMail(payload.RecipientName, eventName, payload.Locale)
	if err := p.mail.Send(payload.RecipientEmail, subject, body); err != nil {
		return fmt.Errorf("send confirmation: %w", err)
	}
	p.logger.Info("confirmation email sent",
		zap.String("registration_id", payload.RegistrationID.String()))
	return nil
}

func (p *Processor) processMarketingSync(ctx context.Context, job *queue.Job) error {
	var payload queue.MarketingSyncPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := p.marketing.UpsertContact(ctx, payload.Email, payload.Attributes); err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	return nil
}

func (p *Processor) processBadgePrint(ctx context.Context, job *queue.Job) error {
	if p.printer == nil {
		return fmt.Errorf("badge printing not configured")
	}
	var payload queue.BadgePrintPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	reg, err := p.regs.GetByID(ctx, payload.RegistrationID)
	if err != nil || reg == nil {
		return fmt.Errorf("registration not found: %s", payload.RegistrationID)
	}
	event, err := p.events.GetByID(ctx, reg.EventID)
	if err != nil || event == nil {
		return fmt.Errorf("event not found: %s", reg.EventID)
	}
	printer, err := p.badgeRepo.GetPrinter(ctx, payload.PrinterID)
	if err != nil || printer == nil {
		return fmt.Errorf("printer not found: %s", payload.PrinterID)
	}
	tpl, err := p.badgeRepo.GetTemplate(ctx, payload.TemplateID)
	if err != nil || tpl == nil {
		return fmt.Errorf("template not found: %s", payload.TemplateID)
	}
	token, err := p.tokens.GetByRegistrationID(ctx, reg.ID)
	if err != nil || token == nil {
		return fmt.Errorf("check-in token not found: %s", reg.ID)
	}

	zpl := badges.RenderZPL(tpl, badges.RenderData{
		FirstName: reg.FirstName,
		LastName:  reg.LastName,
		EventName: event.Name,
		QRPayload: checkin.BuildQRPayload(event.ID, reg.ID, token.Token),
	})
	printErr := p.printer.Print(ctx, printer.Address, zpl)

	log := &models.PrintLog{
		PrinterID:      printer.ID,
		RegistrationID: &reg.ID,
		TemplateID:     &tpl.ID,
		Status:         "sent",
	}
	if printErr != nil {
		log.Status = "failed"
		log.Error = printErr.Error()
	}
	if err := p.badgeRepo.LogPrint(ctx, log); err != nil {
		p.logger.Error("print log write failed", zap.Error(err))
	}
	if printErr != nil {
		return fmt.Errorf("bridge print: %w", printErr)
	}
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
