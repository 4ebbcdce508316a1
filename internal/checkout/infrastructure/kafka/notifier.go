package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/paylinkbridge/checkout/internal/checkout/application"
	"github.com/paylinkbridge/checkout/internal/checkout/domain"
	"github.com/paylinkbridge/checkout/pkg/idempotency"
	"github.com/paylinkbridge/checkout/pkg/tracing"
)

// Notifier consumes LicenseMinted events and runs the decoupled side
// effects: license email, admin notification, customer ledger entry and
// tracker issue. Every step is best-effort; a failure is logged and the
// message is still committed so the request path is never blocked.
type Notifier struct {
	log    *slog.Logger
	reader *kafka.Reader
	svc    *application.Service
	mailer application.Mailer
	issues application.IssueTracker
	idem   *idempotency.Store
	tracer trace.Tracer
}

func NewNotifier(log *slog.Logger, brokers []string, topic, group string, svc *application.Service, mailer application.Mailer, issues application.IssueTracker, idem *idempotency.Store) *Notifier {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Notifier{
		log:    log,
		reader: r,
		svc:    svc,
		mailer: mailer,
		issues: issues,
		idem:   idem,
		tracer: otel.Tracer("license-notifier"),
	}
}

func (n *Notifier) Run(ctx context.Context) error {
	defer n.reader.Close()

	for {
		msg, err := n.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		key := n.idem.Key(msg.Topic, msg.Partition, msg.Offset)
		seen, err := n.idem.Seen(ctx, key)
		if err != nil {
			n.log.Error("idempotency check failed", "err", err)
			continue
		}
		if seen {
			n.log.Info("duplicate message skipped", "key", key)
			_ = n.reader.CommitMessages(ctx, msg)
			continue
		}

		if headerValue(msg.Headers, "event_type") != "LicenseMinted" {
			_ = n.reader.CommitMessages(ctx, msg)
			continue
		}

		msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
		msgCtx, span := n.tracer.Start(msgCtx, "ConsumeLicenseMinted")

		var minted domain.LicenseMinted
		if err := json.Unmarshal(msg.Value, &minted); err != nil {
			n.log.Error("unmarshal failed", "err", err)
			span.End()
			_ = n.reader.CommitMessages(ctx, msg)
			continue
		}

		n.handle(msgCtx, minted)
		span.End()
		_ = n.reader.CommitMessages(ctx, msg)
	}
}

func (n *Notifier) handle(ctx context.Context, minted domain.LicenseMinted) {
	if err := n.mailer.SendLicenseEmail(ctx, minted.Email, minted.License, minted.Plan, minted.OrderID); err != nil {
		n.log.Error("license email failed", "license", minted.License, "err", err)
	}
	if err := n.mailer.SendAdminNotification(ctx, minted.Plan, minted.Amount, minted.Email, minted.OrderID); err != nil {
		n.log.Error("admin notification failed", "license", minted.License, "err", err)
	}

	customer, err := n.svc.RecordCustomer(ctx, minted)
	if err != nil {
		n.log.Error("customer recording failed", "license", minted.License, "err", err)
		return
	}
	n.log.Info("customer recorded", "customer_id", customer.ID, "license", minted.License)

	if customer.GithubIssueCreated {
		return
	}
	issueURL, err := n.issues.CreateIssue(ctx, customer)
	if err != nil {
		n.log.Error("issue creation failed", "customer_id", customer.ID, "err", err)
		return
	}
	if issueURL == "" {
		return
	}
	if err := n.svc.AttachIssue(ctx, customer.ID, issueURL); err != nil {
		n.log.Error("attaching issue failed", "customer_id", customer.ID, "err", err)
	}
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}
