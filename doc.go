// Package hookline provides a composable webhook delivery engine for Go.
//
// Hookline is a library — not a service. Import it into your application to
// accept externally-triggered events on behalf of registered subscribers
// and get asynchronous, authenticated, retried delivery to each
// subscriber's callback endpoint, with a queryable ledger of every attempt.
//
// Key features:
//   - HMAC-SHA256 signed payloads, verified at ingestion and signed on
//     every outbound delivery, over a canonical payload form
//   - Composable store pattern with multiple backends (Bun for
//     Postgres/SQLite, Redis, Memory)
//   - Durable delivery queue with at-least-once, single-claim semantics
//   - Exponential backoff retries with jitter and a bounded attempt budget
//   - Append-only delivery ledger queryable by subscription or event
//   - Read-through subscription cache invalidated on write
//   - Expiry sweeper deactivating lapsed subscriptions
//
// Quick start:
//
//	h, err := hookline.New(
//	    hookline.WithStore(memory.New()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	h.Start(ctx)
//	defer h.Stop(ctx)
//
//	sub, _ := h.Subscriptions().Create(ctx, subscription.Input{
//	    TargetURL: "https://example.com/hooks",
//	    EventType: "invoice.created",
//	})
//
//	h.Ingest(ctx, hookline.IngestInput{
//	    SubscriptionID: sub.ID,
//	    EventType:      "invoice.created",
//	    Payload:        map[string]any{"invoice_id": "inv_01h..."},
//	    Signature:      sig, // HMAC over the canonical payload
//	})
//
// Delivery is at-least-once: a crash between dequeue and ledger write may
// repeat a delivery, so consumers must treat duplicates as possible. If
// stronger guarantees are needed, derive an idempotency key from (event
// id, subscription id, attempt number) at the receiving end.
package hookline
