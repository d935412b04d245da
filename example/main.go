// Package main demonstrates how to use the chatguard moderation library.
//
// This example shows:
// 1. Building a moderator on an in-memory ledger
// 2. Reacting to violations and enforcement via hooks
// 3. Evaluating messages as a user escalates
// 4. Rendering a moderated message for each participant
// 5. Moderating a batch of messages
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/heibot/chatguard"
	"github.com/heibot/chatguard/hooks"
	"github.com/heibot/chatguard/ledger"
	"github.com/heibot/chatguard/moderation"
	"github.com/heibot/chatguard/visibility"
)

func main() {
	ctx := context.Background()

	// ============================================================
	// Step 1: Choose a Ledger
	// ============================================================
	// Production deployments use ledger/sql or ledger/redis, usually
	// behind ledger.NewResilient.
	counts := ledger.NewMemory()

	// ============================================================
	// Step 2: Implement Business Hooks
	// ============================================================
	myHooks := hooks.FuncHooks{
		OnViolationDetectedFunc: func(ctx context.Context, e hooks.ViolationDetectedEvent) error {
			log.Printf("[Hook] %s sent %s content (rule %s, counted=%v)",
				e.UserID, e.Result.Category, e.Result.MatchedRuleID, e.Counted)
			return nil
		},
		OnEnforcementFunc: func(ctx context.Context, e hooks.EnforcementEvent) error {
			change := e.Change()
			if change.IsEscalation() {
				log.Printf("[Hook] %s escalated %s -> %s at %d violations",
					e.UserID, change.From, change.To, e.WarningCount)
			}
			switch e.Action {
			case chatguard.ActionTempBan:
				log.Printf("  -> Suspending chat for %s", e.UserID)
			case chatguard.ActionPermanentBan:
				log.Printf("  -> Closing account %s", e.UserID)
			}
			return nil
		},
	}

	// ============================================================
	// Step 3: Create the Moderator
	// ============================================================
	opts := moderation.DefaultOptions()
	opts.Ledger = counts
	opts.Hooks = myHooks
	opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	mod, err := moderation.New(opts)
	if err != nil {
		log.Fatalf("Failed to create moderator: %v", err)
	}

	// ============================================================
	// Example 1: Escalation Across Messages
	// ============================================================
	log.Println("\n=== Example 1: Escalation ===")

	messages := []string{
		"안녕하세요, 아직 판매 중인가요?",
		"제 번호는 010-1234-5678 이에요",
		"카톡 아이디: seller_99",
		"수수료 없이 직거래 해요",
		"계좌번호 110-123-456789 로 보내주세요",
		"현금으로 결제할게요",
	}
	for _, text := range messages {
		eval, err := mod.Evaluate(ctx, "buyer_42", text)
		if err != nil {
			log.Printf("Failed to evaluate: %v", err)
			continue
		}
		log.Printf("%q -> %q action=%s count=%d",
			text, eval.Result.FilteredText, eval.Action, eval.WarningCount)
		if eval.WarningMessage != "" {
			log.Printf("  notice: %s", eval.WarningMessage)
		}
	}

	// ============================================================
	// Example 2: Render per Viewer
	// ============================================================
	log.Println("\n=== Example 2: Render per Viewer ===")

	renderer := visibility.NewRenderer()
	renderer.Policy = visibility.PolicyReplaceOnViolation

	result := mod.Preview("직거래 하실래요?")
	for _, viewer := range []visibility.ViewerRole{
		visibility.ViewerSender,
		visibility.ViewerRecipient,
		visibility.ViewerAdmin,
	} {
		r := renderer.Render(result, viewer)
		log.Printf("  %s: Visible=%v, Text=%q, IsReplaced=%v", viewer, r.Visible, r.Text, r.IsReplaced)
	}

	// ============================================================
	// Example 3: Batch Moderation
	// ============================================================
	log.Println("\n=== Example 3: Batch ===")

	evals, err := mod.EvaluateBatch(ctx, []moderation.Message{
		{UserID: "user_a", Text: "네 내일 뵐게요"},
		{UserID: "user_b", Text: "이메일 abc@example.com 으로 주세요"},
		{UserID: "user_c", Text: "앱 밖에서 거래해요"},
	})
	if err != nil {
		log.Printf("Batch finished with errors: %v", err)
	}
	summary := moderation.Summarize(evals)
	log.Printf("Batch: total=%d violations=%d blocked=%d strictest=%s",
		summary.Total, summary.Violations, summary.Blocked, summary.StrictestAction)

	// ============================================================
	// Example 4: Appeals
	// ============================================================
	log.Println("\n=== Example 4: Appeals ===")

	record, err := mod.Violations(ctx, "buyer_42")
	if err != nil {
		log.Printf("Failed to read violations: %v", err)
	} else {
		log.Printf("buyer_42 has %d violations (%s)", record.WarningCount, mod.Decide(record.WarningCount))
	}
	if err := mod.ResetViolations(ctx, "buyer_42"); err != nil {
		log.Printf("Failed to reset: %v", err)
	}
}
