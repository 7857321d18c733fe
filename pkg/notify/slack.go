package notify

import (
	"fmt"
	"strings"

	goslack "github.com/slack-go/slack"

	"github.com/sentrynode/sentrynode/internal/model"
)

// actionEmoji prefixes a violation message with a severity cue matching the
// recommended action ladder.
func actionEmoji(action model.RecommendedAction) string {
	switch action {
	case model.ActionHardBlock:
		return "🔴"
	case model.ActionTempBlock:
		return "🟠"
	case model.ActionSoftBlock:
		return "🟡"
	case model.ActionWarn:
		return "🟡"
	case model.ActionMonitor:
		return "🔵"
	default:
		return "⚪"
	}
}

func violationSummary(user model.User, score model.ViolationScore) string {
	return fmt.Sprintf("%s Violation: %s (score %.0f, %s)",
		actionEmoji(score.RecommendedAction), user.Username, score.Total, score.RecommendedAction)
}

// violationBlocks builds Slack Block Kit blocks for a violation
// notification: the score breakdown, ordered reasons, and recommended
// action.
func violationBlocks(user model.User, score model.ViolationScore) []goslack.Block {
	header := goslack.NewHeaderBlock(
		goslack.NewTextBlockObject(goslack.PlainTextType, violationSummary(user, score), true, false),
	)

	fields := []*goslack.TextBlockObject{
		goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*User:* %s", displayUser(user)), false, false),
		goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Score:* %.0f / 100", score.Total), false, false),
		goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Action:* %s", score.RecommendedAction), false, false),
		goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Confidence:* %.2f", score.Confidence), false, false),
	}
	sectionBlock := goslack.NewSectionBlock(nil, fields, nil)

	breakdown := goslack.NewSectionBlock(
		goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf(
			"*Breakdown*\ntemporal: %.0f  geo: %.0f  asn: %.0f  profile: %.0f  device: %.0f",
			score.Breakdown.Temporal, score.Breakdown.Geo, score.Breakdown.ASN, score.Breakdown.Profile, score.Breakdown.Device,
		), false, false), nil, nil,
	)

	blocks := []goslack.Block{header, sectionBlock, breakdown}

	if len(score.Reasons) > 0 {
		reasons := goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, "*Reasons*\n"+bulletList(score.Reasons), false, false),
			nil, nil,
		)
		blocks = append(blocks, reasons)
	}

	if score.ManualReview {
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, "⚠️ *Manual review recommended*", false, false),
			nil, nil,
		))
	}

	return blocks
}

func displayUser(user model.User) string {
	if user.Username != "" {
		return user.Username
	}
	if user.Email != "" {
		return user.Email
	}
	return user.UUID.String()
}

func bulletList(items []string) string {
	var b strings.Builder
	for _, item := range items {
		b.WriteString("• ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func lifecycleSummary(event LifecycleEvent) string {
	if event.Summary != "" {
		return event.Summary
	}
	return fmt.Sprintf("%s: %s", event.Kind, event.EntityID)
}

// lifecycleBlocks renders a control-plane lifecycle event, with a
// field-by-field diff against old_state when one was supplied.
func lifecycleBlocks(event LifecycleEvent) []goslack.Block {
	header := goslack.NewHeaderBlock(
		goslack.NewTextBlockObject(goslack.PlainTextType, lifecycleSummary(event), true, false),
	)
	blocks := []goslack.Block{header}

	diffs := DiffFields(event.OldState, event.NewState)
	switch {
	case event.OldState == nil:
		// Nothing to diff against, so nothing further to render beyond the header.
	case len(diffs) == 0:
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, "_no field changes_", false, false), nil, nil,
		))
	default:
		var b strings.Builder
		for _, d := range diffs {
			fmt.Fprintf(&b, "*%s:* %s → %s\n", d.Field, d.Old, d.New)
		}
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, strings.TrimRight(b.String(), "\n"), false, false), nil, nil,
		))
	}

	return blocks
}
