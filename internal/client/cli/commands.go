package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lumensanctum/sanctum/internal/client/models"
)

var errUsage = errors.New("usage")

func usage(format string) error {
	return fmt.Errorf("%w: %s", errUsage, format)
}

// defaultDays is the subscription length used when subscribe gets no count.
var defaultDays = map[models.Tier]int{
	models.TierMonthly:   30,
	models.TierQuarterly: 90,
	models.TierYearly:    365,
}

const timeLayout = "2006-01-02 15:04:05"

func (a *App) consentUser() string {
	if u := a.session.Current(); u != nil {
		return u.Username
	}
	return "anonymous"
}

func (a *App) Consent(ctx context.Context) error {
	if _, err := a.consent.Accept(ctx, models.ConsentGeneral, a.consentUser()); err != nil {
		return err
	}
	a.declined = false
	printlnFn("Thank you. Your consent has been recorded.")
	return a.bootstrap(ctx)
}

func (a *App) DataConsent(ctx context.Context) error {
	if _, err := a.consent.Accept(ctx, models.ConsentData, a.consentUser()); err != nil {
		return err
	}
	printlnFn("Thank you. Your data consent has been recorded.")
	return a.bootstrap(ctx)
}

// Decline is not persisted; the gates are offered again on the next start.
func (a *App) Decline(context.Context) error {
	a.declined = true
	printlnFn("You have declined. The Sanctum cannot be entered without consent. Type 'consent' if you change your mind.")
	return nil
}

func (a *App) Status(context.Context) error {
	u := a.session.Current()
	printlnFn("User:", u.Username)
	printlnFn("Role:", u.Role)
	if u.SubscriptionEndDate != nil {
		printlnFn("Subscription:", u.Subscription, "until", u.SubscriptionEndDate.Local().Format(time.DateOnly))
	} else {
		printlnFn("Subscription:", u.Subscription)
	}
	printlnFn("Strikes:", fmt.Sprintf("%d/%d", u.Strikes, models.MaxStrikes))
	if r := a.cooldown.Remaining(); r > 0 {
		printlnFn("Cooldown:", fmt.Sprintf("%ds", r))
	}
	printlnFn("Entities:", strings.Join(u.AccessibleEntities, ", "))
	return nil
}

func (a *App) Entities(context.Context) error {
	u := a.session.Current()
	for _, e := range a.roster.All() {
		mark := " "
		if u != nil && u.CanAccess(e.ID) {
			mark = "*"
		}
		printlnFn(fmt.Sprintf("%s %-8s %-14s %-10s %s", mark, e.ID, e.Name, e.Status, e.Designation))
	}
	return nil
}

func (a *App) Chat(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("chat <entity-id> <message>")
	}
	msgs, err := a.chat.Send(ctx, args[0], strings.Join(args[1:], " "), nil)
	printTurn(msgs)
	return err
}

func (a *App) Attach(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("attach <entity-id> <path> [message]")
	}
	att, err := LoadAttachment(args[1])
	if err != nil {
		return err
	}
	msgs, err := a.chat.Send(ctx, args[0], strings.Join(args[2:], " "), att)
	printTurn(msgs)
	return err
}

func (a *App) Group(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("group <message>")
	}
	msgs, err := a.chat.SendGroup(ctx, strings.Join(args, " "))
	printTurn(msgs)
	return err
}

func (a *App) History(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("history <entity-id|group>")
	}
	var (
		msgs []models.ChatMessage
		err  error
	)
	if args[0] == "group" {
		msgs, err = a.chat.GroupHistory(ctx)
	} else {
		msgs, err = a.chat.History(ctx, args[0])
	}
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		printlnFn("No messages.")
	}
	for _, m := range msgs {
		printMessage(m)
	}
	return nil
}

func (a *App) Subscribe(ctx context.Context, args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return usage("subscribe <monthly|quarterly|yearly> [days]")
	}
	tier := models.Tier(args[0])
	days := defaultDays[tier]
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return usage("subscribe <monthly|quarterly|yearly> [days]")
		}
		days = n
	}
	u, err := a.account.Subscribe(ctx, tier, days)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Subscribed to %s until %s.", u.Subscription, u.SubscriptionEndDate.Local().Format(time.DateOnly)))
	if u.Subscription != models.TierYearly {
		printlnFn("Choose your entities with 'select <id> [id...]'.")
	}
	return nil
}

func (a *App) Select(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("select <entity-id> [entity-id...]")
	}
	u, err := a.account.SelectEntities(ctx, args)
	if err != nil {
		return err
	}
	printlnFn("Accessible entities:", strings.Join(u.AccessibleEntities, ", "))
	return nil
}

var tourSteps = []string{
	"1. Entities are listed with 'entities'. Those marked * are open to you.",
	"2. Speak to one with 'chat <id> <message>', or to all of them with 'group <message>'.",
	"3. Entities consent to every exchange. A refusal records a strike and a short cooldown.",
	"4. Three strikes end the session and erase this device's Sanctum data.",
	"5. Strikes fade after a week or two of positive conduct.",
}

func (a *App) Tour(ctx context.Context, args []string) error {
	if len(args) == 1 && args[0] == "restart" {
		if _, err := a.account.RestartTour(ctx); err != nil {
			return err
		}
		printlnFn("Tour reset. Type 'tour' to see it again.")
		return nil
	}
	if len(args) != 0 {
		return usage("tour [restart]")
	}
	for _, s := range tourSteps {
		printlnFn(s)
	}
	_, err := a.account.CompleteTour(ctx)
	return err
}

// APIKey sets the app-wide key, a per-entity key, or the integration key.
// An empty per-entity key is written as "-".
func (a *App) APIKey(ctx context.Context, args []string) error {
	var err error
	switch len(args) {
	case 1:
		_, err = a.account.SetAPIKey(ctx, args[0])
	case 2:
		key := args[1]
		if key == "-" {
			key = ""
		}
		if args[0] == "integration" {
			_, err = a.account.SetIntegrationAPIKey(ctx, key)
		} else {
			_, err = a.account.SetEntityAPIKey(ctx, args[0], key)
		}
	default:
		return usage("apikey [entity-id|integration] <key>")
	}
	if err != nil {
		return err
	}
	printlnFn("API key saved.")
	return nil
}

func (a *App) HideReminder(ctx context.Context) error {
	return a.account.HideAPIReminder(ctx)
}

// Allow replaces the tamper allowlist. Usernames may contain spaces, so the
// list is comma separated.
func (a *App) Allow(ctx context.Context, args []string) error {
	var users []string
	for _, u := range strings.Split(strings.Join(args, " "), ",") {
		if u = strings.TrimSpace(u); u != "" {
			users = append(users, u)
		}
	}
	cfg, err := a.security.Update(ctx, users)
	if err != nil {
		return err
	}
	printlnFn("Authorized users:", strings.Join(cfg.AuthorizedUsers, ", "))
	return nil
}

func (a *App) Reinit(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("reinit <entity-id>")
	}
	if err := a.account.Reinitialize(ctx, args[0], a.config.ReinitDelay); err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Re-initializing %s...", args[0]))
	return nil
}

// Audit prints a consent archive and its digest.
func (a *App) Audit(ctx context.Context, args []string) error {
	kind := models.ConsentGeneral
	switch {
	case len(args) == 1 && args[0] == string(models.ConsentData):
		kind = models.ConsentData
	case len(args) == 1 && args[0] == string(models.ConsentGeneral), len(args) == 0:
	default:
		return usage("audit [general|data]")
	}
	records, err := a.consent.Archive(ctx, kind)
	if err != nil {
		return err
	}
	digest, err := a.consent.Digest(ctx, kind)
	if err != nil {
		return err
	}
	for _, r := range records {
		printlnFn(fmt.Sprintf("%s  %s  accepted=%t", r.Timestamp.Local().Format(timeLayout), r.Username, r.Accepted))
	}
	printlnFn(fmt.Sprintf("%d record(s), sha256 %s", len(records), digest))
	return nil
}

// printTurn prints the messages added by the latest turn, i.e. everything
// after the last user message.
func printTurn(msgs []models.ChatMessage) {
	start := 0
	for i, m := range msgs {
		if m.Sender == models.SenderUser {
			start = i + 1
		}
	}
	for _, m := range msgs[start:] {
		printMessage(m)
	}
}

func printMessage(m models.ChatMessage) {
	line := fmt.Sprintf("[%s] %s: %s", m.Timestamp.Local().Format(time.TimeOnly), m.Sender, m.Content)
	if m.Attachment != nil {
		line += fmt.Sprintf(" [attachment %s]", m.Attachment.Name)
	}
	if m.Confidence != nil {
		line += fmt.Sprintf(" (%.0f%%)", *m.Confidence*100)
	}
	if m.GeneratedMedia != nil {
		line += fmt.Sprintf(" [media %s]", m.GeneratedMedia.MimeType)
	}
	printlnFn(line)
}
