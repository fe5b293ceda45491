package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/wilesp/plumbflow-platform/internal/geo"
	"github.com/wilesp/plumbflow-platform/internal/models"
	"github.com/wilesp/plumbflow-platform/internal/pricing"
)

// FormatMoney renders pounds with pence, e.g. £106.62
func FormatMoney(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-£%.2f", -v)
	}
	return fmt.Sprintf("£%.2f", v)
}

// JobTypeName turns leaking_tap into "Leaking tap"
func JobTypeName(jobType string) string {
	s := strings.ReplaceAll(jobType, "_", " ")
	if s == "" {
		return "Plumbing job"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func UrgencyName(u models.Urgency) string {
	switch u {
	case models.UrgencyEmergency:
		return "🚨 Emergency"
	case models.UrgencyToday:
		return "Today"
	case models.UrgencyThisWeek:
		return "This week"
	default:
		return "Flexible"
	}
}

func FormatWelcomeMessage(p *models.Plumber) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("👋 Hello, *%s*\\!\n\n", EscapeMarkdown(p.Name)))
	sb.WriteString("You will get job leads here as soon as we match you\\.\n\n")
	sb.WriteString(fmt.Sprintf("📍 *Base:* %s\n", EscapeMarkdown(p.BasePostcode)))
	sb.WriteString(fmt.Sprintf("💷 *Hourly rate:* %s\n", EscapeMarkdown(FormatMoney(p.HourlyRate))))
	sb.WriteString(fmt.Sprintf("🚨 *Emergency rate:* %s\n", EscapeMarkdown(FormatMoney(p.EmergencyRate))))
	if len(p.Skills) > 0 {
		names := make([]string, 0, len(p.Skills))
		for _, s := range p.Skills {
			names = append(names, JobTypeName(s))
		}
		sb.WriteString(fmt.Sprintf("🔧 *Skills:* %s\n", EscapeMarkdown(strings.Join(names, ", "))))
	}
	if p.GasSafeCertified {
		sb.WriteString("🔥 Gas Safe certified\n")
	}
	sb.WriteString(fmt.Sprintf("💳 *Credit:* %s\n\n", EscapeMarkdown(FormatMoney(p.CreditBalance))))
	sb.WriteString("/leads \\- open offers\n/balance \\- credit and charges\n/available \\- same\\-day availability\n/help \\- help")

	return sb.String()
}

func FormatUnregisteredMessage(telegramID int64) string {
	return fmt.Sprintf(`👋 Hi\!

This bot is for plumbers working with PlumbFlow\. Your Telegram account is not linked to a plumber profile yet\.

Send this ID to the PlumbFlow team to get set up: `+"`%d`", telegramID)
}

func FormatHelpMessage() string {
	return `*📖 Help*

/start \- your profile
/leads \- leads currently offered to you
/balance \- credit balance and recent charges
/available \- switch same\-day availability
/help \- this message

*How leads work*

1️⃣ We match a customer job to the best placed plumber and send you the lead with our price estimate\.
2️⃣ Tap *Accept* to take the job\. The finder's fee comes off your credit and you get the customer's details\.
3️⃣ Tap *Decline* or let the offer run out and it moves on to the next plumber\.`
}

// FormatLeadOffer renders an open lead. quote may be nil when the breakdown
// is unavailable.
func FormatLeadOffer(offer *models.LeadOffer, quote *pricing.Breakdown, loc *time.Location) string {
	lead, job := &offer.Lead, &offer.Job
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("🔔 *New lead: %s*\n\n", EscapeMarkdown(JobTypeName(job.JobType))))

	if job.Title != "" {
		sb.WriteString(fmt.Sprintf("_%s_\n", EscapeMarkdown(TruncateString(job.Title, 120))))
	}
	if job.Description != "" {
		sb.WriteString(fmt.Sprintf("%s\n", EscapeMarkdown(TruncateString(job.Description, 400))))
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("📍 *Area:* %s\n", EscapeMarkdown(geo.Area(job.Postcode))))
	sb.WriteString(fmt.Sprintf("⏰ *When:* %s\n", EscapeMarkdown(UrgencyName(job.Urgency))))
	sb.WriteString(fmt.Sprintf("🚗 *Distance:* %s\n",
		EscapeMarkdown(fmt.Sprintf("~%.0f km, %d min", lead.DistanceKM, lead.TravelMinutes))))
	if job.GasSafeRequired {
		sb.WriteString("🔥 Gas Safe work\n")
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("💷 *Customer price:* %s\n",
		EscapeMarkdown(FormatMoney(lead.PriceLow)+" - "+FormatMoney(lead.PriceHigh))))
	sb.WriteString(fmt.Sprintf("💰 *You earn:* %s\n", EscapeMarkdown(FormatMoney(lead.PlumberEarnings))))
	sb.WriteString(fmt.Sprintf("🎟 *Lead fee:* %s\n", EscapeMarkdown(FormatMoney(lead.FinderFee))))

	if quote != nil {
		sb.WriteString(fmt.Sprintf("\n*Breakdown* \\(%s confidence\\)\n", EscapeMarkdown(string(quote.Confidence))))
		sb.WriteString(fmt.Sprintf("• Labour: %s\n",
			EscapeMarkdown(fmt.Sprintf("%.2fh at %s = %s", quote.Labor.Hours,
				FormatMoney(quote.Labor.RatePerHour), FormatMoney(quote.Labor.Cost)))))
		sb.WriteString(fmt.Sprintf("• Travel: %s\n", EscapeMarkdown(FormatMoney(quote.Travel.Total))))
		materials := FormatMoney(quote.Materials.Cost)
		if quote.Materials.Estimated {
			materials += " (estimated)"
		}
		sb.WriteString(fmt.Sprintf("• Materials: %s\n", EscapeMarkdown(materials)))
	}

	if lead.ExpiresAt != nil {
		sb.WriteString(fmt.Sprintf("\n⌛ Offer open until *%s*", EscapeMarkdown(lead.ExpiresAt.In(loc).Format("15:04 Mon 2 Jan"))))
	}

	return sb.String()
}

// FormatAcceptance confirms the job and hands over the customer's contact
// details
func FormatAcceptance(acc *models.Acceptance) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("✅ *Job is yours: %s*\n\n", EscapeMarkdown(JobTypeName(acc.Job.JobType))))
	sb.WriteString(fmt.Sprintf("📍 *Postcode:* %s\n", EscapeMarkdown(acc.Job.Postcode)))
	if acc.Job.CustomerPhone != nil {
		sb.WriteString(fmt.Sprintf("📞 *Phone:* %s\n", EscapeMarkdown(*acc.Job.CustomerPhone)))
	}
	if acc.Job.CustomerEmail != nil {
		sb.WriteString(fmt.Sprintf("✉️ *Email:* %s\n", EscapeMarkdown(*acc.Job.CustomerEmail)))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("🎟 *Charged:* %s\n", EscapeMarkdown(FormatMoney(acc.Charged))))
	sb.WriteString(fmt.Sprintf("💳 *Credit left:* %s\n", EscapeMarkdown(FormatMoney(acc.NewBalance))))
	sb.WriteString("\nPlease contact the customer as soon as you can\\.")

	return sb.String()
}

func FormatLowCreditMessage(balance float64) string {
	return fmt.Sprintf("⚠️ *Low credit*\n\nYour balance is %s\\. Top up to keep receiving leads\\.",
		EscapeMarkdown(FormatMoney(balance)))
}

func FormatOfferExpiredMessage(offer *models.LeadOffer) string {
	return fmt.Sprintf("⌛ The %s lead in %s has expired and was passed on\\.",
		EscapeMarkdown(strings.ToLower(JobTypeName(offer.Job.JobType))),
		EscapeMarkdown(geo.Area(offer.Job.Postcode)))
}

func FormatNoLeadsMessage() string {
	return "📭 *No open leads*\n\nWe will message you when a job near you comes in\\."
}

func FormatBalance(p *models.Plumber, txs []models.CreditTransaction, loc *time.Location) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("💳 *Credit balance:* %s\n", EscapeMarkdown(FormatMoney(p.CreditBalance))))
	sb.WriteString(fmt.Sprintf("🔧 *Jobs in progress:* %d\n", p.CurrentJobsCount))

	if len(txs) == 0 {
		sb.WriteString("\n_No charges yet_")
		return sb.String()
	}

	sb.WriteString("\n*Recent activity*\n")
	for _, tx := range txs {
		sb.WriteString(fmt.Sprintf("• %s %s %s\n",
			EscapeMarkdown(tx.CreatedAt.In(loc).Format("02 Jan")),
			EscapeMarkdown(transactionName(tx.Kind)),
			EscapeMarkdown(FormatMoney(tx.Amount)),
		))
	}

	return sb.String()
}

func FormatAvailability(available bool) string {
	if available {
		return "🟢 You are marked *available today*\\. Same\\-day and emergency jobs will rank you higher\\."
	}
	return "⚪️ You are marked *not available today*\\."
}

func transactionName(kind models.TransactionKind) string {
	switch kind {
	case models.TransactionLeadFee:
		return "lead fee"
	case models.TransactionTopUp:
		return "top up"
	case models.TransactionRefund:
		return "refund"
	default:
		return string(kind)
	}
}

// EscapeMarkdown escapes special characters for Telegram MarkdownV2
func EscapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"(", "\\(",
		")", "\\)",
		"~", "\\~",
		"`", "\\`",
		">", "\\>",
		"#", "\\#",
		"+", "\\+",
		"-", "\\-",
		"=", "\\=",
		"|", "\\|",
		"{", "\\{",
		"}", "\\}",
		".", "\\.",
		"!", "\\!",
	)

	return replacer.Replace(text)
}

// TruncateString cuts s to maxLen runes including the ellipsis
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
