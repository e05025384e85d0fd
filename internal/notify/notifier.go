package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"

	"consentgate/internal/directory"
	"consentgate/internal/settings"
)

// ConsentManagerSource resolves the configured consent managers to live
// users. Implemented by the consent manager service.
type ConsentManagerSource interface {
	ConsentManagers(ctx context.Context) ([]directory.User, error)
}

// EmailNotifier is the AgreementsRevoked subscriber that mails the designated
// consent managers when an important revocation happens, provided the site
// settings have email notification switched on.
type EmailNotifier struct {
	settings  settings.Store
	managers  ConsentManagerSource
	mailer    Mailer
	siteTitle string
	manageURL string
	logger    *slog.Logger
}

func NewEmailNotifier(
	settingsStore settings.Store,
	managers ConsentManagerSource,
	mailer Mailer,
	siteTitle, manageURL string,
	logger *slog.Logger,
) *EmailNotifier {
	return &EmailNotifier{
		settings:  settingsStore,
		managers:  managers,
		mailer:    mailer,
		siteTitle: siteTitle,
		manageURL: manageURL,
		logger:    logger,
	}
}

var revokedMailTmpl = template.Must(template.New("revoked_consent").Parse(`<!doctype html>
<html>
<body>
<p>Hi {{.Manager.Title}},</p>
<p>{{.RevokedUser.Title}} has revoked consent for the following terms on {{.SiteTitle}}:</p>
<ul>
{{- range .Terms}}
<li>{{.Title}}</li>
{{- end}}
</ul>
<p><a href="{{.ManageURL}}">Manage terms of service</a></p>
</body>
</html>
`))

type revokedMailValues struct {
	Manager     directory.User
	RevokedUser directory.User
	Terms       []termView
	SiteTitle   string
	ManageURL   string
}

type termView struct{ Title string }

// HandleAgreementsRevoked sends one summary mail per resolved consent
// manager. Wire it to the bus with Subscribe.
func (n *EmailNotifier) HandleAgreementsRevoked(ctx context.Context, event AgreementsRevoked) error {
	cfg, err := n.settings.Load(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if !cfg.EmailConsentManagers {
		return nil
	}

	managers, err := n.managers.ConsentManagers(ctx)
	if err != nil {
		return fmt.Errorf("resolve consent managers: %w", err)
	}

	views := make([]termView, 0, len(event.Terms))
	for _, t := range event.Terms {
		views = append(views, termView{Title: t.Title})
	}
	subject := fmt.Sprintf("Revoked consent notice from %s", n.siteTitle)

	for _, manager := range managers {
		var body bytes.Buffer
		err := revokedMailTmpl.Execute(&body, revokedMailValues{
			Manager:     manager,
			RevokedUser: event.User,
			Terms:       views,
			SiteTitle:   n.siteTitle,
			ManageURL:   n.manageURL,
		})
		if err != nil {
			return fmt.Errorf("render revoked consent mail: %w", err)
		}
		if err := n.mailer.Send(ctx, subject, []string{manager.Email}, body.String()); err != nil {
			n.logger.WarnContext(ctx, "could not mail consent manager",
				"error", err,
				"manager_id", manager.ID.String(),
			)
		}
	}
	return nil
}
