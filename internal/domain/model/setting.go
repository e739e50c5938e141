package model

import "time"

// Setting keys read by the core.
const (
	SettingGatewayAccessToken  = "gateway_access_token"
	SettingNotificationBaseURL = "notification_base_url"
	SettingWebhookSecret       = "gateway_webhook_secret"
)

// SecretSettings are stored encrypted at rest.
var SecretSettings = map[string]bool{
	SettingGatewayAccessToken: true,
	SettingWebhookSecret:      true,
}

type Setting struct {
	Key       string
	Value     *string
	UpdatedAt time.Time
}
